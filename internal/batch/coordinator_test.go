package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/pipeline"
)

type fakeRunner struct {
	fail     map[string]error
	panics   map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	seen  []string
	notes []pipeline.Notifier
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.RunRequest) (*model.JobResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, req.AssetID)
	f.notes = append(f.notes, req.Notifier)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.panics[req.AssetID] {
		panic("encoder state corrupted")
	}
	if err := f.fail[req.AssetID]; err != nil {
		return nil, err
	}
	return &model.JobResult{AssetID: req.AssetID}, nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("asset-%02d", i)
	}
	return out
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	assets := ids(10)
	runner := &fakeRunner{
		delay: 5 * time.Millisecond,
		fail: map[string]error{
			"asset-02": &pipeline.Error{Category: model.ErrorCategoryRender, Stage: model.JobStateRendering, Err: errors.New("encoder crashed")},
			"asset-07": errors.New("disk full"),
		},
		panics: map[string]bool{"asset-05": true},
	}
	c := New(runner, 3, nil, zerolog.Nop())

	res := c.RunBatch(context.Background(), assets, 0, model.DefaultEditOptions())

	assert.Equal(t, 10, res.Total)
	assert.Len(t, res.Completed, 7)
	require.Len(t, res.Failed, 3)

	assert.Equal(t, "asset-02", res.Failed[0].ID)
	assert.Equal(t, model.ErrorCategoryRender, res.Failed[0].Category)
	assert.Equal(t, "asset-05", res.Failed[1].ID)
	assert.Contains(t, res.Failed[1].Error, "panicked")
	assert.Equal(t, "asset-07", res.Failed[2].ID)
	assert.Equal(t, model.ErrorCategoryInternal, res.Failed[2].Category)

	assert.Equal(t, []string{"asset-00", "asset-01", "asset-03", "asset-04", "asset-06", "asset-08", "asset-09"}, res.Completed)
}

func TestRunBatchRespectsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeRunner{delay: 10 * time.Millisecond}
	c := New(runner, 8, nil, zerolog.Nop())

	res := c.RunBatch(context.Background(), ids(12), 2, model.DefaultEditOptions())
	assert.Len(t, res.Completed, 12)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
	assert.Len(t, runner.seen, 12)
}

func TestRunBatchDefaultConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeRunner{delay: 10 * time.Millisecond}
	c := New(runner, 0, nil, zerolog.Nop())

	c.RunBatch(context.Background(), ids(9), 0, model.DefaultEditOptions())
	assert.LessOrEqual(t, runner.peak.Load(), int32(DefaultConcurrency))
}

func TestRunBatchCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{delay: time.Second}
	res := New(runner, 2, nil, zerolog.Nop()).RunBatch(ctx, ids(4), 0, model.DefaultEditOptions())

	assert.Empty(t, res.Completed)
	require.Len(t, res.Failed, 4)
	for _, f := range res.Failed {
		assert.Equal(t, model.ErrorCategoryCanceled, f.Category)
	}
	assert.Empty(t, runner.seen)
}

func TestRunBatchEmpty(t *testing.T) {
	res := New(&fakeRunner{}, 3, nil, zerolog.Nop()).RunBatch(context.Background(), nil, 0, model.DefaultEditOptions())
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Completed)
	assert.NotNil(t, res.Failed)
}

func TestRunBatchPassesNotifier(t *testing.T) {
	var events atomic.Int32
	notifier := pipeline.NotifierFunc(func(model.ProgressEvent) { events.Add(1) })
	runner := &fakeRunner{}

	New(runner, 1, notifier, zerolog.Nop()).RunBatch(context.Background(), ids(2), 0, model.DefaultEditOptions())
	require.Len(t, runner.notes, 2)
	runner.notes[0].Notify(model.ProgressEvent{})
	assert.Equal(t, int32(1), events.Load())
}
