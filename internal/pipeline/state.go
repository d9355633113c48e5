package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/makeasinger/autoedit/internal/model"
)

// ErrInvalidTransition is returned for any move the job lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid job state transition")

// forward is the only successor of each non-terminal state besides Failed.
var forward = map[model.JobState]model.JobState{
	model.JobStateQueued:         model.JobStateAnalyzing,
	model.JobStateAnalyzing:      model.JobStatePlanning,
	model.JobStatePlanning:       model.JobStateRendering,
	model.JobStateRendering:      model.JobStatePostProcessing,
	model.JobStatePostProcessing: model.JobStateUploading,
	model.JobStateUploading:      model.JobStateCompleted,
}

// CanTransition reports whether a job may move from one state to another.
// Failed is reachable from every non-terminal state; nothing leaves a terminal
// state.
func CanTransition(from, to model.JobState) bool {
	if from.Terminal() {
		return false
	}
	if to == model.JobStateFailed {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// StateMachine tracks one job's lifecycle.
type StateMachine struct {
	mu    sync.Mutex
	state model.JobState
}

// NewStateMachine starts in Queued.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: model.JobStateQueued}
}

// State returns the current state.
func (m *StateMachine) State() model.JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the given state or returns ErrInvalidTransition.
func (m *StateMachine) Transition(to model.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
