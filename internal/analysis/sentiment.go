package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/makeasinger/autoedit/internal/model"
)

// ErrTextIntelligenceUnavailable is returned by the no-op text model.
var ErrTextIntelligenceUnavailable = errors.New("text intelligence unavailable")

// TextIntelligence reads sentiment, emotions and energy from free text.
type TextIntelligence interface {
	AnalyzeText(ctx context.Context, text string) (*model.Sentiment, error)
}

// NoopTextIntelligence is wired when no text model is configured.
type NoopTextIntelligence struct{}

func (NoopTextIntelligence) AnalyzeText(context.Context, string) (*model.Sentiment, error) {
	return nil, ErrTextIntelligenceUnavailable
}

// AnalyzeSentiment asks the text model about the transcript, retrying with
// backoff. It returns nil when there is no transcript or the model keeps failing.
func AnalyzeSentiment(ctx context.Context, ti TextIntelligence, transcript string, policy RetryPolicy) (*model.Sentiment, error) {
	if ti == nil || strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	if _, ok := ti.(NoopTextIntelligence); ok {
		return nil, nil
	}

	s, err := retry(ctx, policy, func() (*model.Sentiment, error) {
		return ti.AnalyzeText(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}
	if s != nil {
		s.Energy = min(10, max(0, s.Energy))
	}
	return s, nil
}
