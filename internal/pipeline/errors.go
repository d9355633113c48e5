package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/render"
)

var (
	// ErrSourceMissing means the asset's media could not be located.
	ErrSourceMissing = errors.New("source media not found")
	// ErrUploadMismatch means storage holds a different size than was rendered.
	ErrUploadMismatch = errors.New("uploaded object does not match render")
)

// Error is a terminal pipeline failure.
type Error struct {
	Category model.ErrorCategory
	Stage    model.JobState
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed during %s: %v", e.Category, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError classifies err. Cancellation and verification failures override
// the category the caller proposed.
func newError(stage model.JobState, category model.ErrorCategory, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		category = model.ErrorCategoryCanceled
	case errors.Is(err, render.ErrRenderVerificationFailed), errors.Is(err, ErrUploadMismatch):
		category = model.ErrorCategoryVerification
	}
	return &Error{Category: category, Stage: stage, Err: err}
}

// CategoryOf extracts the failure category from any error the pipeline returns.
func CategoryOf(err error) model.ErrorCategory {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorCategoryCanceled
	}
	return model.ErrorCategoryInternal
}
