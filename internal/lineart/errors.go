package lineart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"server/internal/providers/gemini"
)

// FailureKind classifies a generation failure. Classification drives whether
// the adapter retries and whether the attempt was chargeable.
type FailureKind string

const (
	KindQuotaExceeded FailureKind = "quota_exceeded"
	KindInvalidInput  FailureKind = "invalid_input"
	KindTemporary     FailureKind = "temporary_failure"
	KindModel         FailureKind = "model_error"
)

// GenerationError wraps a provider failure with its classified kind.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *GenerationError) Retryable() bool {
	return e.Kind == KindTemporary || e.Kind == KindModel
}

// Chargeable reports whether the provider billed the failed attempt. Quota
// rejections and input rejections are refused before generation starts.
func (e *GenerationError) Chargeable() bool {
	return e.Kind != KindQuotaExceeded && e.Kind != KindInvalidInput
}

// Classify maps a raw provider error onto a FailureKind using the structured
// error surface, never the message text.
func Classify(err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return &GenerationError{Kind: KindQuotaExceeded, Err: err}
		case apiErr.StatusCode == http.StatusBadRequest || apiErr.Status == "INVALID_ARGUMENT":
			return &GenerationError{Kind: KindInvalidInput, Err: err}
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return &GenerationError{Kind: KindTemporary, Err: err}
		default:
			return &GenerationError{Kind: KindModel, Err: err}
		}
	}

	if errors.Is(err, gemini.ErrNoImage) {
		return &GenerationError{Kind: KindModel, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTemporary, Err: err}
	}

	// Transport-level failures (connection resets, DNS) arrive as wrapped
	// url.Error values without API structure.
	return &GenerationError{Kind: KindTemporary, Err: err}
}
