// Package assistant turns a contact's context window into a reply using a
// language-model backend, falling back to a fixed message when the backend fails.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wppbot/internal/conversation"
)

// Generator produces a reply for a prompt. Implementations must honour ctx
// cancellation and deadlines.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt for a Generator. Turns starts with the system turn.
type Request struct {
	Model       string
	Turns       []conversation.Turn
	MaxTokens   int
	Temperature float64
}

// Response is a generated reply.
type Response struct {
	Text string
}

// UpstreamError reports a failed call to a model backend.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out", e.Provider)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimited reports whether the backend rejected the call with HTTP 429.
func (e *UpstreamError) RateLimited() bool { return e.StatusCode == 429 }

// EmptyResponseError is returned when the backend answered without any text.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: empty response", e.Provider)
}

// Classify wraps a provider error as an UpstreamError unless it already is
// one of this package's error types. Context deadlines become timeouts.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var upErr *UpstreamError
	var emptyErr *EmptyResponseError
	if errors.As(err, &upErr) || errors.As(err, &emptyErr) {
		return err
	}
	return &UpstreamError{
		Provider: provider,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}
