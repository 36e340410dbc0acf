package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/mode"
	"github.com/suPer8Hu/orgai/internal/queue"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingUser    = fmt.Errorf("%w: user is required", ErrInvalidRequest)
	ErrEmptyPrompt    = fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	ErrNoLedger       = errors.New("job ledger disabled")
)

// JobError is a terminal job failure as seen by a client.
type JobError struct {
	Code    string
	Message string
}

func (e *JobError) Error() string { return e.Code + ": " + e.Message }

// Error codes sent to clients.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeInvalidMode         = "invalid_mode"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamError       = "upstream_error"
	CodeTimeout             = "timeout"
	CodeUnavailable         = "unavailable"
	CodeCanceled            = "canceled"
	CodeInternal            = "internal"
)

// Describe maps an error to a stable code and a message fit for end users.
// Internal details never leave through it.
func Describe(err error) (code, message string) {
	var jobErr *JobError
	switch {
	case err == nil:
		return "", ""
	case errors.As(err, &jobErr):
		return jobErr.Code, jobErr.Message
	case errors.Is(err, ErrMissingUser):
		return CodeInvalidRequest, "A user identifier is required."
	case errors.Is(err, ErrEmptyPrompt):
		return CodeInvalidRequest, "Please enter a question."
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest, "The request is invalid."
	case errors.Is(err, mode.ErrModeDisabled):
		return CodeInvalidMode, "That mode is not enabled on this server."
	case errors.Is(err, mode.ErrInvalidMode):
		return CodeInvalidMode, "Unknown mode. Use policy, schema or documentation."
	case errors.Is(err, queue.ErrTimeout):
		return CodeTimeout, "The request took too long. Please try again."
	case errors.Is(err, queue.ErrClosed):
		return CodeUnavailable, "The server is shutting down. Please try again shortly."
	case errors.Is(err, ai.ErrUpstreamUnavailable):
		return CodeUpstreamUnavailable, "The language model is not reachable right now. Please try again."
	case errors.Is(err, ai.ErrUpstreamError):
		return CodeUpstreamError, "The language model returned an error. Please try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled, "The request was cancelled."
	default:
		return CodeInternal, "Something went wrong. Please try again."
	}
}
