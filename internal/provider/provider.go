package provider

import (
	"context"
	"errors"
	"fmt"
)

// MockModel is the reserved model selection that bypasses the upstream
// provider entirely and yields deterministic canned output.
const MockModel = "mock-api"

// Sentinel errors for the failure taxonomy of a completion call. Callers
// classify with errors.Is and decide on remediation; the gateway itself never
// retries.
var (
	ErrNotConfigured = errors.New("completion provider credential not configured")
	ErrRateLimited   = errors.New("upstream rate limit exceeded")
	ErrTimeout       = errors.New("completion request timed out")
)

// UpstreamError reports a non-2xx or malformed response from the completion
// service. The body is kept to aid debugging.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream completion error: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream completion error: %s", e.Body)
}

// Request describes one completion call. Model carries the user-facing
// friendly name; the provider translates it to the upstream identifier.
type Request struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Result is the completion text plus authoritative usage counts when the
// upstream reports them (zero otherwise).
type Result struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Completer performs exactly one completion attempt per call.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// StreamCompleter is the optional incremental variant: fragments arrive on the
// channel in order and the channel is closed after the final fragment. A
// failure mid-stream is delivered on the error channel before close.
type StreamCompleter interface {
	CompleteStream(ctx context.Context, req Request) (<-chan string, <-chan error, error)
}
