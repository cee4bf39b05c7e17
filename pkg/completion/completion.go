package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oraculum/oraculum/pkg/conversation"
)

// Gateway turns a full message history into a single assistant reply.
type Gateway interface {
	// Complete makes one completion call with the given history.
	Complete(ctx context.Context, turns []conversation.Turn) (string, error)

	// Provider returns the provider name.
	Provider() string
}

// Options holds the model parameters sent with every completion call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultOptions returns the model parameters the original deployment used.
func DefaultOptions() Options {
	return Options{
		Model:       "gpt-4o-mini",
		Temperature: 0.8,
		MaxTokens:   300,
		Timeout:     20 * time.Second,
	}
}

// ErrEmptyCompletion is returned when the provider responds without any
// choices or content.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// UpstreamError carries the provider HTTP status without exposing the raw
// upstream body to callers.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Message)
}

// IsTimeout reports whether a completion error was caused by the configured
// call timeout, so handlers can answer 504 distinctly.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// New creates a gateway for the named provider.
func New(provider, apiKey string, opts Options) (Gateway, error) {
	switch provider {
	case "openai":
		return NewOpenAIGateway(apiKey, opts), nil
	case "anthropic":
		return NewAnthropicGateway(apiKey, opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
