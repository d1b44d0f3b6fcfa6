package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the interface that all LLM implementations must satisfy.
// An empty model selects the provider's configured default.
type Provider interface {
	Complete(ctx context.Context, prompt string, model string) (string, error)
}

// LLMError wraps every failure of a completion call.
type LLMError struct {
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	return e.Message
}

func (e *LLMError) Unwrap() error { return e.Err }

// NewLLMError wraps err into an *LLMError.
func NewLLMError(err error) *LLMError {
	return &LLMError{Message: fmt.Sprintf("Failed to call LLM API: %v", err), Err: err}
}

// IsLLMError reports whether err carries an *LLMError.
func IsLLMError(err error) bool {
	var le *LLMError
	return errors.As(err, &le)
}
