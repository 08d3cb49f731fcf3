// Package oracle wraps external text-generation services behind a typed
// request/response boundary for semantic trial matching. Responses are
// schema-validated before acceptance; anything malformed degrades to
// ErrUnavailable so callers fall back to deterministic-only results.
package oracle

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the oracle cannot produce a usable
// evaluation: unreachable service, timeout, open circuit, or a response
// that fails validation. Callers treat it as "no semantic augmentation",
// never as a matching failure.
var ErrUnavailable = errors.New("semantic oracle unavailable")

// Generator produces a raw completion for a prompt. Implementations exist
// for Ollama/OpenAI-compatible endpoints and for Gemini.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Capability describes a configured oracle. It is constructed once at
// startup and passed to consumers explicitly; there is no process-wide
// availability flag.
type Capability struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Unavailable is the capability of a system with no oracle configured.
func Unavailable() Capability {
	return Capability{Available: false}
}

// NewCapability describes a reachable oracle backend.
func NewCapability(backend, model string) Capability {
	return Capability{Available: true, Backend: backend, Model: model}
}
