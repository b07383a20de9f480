// Package provider defines the external verification provider contract
// (tax/identity lookups) plus a mock implementation and a circuit-breaker
// wrapper.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Error is a typed provider failure. Transient errors are eligible for retry
// with backoff; permanent ones are surfaced immediately.
type Error struct {
	Code      string
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Provider invokes a verification action against an external system.
type Provider interface {
	Invoke(ctx context.Context, action string, params map[string]string) (json.RawMessage, error)
}
