package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Breaker wraps a Provider with a circuit breaker. After tripThreshold
// consecutive failures the circuit opens for the cooldown window; while open,
// invocations return the last known successful payload for the action instead
// of hitting the provider.
type Breaker struct {
	inner         Provider
	tripThreshold int
	cooldown      time.Duration
	now           func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	lastKnown map[string]json.RawMessage
}

// NewBreaker wraps the provider.
func NewBreaker(inner Provider, tripThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		inner:         inner,
		tripThreshold: tripThreshold,
		cooldown:      cooldown,
		now:           time.Now,
		lastKnown:     make(map[string]json.RawMessage),
	}
}

// Invoke calls the wrapped provider unless the circuit is open.
func (b *Breaker) Invoke(ctx context.Context, action string, params map[string]string) (json.RawMessage, error) {
	b.mu.Lock()
	if b.now().Before(b.openUntil) {
		cached, ok := b.lastKnown[action]
		b.mu.Unlock()
		if ok {
			return wrapLastKnown(cached), nil
		}
		return nil, &Error{Code: "circuit_open", Message: "provider circuit open and no cached status", Transient: true}
	}
	b.mu.Unlock()

	payload, err := b.inner.Invoke(ctx, action, params)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.tripThreshold {
			b.openUntil = b.now().Add(b.cooldown)
			b.failures = 0
		}
		return nil, err
	}
	b.failures = 0
	b.lastKnown[action] = payload
	return payload, nil
}

func wrapLastKnown(payload json.RawMessage) json.RawMessage {
	wrapped, err := json.Marshal(map[string]json.RawMessage{
		"last_known_status": payload,
	})
	if err != nil {
		return payload
	}
	return wrapped
}
