package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Mock is a scriptable in-process Provider for tests and local runs. Calls
// are counted per action; failures can be injected ahead of time.
type Mock struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	failures  map[string][]error
	calls     map[string]int
}

// NewMock returns a Mock with canned responses for the built-in verification
// actions.
func NewMock() *Mock {
	return &Mock{
		responses: map[string]json.RawMessage{
			"identity.verify":  json.RawMessage(`{"match":true,"confidence":0.97}`),
			"tax.lookup":       json.RawMessage(`{"tax_id_valid":true,"jurisdiction":"MX"}`),
			"sanctions.screen": json.RawMessage(`{"listed":false}`),
			"account.freeze":   json.RawMessage(`{"frozen":true}`),
		},
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// SetResponse overrides the canned payload for an action.
func (m *Mock) SetResponse(action string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[action] = payload
}

// FailNext queues errors returned by the next invocations of the action, in
// order, before canned responses resume.
func (m *Mock) FailNext(action string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[action] = append(m.failures[action], errs...)
}

// Calls returns how many times the action was invoked.
func (m *Mock) Calls(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[action]
}

// Invoke returns the queued failure or canned response for the action.
func (m *Mock) Invoke(ctx context.Context, action string, _ map[string]string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: "timeout", Message: err.Error(), Transient: true}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[action]++

	if queue := m.failures[action]; len(queue) > 0 {
		err := queue[0]
		m.failures[action] = queue[1:]
		return nil, err
	}
	if payload, ok := m.responses[action]; ok {
		return payload, nil
	}
	return nil, &Error{Code: "unknown_action", Message: fmt.Sprintf("no provider for %s", action)}
}
