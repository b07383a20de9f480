// Package audit provides the append-only trace sink. Emission never blocks
// the turn loop: events are buffered and written by a background goroutine.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Sink receives one event per turn, tool dispatch, and approval transition.
type Sink interface {
	Emit(event domain.Event)
}

// Nop discards all events.
type Nop struct{}

// Emit discards the event.
func (Nop) Emit(domain.Event) {}

// EventWriter is the storage dependency of StoreSink.
type EventWriter interface {
	AppendEvent(ctx context.Context, event *domain.Event) error
}

// StoreSink buffers events and appends them to the store asynchronously.
// When the buffer is full the event is dropped with a warning rather than
// stalling the caller.
type StoreSink struct {
	writer EventWriter
	ch     chan domain.Event
	done   chan struct{}
	once   sync.Once
}

// NewStoreSink starts the background writer.
func NewStoreSink(writer EventWriter, buffer int) *StoreSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &StoreSink{
		writer: writer,
		ch:     make(chan domain.Event, buffer),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Emit enqueues the event without blocking.
func (s *StoreSink) Emit(event domain.Event) {
	select {
	case s.ch <- event:
	default:
		log.Printf("WARN: audit buffer full, dropping %s event for case %s", event.Type, event.CaseID)
	}
}

// Close flushes buffered events and stops the writer.
func (s *StoreSink) Close() {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
}

func (s *StoreSink) drain() {
	defer close(s.done)
	for event := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.writer.AppendEvent(ctx, &event); err != nil {
			log.Printf("WARN: failed to append audit event %s: %v", event.EventID, err)
		}
		cancel()
	}
}

// NewEvent builds an event with a fresh id and timestamp. Payload marshal
// failures degrade to an empty payload rather than losing the event.
func NewEvent(caseID string, eventType domain.EventType, payload interface{}) domain.Event {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("WARN: failed to marshal %s payload: %v", eventType, err)
		} else {
			raw = data
		}
	}
	return domain.Event{
		EventID: "ev_" + uuid.New().String()[:8],
		CaseID:  caseID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: raw,
	}
}
