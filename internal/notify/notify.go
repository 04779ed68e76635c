// Package notify pushes sweep results to connected clients over WebSocket.
package notify

import (
	"sync"
	"time"
)

// Event types published by the scheduler.
const (
	EventReminderSent   = "reminder.sent"
	EventLendingOverdue = "lending.overdue"
)

// Envelope wraps every message sent to a client.
type Envelope struct {
	Type      string                 `json:"type"`
	OwnerID   string                 `json:"owner_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

func newEnvelope(ownerID, eventType string, data map[string]interface{}) Envelope {
	return Envelope{
		Type:      eventType,
		OwnerID:   ownerID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Notifier receives events for one owner.
type Notifier interface {
	Publish(ownerID, eventType string, data map[string]interface{})
}

// Nop discards every event. It is used when no hub is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(string, string, map[string]interface{}) {}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

// Publish appends the event.
func (r *Recorder) Publish(ownerID, eventType string, data map[string]interface{}) {
	r.mu.Lock()
	r.events = append(r.events, newEnvelope(ownerID, eventType, data))
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
