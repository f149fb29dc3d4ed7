package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	LoanCreated         EventType = "loan.created"
	LoanStatusChanged   EventType = "loan.status_changed"
	TransactionRecorded EventType = "transaction.recorded"
)

func (t EventType) IsValid() bool {
	switch t {
	case LoanCreated, LoanStatusChanged, TransactionRecorded:
		return true
	}
	return false
}

var ErrMalformedEvent = errors.New("malformed event")

// Event is a lightweight notification. ID names the affected record; the
// worker fetches the full record from the store.
type Event struct {
	Type      EventType       `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StatusChange is the payload of loan.status_changed.
type StatusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewEvent builds an event; payload may be nil.
func NewEvent(t EventType, id string, payload any) (*Event, error) {
	e := &Event{Type: t, ID: id, Timestamp: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		e.Payload = raw
	}
	return e, nil
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformedEvent, e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

// EventFromJSON parses and validates an event body.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if !e.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, e.Type)
	}
	if e.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	return &e, nil
}
