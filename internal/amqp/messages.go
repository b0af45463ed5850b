package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zhangdan/internal/core"
)

// EventKind names the mutation carried by a TransactionEvent.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// TransactionEvent is published after a shard write commits.
// Deleted events carry the record as it was before removal.
type TransactionEvent struct {
	EventID     string           `json:"eventId"`
	Kind        EventKind        `json:"kind"`
	MonthKey    string           `json:"monthKey"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewTransactionEvent stamps a fresh event id and timestamp.
func NewTransactionEvent(kind EventKind, monthKey string, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		EventID:     uuid.NewString(),
		Kind:        kind,
		MonthKey:    monthKey,
		Transaction: t,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Kind {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.Transaction.ID == "" {
		return nil, fmt.Errorf("event %s has no transaction id", ev.EventID)
	}
	return &ev, nil
}
