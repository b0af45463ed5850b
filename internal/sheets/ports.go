package sheets

import (
	"context"

	"zhangdan/internal/amqp"
)

// Ports for outbound journal adapters.
type (
	// JournalWriter appends one row per transaction event.
	JournalWriter interface {
		AppendEvent(ctx context.Context, ev *amqp.TransactionEvent) error
	}

	// JournalReader returns the journal rows recorded for a year.
	JournalReader interface {
		ReadJournal(ctx context.Context, year int) ([]JournalRow, error)
	}
)
