// Package memory is an in-process journal used when no spreadsheet is configured, and in tests.
package memory

import (
	"context"
	"sync"

	"zhangdan/internal/amqp"
	ports "zhangdan/internal/sheets"
)

// Journal keeps journal rows in memory, grouped by year.
type Journal struct {
	mu     sync.Mutex
	byYear map[int][][]any
	limit  int
}

var (
	_ ports.JournalWriter = (*Journal)(nil)
	_ ports.JournalReader = (*Journal)(nil)
)

// New returns a journal keeping at most limit rows per year; limit <= 0 means unbounded.
func New(limit int) *Journal {
	return &Journal{byYear: map[int][][]any{}, limit: limit}
}

// AppendEvent stores the row that a spreadsheet journal would receive.
func (j *Journal) AppendEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	year := ports.EventYear(ev)
	j.mu.Lock()
	defer j.mu.Unlock()
	rows := append(j.byYear[year], ports.RowFromEvent(ev))
	if j.limit > 0 && len(rows) > j.limit {
		rows = rows[len(rows)-j.limit:]
	}
	j.byYear[year] = rows
	return nil
}

// ReadJournal decodes the rows of a year.
func (j *Journal) ReadJournal(_ context.Context, year int) ([]ports.JournalRow, error) {
	j.mu.Lock()
	rows := append([][]any(nil), j.byYear[year]...)
	j.mu.Unlock()
	return ports.ParseRows(rows), nil
}

// Len returns the number of rows kept across all years.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, rows := range j.byYear {
		n += len(rows)
	}
	return n
}
