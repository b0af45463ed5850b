// Package sheets defines the append-only journal of transaction events and its row format.
package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
)

// Header is the first row of every journal sheet.
var Header = []any{"timestamp", "event_id", "kind", "month", "id", "date", "type", "classification", "amount", "describe"}

// JournalRow is one decoded journal line.
type JournalRow struct {
	Timestamp   time.Time
	EventID     string
	Kind        amqp.EventKind
	MonthKey    string
	Transaction core.Transaction
}

// RowFromEvent renders ev in Header column order.
func RowFromEvent(ev *amqp.TransactionEvent) []any {
	t := ev.Transaction
	return []any{
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.EventID,
		string(ev.Kind),
		ev.MonthKey,
		t.ID,
		t.Date,
		string(t.Type),
		t.Classification,
		t.Amount,
		t.Describe,
	}
}

// EventYear picks the year whose sheet receives ev: the transaction's own year when its
// month key parses, otherwise the event timestamp year.
func EventYear(ev *amqp.TransactionEvent) int {
	if len(ev.MonthKey) >= 4 {
		if y, err := strconv.Atoi(ev.MonthKey[:4]); err == nil {
			return y
		}
	}
	return ev.Timestamp.Year()
}

// ParseRow decodes a row as returned by the Sheets API.
func ParseRow(row []any) (JournalRow, error) {
	cols := make([]string, len(Header))
	for i := range cols {
		if i < len(row) {
			cols[i] = strings.TrimSpace(fmt.Sprint(row[i]))
		}
	}
	if cols[1] == "" || cols[4] == "" {
		return JournalRow{}, fmt.Errorf("journal row missing event or transaction id: %v", row)
	}
	ts, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return JournalRow{}, fmt.Errorf("journal row %s: timestamp: %w", cols[1], err)
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(cols[8], ",", "."), 64)
	if err != nil {
		return JournalRow{}, fmt.Errorf("journal row %s: amount: %w", cols[1], err)
	}
	return JournalRow{
		Timestamp: ts,
		EventID:   cols[1],
		Kind:      amqp.EventKind(cols[2]),
		MonthKey:  cols[3],
		Transaction: core.Transaction{
			ID:             cols[4],
			Date:           cols[5],
			Type:           core.TransactionType(cols[6]),
			Classification: cols[7],
			Amount:         amount,
			Describe:       cols[9],
		},
	}, nil
}

// ParseRows decodes a values matrix, skipping the header and rows that do not parse.
func ParseRows(values [][]any) []JournalRow {
	out := make([]JournalRow, 0, len(values))
	for i, row := range values {
		if i == 0 && len(row) > 0 && fmt.Sprint(row[0]) == Header[0] {
			continue
		}
		r, err := ParseRow(row)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}
