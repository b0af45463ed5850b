//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
)

// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_JournalAppendAndRead(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, Options{
		SpreadsheetID:      spreadsheetID,
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	tx := core.Transaction{
		ID:       "it-" + now.Format("20060102150405"),
		Date:     now.Format(core.DateLayout),
		Type:     core.Expense,
		Amount:   0.01,
		Describe: "integration test",
	}
	ev := amqp.NewTransactionEvent(amqp.EventCreated, now.Format("2006-01"), tx)
	if err := client.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	rows, err := client.ReadJournal(ctx, now.Year())
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	for _, r := range rows {
		if r.EventID == ev.EventID {
			return
		}
	}
	t.Fatalf("event %s not found among %d rows", ev.EventID, len(rows))
}
