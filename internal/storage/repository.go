// Package storage keeps a SQLite mirror of the month store for reporting.
// The JSON shards stay authoritative; the mirror is rebuilt from them on reconcile.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"zhangdan/internal/core"
)

// MonthTotals aggregates one month of the mirror.
type MonthTotals struct {
	MonthKey string  `json:"monthKey"`
	Income   float64 `json:"income"`
	Expense  float64 `json:"expense"`
	Count    int     `json:"count"`
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the consumer and the reconcile loop
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertSQL = `
INSERT INTO transactions (id, month_key, date, type, kind, classification, amount, describe, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    month_key = excluded.month_key,
    date = excluded.date,
    type = excluded.type,
    kind = excluded.kind,
    classification = excluded.classification,
    amount = excluded.amount,
    describe = excluded.describe,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, monthKey string, t core.Transaction) error {
	kind := t.Type.Kind()
	if !kind.IsValid() {
		return fmt.Errorf("mirror %s: %w", t.ID, core.ErrInvalidType)
	}
	_, err := db.ExecContext(ctx, upsertSQL,
		t.ID, monthKey, t.Date, string(t.Type), string(kind), t.Classification,
		t.Amount, t.Describe, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

// Upsert inserts or replaces one transaction.
func (r *SQLiteRepository) Upsert(ctx context.Context, monthKey string, t core.Transaction) error {
	return upsert(ctx, r.db, monthKey, t)
}

// Delete removes one transaction. Deleting an unknown id is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// Get returns the mirrored transaction with id, or core.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, string, error) {
	var (
		t        core.Transaction
		typ      string
		monthKey string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, month_key, date, type, classification, amount, describe, created_at, updated_at
		FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &monthKey, &t.Date, &typ, &t.Classification, &t.Amount, &t.Describe, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return core.Transaction{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("get transaction %s: %w", id, err)
	}
	t.Type = core.TransactionType(typ)
	return t, monthKey, nil
}

// ReplaceAll swaps the mirror content for snap in one SQL transaction and returns the row count.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, snap core.Snapshot) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return 0, fmt.Errorf("clear mirror: %w", err)
	}
	n := 0
	for key, sh := range snap {
		for _, t := range sh.Transactions {
			if err := upsert(ctx, tx, key, t); err != nil {
				return 0, err
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return n, nil
}

// Count returns the number of mirrored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// MonthTotals sums income and expense of one month.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, monthKey string) (MonthTotals, error) {
	out := MonthTotals{MonthKey: monthKey}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0),
			COUNT(*)
		FROM transactions WHERE month_key = ?`, monthKey).
		Scan(&out.Income, &out.Expense, &out.Count)
	if err != nil {
		return MonthTotals{}, fmt.Errorf("month totals %s: %w", monthKey, err)
	}
	return out, nil
}

// MarkEventProcessed records eventID and reports whether it was new.
// Redelivered events return false so the caller can skip them.
func (r *SQLiteRepository) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (event_id, processed_at) VALUES (?, ?)`,
		eventID, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return n == 1, nil
}

// ForgetEvent removes eventID so a redelivery is processed again.
func (r *SQLiteRepository) ForgetEvent(ctx context.Context, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("forget event %s: %w", eventID, err)
	}
	return nil
}
