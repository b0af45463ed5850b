package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
	"zhangdan/internal/log"
	"zhangdan/internal/sheets"
	"zhangdan/internal/storage"
)

// Mirror is the reporting copy kept in step with the month store.
type Mirror interface {
	Upsert(ctx context.Context, monthKey string, t core.Transaction) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (core.Transaction, string, error)
	ReplaceAll(ctx context.Context, snap core.Snapshot) (int, error)
	Count(ctx context.Context) (int, error)
	MonthTotals(ctx context.Context, monthKey string) (storage.MonthTotals, error)
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// SnapshotSource reads the authoritative shards.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
}

// MirrorWorker applies transaction events to the SQLite mirror and the journal,
// and periodically rebuilds the mirror from the month store.
type MirrorWorker struct {
	mirror  Mirror
	journal sheets.JournalWriter
	source  SnapshotSource
	logger  *log.Logger
	audit   *log.StructuredLogger
	now     func() time.Time
}

// Report summarizes the mirror after a reconcile pass.
// JournalRows is -1 when the journal cannot be read back.
type Report struct {
	Mirrored    int
	Snapshot    int
	Month       storage.MonthTotals
	JournalRows int
}

// NewMirrorWorker wires the worker. journal may be nil.
func NewMirrorWorker(mirror Mirror, journal sheets.JournalWriter, source SnapshotSource, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentWorker)
	return &MirrorWorker{
		mirror:  mirror,
		journal: journal,
		source:  source,
		logger:  logger,
		audit:   log.NewStructuredLogger(logger),
		now:     time.Now,
	}
}

// HandleEvent applies one event. Mirror writes are idempotent and always run;
// the journal row is appended once per event id.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	tx := ev.Transaction
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldEventID, ev.EventID,
		log.FieldEventKind, string(ev.Kind),
		log.FieldTransactionID, tx.ID,
		log.FieldMonthKey, ev.MonthKey)

	switch ev.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		stale, err := w.isStale(ctx, tx)
		if err != nil {
			return err
		}
		if stale {
			w.logger.DebugContext(ctx, "Skipping stale event for mirror",
				log.FieldEventID, ev.EventID,
				log.FieldTransactionID, tx.ID)
		} else if err := w.mirror.Upsert(ctx, ev.MonthKey, tx); err != nil {
			return fmt.Errorf("mirror upsert: %w", err)
		}
	case amqp.EventDeleted:
		if err := w.mirror.Delete(ctx, tx.ID); err != nil {
			return fmt.Errorf("mirror delete: %w", err)
		}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	fresh, err := w.mirror.MarkEventProcessed(ctx, ev.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		w.logger.DebugContext(ctx, "Event already journaled", log.FieldEventID, ev.EventID)
		return nil
	}
	if w.journal == nil {
		return nil
	}
	if err := w.journal.AppendEvent(ctx, ev); err != nil {
		// let the redelivery append it
		if ferr := w.mirror.ForgetEvent(ctx, ev.EventID); ferr != nil {
			w.audit.LogError(ctx, "Failed to forget event after journal error", ferr, log.OpAppend,
				log.NewFields().WithEventID(ev.EventID))
		}
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// isStale reports whether the mirror already holds a newer version of t.
func (w *MirrorWorker) isStale(ctx context.Context, t core.Transaction) (bool, error) {
	cur, _, err := w.mirror.Get(ctx, t.ID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mirror lookup: %w", err)
	}
	return cur.UpdatedAt > t.UpdatedAt, nil
}

// Reconcile replaces the mirror content with a fresh snapshot of the month store.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	start := time.Now()
	snap, err := w.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot month store: %w", err)
	}
	n, err := w.mirror.ReplaceAll(ctx, snap)
	if err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror reconciled",
		log.FieldOperation, log.OpReconcile,
		"months", len(snap),
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())

	total := 0
	for _, sh := range snap {
		total += len(sh.Transactions)
	}
	// ids repeated across shards collapse into one mirror row
	rep, err := w.Report(ctx, total)
	if err != nil {
		return err
	}
	if rep.Mirrored != rep.Snapshot {
		w.logger.WarnContext(ctx, "Mirror drifted from month store",
			"mirrored", rep.Mirrored,
			"snapshot", rep.Snapshot)
	}
	return nil
}

// Report reads the mirror back: total rows, the current month's totals and, when the
// journal supports reading, this year's journal rows. snapshot is the record count the
// mirror is expected to hold.
func (w *MirrorWorker) Report(ctx context.Context, snapshot int) (Report, error) {
	now := w.now()
	rep := Report{Snapshot: snapshot, JournalRows: -1}

	n, err := w.mirror.Count(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}
	rep.Mirrored = n

	rep.Month, err = w.mirror.MonthTotals(ctx, now.Format("2006-01"))
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}

	if r, ok := w.journal.(sheets.JournalReader); ok {
		rows, err := r.ReadJournal(ctx, now.Year())
		if err != nil {
			// the journal is best effort; a read failure does not fail the pass
			w.logger.WarnContext(ctx, "Journal read failed", log.FieldError, err)
		} else {
			rep.JournalRows = len(rows)
		}
	}

	w.logger.InfoContext(ctx, "Mirror report",
		log.FieldCount, rep.Mirrored,
		log.FieldMonthKey, rep.Month.MonthKey,
		"monthIncome", rep.Month.Income,
		"monthExpense", rep.Month.Expense,
		"monthCount", rep.Month.Count,
		"journalRows", rep.JournalRows)
	return rep, nil
}

// Run reconciles once at startup and then every interval until ctx is done.
// A failed pass is logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) {
	if err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconcile failed", log.FieldError, err)
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic reconcile failed", log.FieldError, err)
			}
		}
	}
}
