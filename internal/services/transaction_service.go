package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
	"zhangdan/internal/log"
	"zhangdan/internal/monthstore"
)

const maxIDAttempts = 100

// EventPublisher receives an event after every committed shard write.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.TransactionEvent) error
}

// TransactionService implements the ledger operations on top of the month store.
// Each read-modify-write runs under the lock of the shard it touches; there is no
// atomicity across shards. Operations that add ids (Create, CreateBatch, Import)
// are also serialized by idMu, which is taken before any shard lock, so the
// store-wide id check and the write cannot interleave with another insert.
type TransactionService struct {
	store     *monthstore.Store
	proc      *core.Processor
	publisher EventPublisher
	logger    *log.Logger
	audit     *log.StructuredLogger
	now       func() time.Time

	idMu sync.Mutex
}

// NewTransactionService wires the service. publisher may be nil, in which case no events are emitted.
func NewTransactionService(store *monthstore.Store, proc *core.Processor, publisher EventPublisher, logger *log.Logger) *TransactionService {
	if proc == nil {
		proc = core.NewProcessor(nil)
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentTransactions)
	return &TransactionService{
		store:     store,
		proc:      proc,
		publisher: publisher,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// Create validates and stores a single draft in the shard of its date.
func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, key, err := s.proc.Process(d)
	if err != nil {
		return core.Transaction{}, err
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()
	owner, err := s.idIndex(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID, err = s.freeID(t.ID, strings.TrimSpace(d.ID) == "", owner.has)
	if err != nil {
		return core.Transaction{}, err
	}

	err = s.store.WithShard(key, func(sh core.Shard) (core.Shard, bool, error) {
		sh.Transactions = append(sh.Transactions, t)
		return sh, true, nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.audit.LogTransactionWritten(ctx, log.OpCreate, t.ID, key, t.Amount, string(t.Type), t.Classification)
	s.publish(ctx, amqp.EventCreated, key, t)
	return t, nil
}

// CreateBatch stores several drafts. Every draft is validated before anything is written;
// drafts are then grouped by month and each shard is written once.
func (s *TransactionService) CreateBatch(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error) {
	if len(drafts) == 0 {
		return nil, core.ErrEmptyBatch
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()
	owner, err := s.idIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	out := make([]core.Transaction, len(drafts))
	byMonth := map[string][]int{}
	for i, d := range drafts {
		t, key, err := s.proc.Process(d)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		t.ID, err = s.freeID(t.ID, strings.TrimSpace(d.ID) == "", owner.has)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		owner[t.ID] = key
		out[i] = t
		byMonth[key] = append(byMonth[key], i)
	}

	for _, key := range sortedKeys(byMonth) {
		idxs := byMonth[key]
		err := s.store.WithShard(key, func(sh core.Shard) (core.Shard, bool, error) {
			for _, i := range idxs {
				sh.Transactions = append(sh.Transactions, out[i])
			}
			return sh, true, nil
		})
		if err != nil {
			return nil, fmt.Errorf("write batch shard %s: %w", key, err)
		}
		for _, i := range idxs {
			s.publish(ctx, amqp.EventCreated, key, out[i])
		}
	}

	s.logger.InfoContext(ctx, "Batch stored",
		log.FieldOperation, log.OpBatch,
		log.FieldCount, len(out),
		"months", len(byMonth))
	return out, nil
}

// freeID returns id when taken reports it unused. A generated id that is taken is regenerated;
// a client-supplied one is a duplicate.
func (s *TransactionService) freeID(id string, generated bool, taken func(string) bool) (string, error) {
	for attempt := 0; taken(id); attempt++ {
		if !generated || attempt >= maxIDAttempts {
			return "", core.ErrDuplicateID
		}
		id = s.proc.GenerateID()
	}
	return id, nil
}

// CreateFromText parses shorthand like "咖啡15元 午餐60元" and stores the result as a batch.
func (s *TransactionService) CreateFromText(ctx context.Context, text, date string, typ core.TransactionType) ([]core.Transaction, error) {
	if err := core.ValidateDate(core.Draft{Date: date}); err != nil {
		return nil, err
	}
	drafts := core.ParseBatchText(text, date, typ)
	if len(drafts) == 0 {
		return nil, core.ValidationError{Field: "text", Reason: "未识别到任何 描述+金额元 条目"}
	}
	return s.CreateBatch(ctx, drafts)
}

// Query returns the matching transactions ordered by month, then insertion order.
func (s *TransactionService) Query(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	keys, err := s.store.ListShardKeys()
	if err != nil {
		return nil, err
	}
	kept := keys[:0]
	for _, k := range keys {
		if f.MayHoldShard(k) {
			kept = append(kept, k)
		}
	}
	keys = kept

	shards, err := s.store.ReadShards(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := []core.Transaction{}
	for _, sh := range shards {
		for _, t := range sh.Transactions {
			if f.Match(t) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// FindByID scans every shard in month order and returns the first record with id.
func (s *TransactionService) FindByID(ctx context.Context, id string) (core.Location, core.Transaction, error) {
	keys, err := s.store.ListShardKeys()
	if err != nil {
		return core.Location{}, core.Transaction{}, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return core.Location{}, core.Transaction{}, err
		}
		sh, err := s.store.ReadShard(key)
		if err != nil {
			return core.Location{}, core.Transaction{}, err
		}
		if i := sh.IndexOf(id); i >= 0 {
			return core.Location{MonthKey: key, Index: i}, sh.Transactions[i], nil
		}
	}
	return core.Location{}, core.Transaction{}, core.ErrNotFound
}

// Update merges p into the record with id. Moving a record to another month is refused.
func (s *TransactionService) Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error) {
	loc, _, err := s.FindByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if p.Date != nil {
		target, err := core.DeriveMonthKey(*p.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		if target != loc.MonthKey {
			return core.Transaction{}, core.CrossMonthUpdateError{From: loc.MonthKey, To: target}
		}
	}

	var updated core.Transaction
	err = s.store.WithShard(loc.MonthKey, func(sh core.Shard) (core.Shard, bool, error) {
		// the record may have been removed since FindByID
		i := sh.IndexOf(id)
		if i < 0 {
			return sh, false, core.ErrNotFound
		}
		updated = p.Apply(sh.Transactions[i])
		updated.UpdatedAt = s.now().UnixMilli()
		sh.Transactions[i] = updated
		return sh, true, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	s.audit.LogTransactionWritten(ctx, log.OpUpdate, updated.ID, loc.MonthKey, updated.Amount, string(updated.Type), updated.Classification)
	s.publish(ctx, amqp.EventUpdated, loc.MonthKey, updated)
	return updated, nil
}

// Delete removes the record with id and returns it. The order of the remaining records is kept.
func (s *TransactionService) Delete(ctx context.Context, id string) (core.Transaction, error) {
	loc, _, err := s.FindByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	var removed core.Transaction
	err = s.store.WithShard(loc.MonthKey, func(sh core.Shard) (core.Shard, bool, error) {
		i := sh.IndexOf(id)
		if i < 0 {
			return sh, false, core.ErrNotFound
		}
		removed = sh.Transactions[i]
		sh.Transactions = append(sh.Transactions[:i], sh.Transactions[i+1:]...)
		return sh, true, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("delete transaction %s: %w", id, err)
	}

	s.audit.LogTransactionWritten(ctx, log.OpDelete, removed.ID, loc.MonthKey, removed.Amount, string(removed.Type), removed.Classification)
	s.publish(ctx, amqp.EventDeleted, loc.MonthKey, removed)
	return removed, nil
}

// Export returns every shard keyed by month.
func (s *TransactionService) Export(ctx context.Context) (core.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return snap, nil
}

// Summary aggregates one month.
func (s *TransactionService) Summary(ctx context.Context, monthKey string) (core.MonthOverview, error) {
	if !core.ValidMonthKey(monthKey) {
		return core.MonthOverview{}, core.ValidationError{Field: "month", Reason: "必须为 YYYY-MM"}
	}
	sh, err := s.store.ReadShard(monthKey)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.Summarize(monthKey, sh.Transactions), nil
}

// Categories lists the classification labels the classifier can produce.
func (s *TransactionService) Categories() []string {
	return s.proc.Classifier.Categories()
}

// Ready reports whether the store is usable.
func (s *TransactionService) Ready(ctx context.Context) error {
	return s.store.Ping()
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, monthKey string, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	// the shard write already committed; the worker reconciles missed events
	s.publishEvent(ctx, amqp.NewTransactionEvent(kind, monthKey, t))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
