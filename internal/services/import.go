package services

import (
	"context"
	"fmt"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
	"zhangdan/internal/log"
)

type importOp struct {
	update bool
	id     string
	patch  core.Patch
	record core.Transaction
}

// Import upserts a month-keyed snapshot. The snapshot keys are ignored: every record lands in the
// shard derived from its own date. Records without date, amount or type, and updates that would
// change month, are counted as errors and skipped; they never abort the import.
func (s *TransactionService) Import(ctx context.Context, snap core.ImportSnapshot) (core.ImportResult, error) {
	var res core.ImportResult
	if snap == nil {
		return res, core.ErrMissingImport
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()
	owner, err := s.idIndex(ctx)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}

	ops := map[string][]importOp{}
	for _, inKey := range sortedKeys(snap) {
		for _, d := range snap[inKey].Transactions {
			if !core.HasRequiredImportFields(d) {
				res.Errors++
				continue
			}
			if d.ID != "" {
				if key, ok := owner[d.ID]; ok {
					target, err := core.DeriveMonthKey(d.Date)
					if err != nil || target != key || !d.Type.IsValid() {
						res.Errors++
						continue
					}
					ops[key] = append(ops[key], importOp{update: true, id: d.ID, patch: core.PatchFromDraft(d)})
					continue
				}
			}
			t, key, err := s.proc.Process(d)
			if err == nil {
				t.ID, err = s.freeID(t.ID, d.ID == "", owner.has)
			}
			if err != nil {
				res.Errors++
				continue
			}
			owner[t.ID] = key
			ops[key] = append(ops[key], importOp{record: t})
		}
	}

	for _, key := range sortedKeys(ops) {
		var imported, updated, failed int
		var events []*amqp.TransactionEvent
		err := s.store.WithShard(key, func(sh core.Shard) (core.Shard, bool, error) {
			for _, op := range ops[key] {
				if !op.update {
					sh.Transactions = append(sh.Transactions, op.record)
					imported++
					events = append(events, amqp.NewTransactionEvent(amqp.EventCreated, key, op.record))
					continue
				}
				i := sh.IndexOf(op.id)
				if i < 0 {
					failed++
					continue
				}
				merged := op.patch.Apply(sh.Transactions[i])
				merged.UpdatedAt = s.now().UnixMilli()
				sh.Transactions[i] = merged
				updated++
				events = append(events, amqp.NewTransactionEvent(amqp.EventUpdated, key, merged))
			}
			return sh, imported+updated > 0, nil
		})
		if err != nil {
			return res, fmt.Errorf("import shard %s: %w", key, err)
		}
		res.Imported += imported
		res.Updated += updated
		res.Errors += failed
		for _, ev := range events {
			s.publishEvent(ctx, ev)
		}
	}

	s.logger.InfoContext(ctx, "Import finished",
		log.FieldOperation, log.OpImport,
		"imported", res.Imported,
		"updated", res.Updated,
		"errors", res.Errors)
	return res, nil
}

// idOwners maps a transaction id to the month key of its shard.
type idOwners map[string]string

func (o idOwners) has(id string) bool {
	_, ok := o[id]
	return ok
}

// idIndex maps every stored id to its shard. The first occurrence wins, matching FindByID.
func (s *TransactionService) idIndex(ctx context.Context) (idOwners, error) {
	keys, err := s.store.ListShardKeys()
	if err != nil {
		return nil, err
	}
	shards, err := s.store.ReadShards(ctx, keys)
	if err != nil {
		return nil, err
	}
	owner := idOwners{}
	for i, sh := range shards {
		for _, t := range sh.Transactions {
			if _, ok := owner[t.ID]; !ok {
				owner[t.ID] = keys[i]
			}
		}
	}
	return owner, nil
}

func (s *TransactionService) publishEvent(ctx context.Context, ev *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldError, err.Error(),
			log.FieldEventKind, string(ev.Kind),
			log.FieldTransactionID, ev.Transaction.ID)
	}
}
