package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/yurifrl/splitsync/pkg/directory"
	"github.com/yurifrl/splitsync/pkg/filter"
	"github.com/yurifrl/splitsync/pkg/models"
	"github.com/yurifrl/splitsync/pkg/store"
)

// Run performs one synchronization: groups, expenses, then every expense
// through transform, filter, dedup and insert. The heartbeat is sent only
// once every record has been processed.
//
// The returned report is never nil. An error means the run aborted, was
// cancelled, or the heartbeat failed; per-record failures only show in the
// report.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		State:     StateInit,
		StartedAt: time.Now(),
	}
	report.ReadOnly = store.IsReadOnly(e.sink)
	logger := e.logger.With("run_id", report.RunID)
	defer func() {
		report.FinishedAt = time.Now()
		report.count()
	}()

	groups, err := e.ledger.ListGroups(ctx)
	if err != nil {
		report.State = StateAbortedAtInit
		report.Error = err.Error()
		logger.Error("failed to list groups", "error", err)
		return report, fmt.Errorf("list groups: %w", err)
	}
	dir := directory.Build(groups)
	report.Groups = dir.Len()
	logger.Debug("built group directory", "groups", dir.Len())

	report.State = StateFetch
	txs, err := e.fetch(ctx)
	if err != nil {
		report.State = StateAbortedAtFetch
		report.Error = err.Error()
		logger.Error("failed to fetch expenses", "error", err)
		return report, fmt.Errorf("fetch expenses: %w", err)
	}
	logger.Info("expenses to process", "count", len(txs))

	report.State = StatePerRecord
	report.Entries = e.processAll(ctx, logger, txs, dir)

	if err := ctx.Err(); err != nil {
		report.Error = err.Error()
		return report, err
	}
	report.State = StateCompleted
	report.count()
	logger.Info("sync complete",
		"total", report.Counts.Total,
		"inserted", report.Counts.Inserted,
		"would_insert", report.Counts.WouldInsert,
		"exists", report.Counts.Exists,
		"filtered", report.Counts.Filtered,
		"failed", report.Counts.Failed,
	)

	if e.opts.SkipHeartbeat {
		return report, nil
	}
	sent, err := e.pinger.Ping(ctx)
	if err != nil {
		report.Error = err.Error()
		logger.Error("failed to send heartbeat", "error", err)
		return report, err
	}
	report.HeartbeatSent = sent
	return report, nil
}

func (e *Executor) fetch(ctx context.Context) ([]models.RawTransaction, error) {
	if len(e.opts.GroupIDs) == 0 {
		return e.ledger.ListTransactions(ctx, nil, e.opts.FetchLimit)
	}
	var all []models.RawTransaction
	for _, id := range e.opts.GroupIDs {
		id := id
		txs, err := e.ledger.ListTransactions(ctx, &id, e.opts.FetchLimit)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", id, err)
		}
		all = append(all, txs...)
	}
	return all, nil
}

func (e *Executor) processAll(ctx context.Context, logger *log.Logger, txs []models.RawTransaction, dir *directory.Directory) []Entry {
	entries := make([]Entry, len(txs))
	if e.opts.Workers <= 1 {
		for i, raw := range txs {
			entries[i] = e.process(ctx, logger, raw, dir)
		}
		return entries
	}

	p := pool.New().WithMaxGoroutines(e.opts.Workers)
	for i, raw := range txs {
		i, raw := i, raw
		p.Go(func() {
			entries[i] = e.process(ctx, logger, raw, dir)
		})
	}
	p.Wait()
	return entries
}

// process never fails the run; every problem ends up in the entry.
func (e *Executor) process(ctx context.Context, logger *log.Logger, raw models.RawTransaction, dir *directory.Directory) (entry Entry) {
	entry = Entry{SourceID: raw.ID, Description: raw.Description}
	logger = logger.With("source_id", raw.ID)

	fail := func(msg string, err error) Entry {
		logger.Error(msg, "description", raw.Description, "error", err)
		entry.Status = Failed
		entry.Err = fmt.Errorf("expense %d: %w", raw.ID, err)
		entry.Error = err.Error()
		return entry
	}
	defer func() {
		if rec := recover(); rec != nil {
			entry = fail("panic while processing expense", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail("run cancelled", err)
	}

	record, err := e.transformer.Transform(ctx, raw, dir)
	if err != nil {
		return fail("failed to transform expense", err)
	}
	entry.Record = record

	if reason := e.policy.Reason(record, raw); reason != filter.Keep {
		logger.Debug("expense filtered", "description", raw.Description, "reason", reason)
		entry.Status = Filtered
		entry.Reason = reason
		return entry
	}

	res, err := e.gate.Lookup(ctx, raw.ID)
	switch res {
	case store.Exists:
		logger.Debug("expense exists")
		entry.Status = Exists
		return entry
	case store.LookupFailed:
		if !e.opts.DedupFailOpen {
			return fail("dedup lookup failed", err)
		}
		logger.Warn("dedup lookup failed, inserting anyway", "error", err)
	}

	ins, err := e.sink.Insert(ctx, record)
	if err != nil {
		if !errors.Is(err, store.ErrWriteFailed) {
			err = fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
		}
		return fail("failed to insert expense", err)
	}
	if !ins.Inserted {
		entry.Status = WouldInsert
		return entry
	}
	logger.Info("inserted expense", "description", raw.Description, "amount", record.Amount.StringFixed(2), "id", ins.ID)
	entry.Status = Inserted
	entry.InsertedID = ins.ID
	return entry
}
