// Package worker mirrors committed ledger entries into the bookkeeping
// spreadsheet. It consumes the ledger entry queue and looks each entry up in
// storage, so the queue only ever carries IDs.
package worker

import (
	"context"
	"errors"
	"fmt"

	"ropastore/internal/amqp"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/sheets"
	"ropastore/internal/storage"
)

type LedgerWorker struct {
	store    *storage.Store
	appender sheets.LedgerAppender
	logger   *log.Logger
}

func NewLedgerWorker(store *storage.Store, appender sheets.LedgerAppender, logger *log.Logger) *LedgerWorker {
	return &LedgerWorker{
		store:    store,
		appender: appender,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage mirrors one ledger entry. An entry that has been deleted
// since the message was queued is skipped, not retried.
func (w *LedgerWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerEntryMessage) error {
	switch msg.Kind {
	case amqp.KindSale:
		return w.handleSale(ctx, msg.ID)
	case amqp.KindExpense:
		return w.handleExpense(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown ledger entry kind %q", msg.Kind)
	}
}

func (w *LedgerWorker) handleSale(ctx context.Context, id int64) error {
	sale, err := w.store.GetSale(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Sale gone before sync, skipping", log.FieldSaleID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sale %d: %w", id, err)
	}

	ref, err := w.appender.AppendSale(ctx, sale)
	if err != nil {
		return fmt.Errorf("append sale %d: %w", id, err)
	}

	w.logger.InfoContext(ctx, "Sale mirrored to bookkeeping",
		log.FieldSaleID, id,
		"row_ref", ref)
	return nil
}

func (w *LedgerWorker) handleExpense(ctx context.Context, id int64) error {
	expense, err := w.store.GetExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Expense gone before sync, skipping", log.FieldExpenseID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", id, err)
	}

	ref, err := w.appender.AppendExpense(ctx, expense)
	if err != nil {
		return fmt.Errorf("append expense %d: %w", id, err)
	}

	w.logger.InfoContext(ctx, "Expense mirrored to bookkeeping",
		log.FieldExpenseID, id,
		"row_ref", ref)
	return nil
}
