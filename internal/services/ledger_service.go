// Package services orchestrates ledger writes across SQLite and AMQP.
package services

import (
	"context"
	"fmt"

	"ropastore/internal/amqp"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/storage"
)

// EntryPublisher announces committed ledger entries to the worker queue.
type EntryPublisher interface {
	PublishLedgerEntry(ctx context.Context, kind string, id int64) error
}

// LedgerService commits sales and expenses to storage, then notifies the
// bookkeeping worker. Publishing is best effort: a queue failure never rolls
// back a committed entry.
type LedgerService struct {
	store     *storage.Store
	publisher EntryPublisher
	logger    *log.Logger
}

func NewLedgerService(store *storage.Store, publisher EntryPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// CommitSale runs the storage transaction and publishes the sale event.
func (s *LedgerService) CommitSale(ctx context.Context, accountID int64, lines []core.LineRequest) (core.Sale, error) {
	sale, err := s.store.CommitSale(ctx, accountID, lines)
	if err != nil {
		return core.Sale{}, err
	}

	if err := s.publish(ctx, amqp.KindSale, sale.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sale event",
			log.FieldSaleID, sale.ID,
			log.FieldError, err)
	}
	return sale, nil
}

// CreateExpense saves the expense and publishes the expense event.
func (s *LedgerService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}

	if err := s.publish(ctx, amqp.KindExpense, saved.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, saved.ID,
			log.FieldError, err)
	}
	return saved, nil
}

func (s *LedgerService) DeleteSale(ctx context.Context, id int64) error {
	return s.store.DeleteSale(ctx, id)
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	return s.store.DeleteExpense(ctx, id)
}

func (s *LedgerService) publish(ctx context.Context, kind string, id int64) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping ledger event",
			"kind", kind, "id", id)
		return nil
	}
	if err := s.publisher.PublishLedgerEntry(ctx, kind, id); err != nil {
		return fmt.Errorf("publish %s %d: %w", kind, id, err)
	}
	return nil
}
