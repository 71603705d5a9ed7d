// Package memory is an in-process LedgerAppender used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ropastore/internal/core"
)

type Store struct {
	mu       sync.Mutex
	sales    []core.Sale
	expenses []core.Expense
}

func New() *Store {
	return &Store{}
}

// AppendSale stores the sale and returns a synthetic row reference.
func (s *Store) AppendSale(_ context.Context, sale core.Sale) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
	return fmt.Sprintf("mem:sales:%d", len(s.sales)), nil
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return fmt.Sprintf("mem:expenses:%d", len(s.expenses)), nil
}

// Sales returns a copy of the appended sales.
func (s *Store) Sales() []core.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Sale(nil), s.sales...)
}

// Expenses returns a copy of the appended expenses.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses...)
}
