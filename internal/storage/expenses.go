package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ropastore/internal/core"
	"ropastore/internal/log"
)

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (description, amount_cents, category, created_at)
		 VALUES (?, ?, ?, ?)`,
		e.Description, e.Amount.Cents, e.Category, formatTime(now))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now

	s.logger.InfoContext(ctx, "Expense saved",
		log.FieldExpenseID, id,
		"description", e.Description,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e         core.Expense
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, description, amount_cents, category, created_at
		 FROM expenses WHERE id = ?`, id).
		Scan(&e.ID, &e.Description, &e.Amount.Cents, &e.Category, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	return nil
}

func (s *Store) CountExpenses(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (s *Store) TotalExpenses(ctx context.Context) (core.Money, error) {
	var cents int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses`).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("total expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
