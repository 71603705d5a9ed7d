package storage

import (
	"context"
	"fmt"
	"time"

	"ropastore/internal/core"
)

// LedgerFilter bounds the ledger listings. Zero times mean unbounded on that
// side; Customer is a case-insensitive substring match on the buyer username
// and only applies to sales.
type LedgerFilter struct {
	From     time.Time
	To       time.Time
	Customer string
}

// ListSales returns sale headers inside the filter window, newest first.
func (s *Store) ListSales(ctx context.Context, f LedgerFilter) ([]core.Sale, error) {
	query := `SELECT s.id, s.account_id, a.username, s.total_cents, s.created_at
		 FROM sales s JOIN accounts a ON a.id = s.account_id
		 WHERE 1=1`
	var args []any

	if !f.From.IsZero() {
		query += ` AND s.created_at >= ?`
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND s.created_at <= ?`
		args = append(args, formatTime(f.To))
	}
	if f.Customer != "" {
		query += ` AND LOWER(a.username) LIKE '%' || LOWER(?) || '%'`
		args = append(args, f.Customer)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []core.Sale
	for rows.Next() {
		var (
			sale      core.Sale
			createdAt string
		)
		if err := rows.Scan(&sale.ID, &sale.AccountID, &sale.Username, &sale.Total.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sale.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// ListExpenses returns expenses inside the filter window, newest first. The
// customer filter does not apply to expenses.
func (s *Store) ListExpenses(ctx context.Context, f LedgerFilter) ([]core.Expense, error) {
	query := `SELECT id, description, amount_cents, category, created_at
		 FROM expenses WHERE 1=1`
	var args []any

	if !f.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, formatTime(f.To))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e         core.Expense
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount.Cents, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// MonthlySalesTotals returns twelve buckets, one per calendar month, summing
// sale totals across all years on record.
func (s *Store) MonthlySalesTotals(ctx context.Context) ([]core.MonthTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(strftime('%m', created_at) AS INTEGER) AS month, SUM(total_cents)
		 FROM sales GROUP BY month`)
	if err != nil {
		return nil, fmt.Errorf("monthly sales totals: %w", err)
	}
	defer rows.Close()

	totals := make([]core.MonthTotal, 12)
	for i := range totals {
		totals[i].Month = i + 1
	}
	for rows.Next() {
		var (
			month int
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		if month >= 1 && month <= 12 {
			totals[month-1].Total = core.Money{Cents: cents}
		}
	}
	return totals, rows.Err()
}
