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

// CommitSale turns a list of line requests into a persisted sale inside a
// single transaction. Each line re-reads the catalog price at commit time,
// decrements stock conditionally and records a unit price snapshot. Any
// failing line aborts the whole sale.
func (s *Store) CommitSale(ctx context.Context, accountID int64, lines []core.LineRequest) (core.Sale, error) {
	if len(lines) == 0 {
		return core.Sale{}, core.ErrEmptyCart
	}
	for _, lr := range lines {
		if err := lr.Validate(); err != nil {
			return core.Sale{}, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Sale{}, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sales (account_id, total_cents, created_at) VALUES (?, 0, ?)`,
		accountID, formatTime(now))
	if err != nil {
		return core.Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return core.Sale{}, fmt.Errorf("sale insert id: %w", err)
	}

	sale := core.Sale{
		ID:        saleID,
		AccountID: accountID,
		CreatedAt: now,
	}

	var total core.Money
	for _, lr := range lines {
		var (
			name       string
			priceCents int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT name, price_cents FROM products WHERE id = ?`, lr.ProductID).
			Scan(&name, &priceCents)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Sale{}, fmt.Errorf("product %d: %w", lr.ProductID, core.ErrProductNotFound)
		}
		if err != nil {
			return core.Sale{}, fmt.Errorf("read product %d: %w", lr.ProductID, err)
		}

		// Conditional decrement; zero rows affected means the remaining
		// stock cannot cover the requested quantity.
		decRes, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
			lr.Quantity, lr.ProductID, lr.Quantity)
		if err != nil {
			return core.Sale{}, fmt.Errorf("decrement stock for product %d: %w", lr.ProductID, err)
		}
		n, err := decRes.RowsAffected()
		if err != nil {
			return core.Sale{}, fmt.Errorf("decrement stock rows: %w", err)
		}
		if n == 0 {
			return core.Sale{}, fmt.Errorf("%w: product %q, requested %d", core.ErrInsufficientStock, name, lr.Quantity)
		}

		unitPrice := core.Money{Cents: priceCents}
		subtotal := unitPrice.Mul(lr.Quantity)

		lineRes, err := tx.ExecContext(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price_cents, subtotal_cents)
			 VALUES (?, ?, ?, ?, ?)`,
			saleID, lr.ProductID, lr.Quantity, unitPrice.Cents, subtotal.Cents)
		if err != nil {
			return core.Sale{}, fmt.Errorf("insert sale line: %w", err)
		}
		lineID, err := lineRes.LastInsertId()
		if err != nil {
			return core.Sale{}, fmt.Errorf("sale line insert id: %w", err)
		}

		sale.Lines = append(sale.Lines, core.SaleLine{
			ID:          lineID,
			SaleID:      saleID,
			ProductID:   lr.ProductID,
			ProductName: name,
			Quantity:    lr.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sales SET total_cents = ? WHERE id = ?`, total.Cents, saleID); err != nil {
		return core.Sale{}, fmt.Errorf("store sale total: %w", err)
	}
	sale.Total = total

	if err := tx.Commit(); err != nil {
		return core.Sale{}, fmt.Errorf("commit sale: %w", err)
	}

	s.logger.InfoContext(ctx, "Sale committed",
		log.FieldSaleID, saleID,
		log.FieldAccountID, accountID,
		log.FieldTotalCents, total.Cents,
		"lines", len(sale.Lines))

	return sale, nil
}

// GetSale loads a sale header with its lines. The account username is joined
// in for display.
func (s *Store) GetSale(ctx context.Context, id int64) (core.Sale, error) {
	var (
		sale      core.Sale
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.account_id, a.username, s.total_cents, s.created_at
		 FROM sales s JOIN accounts a ON a.id = s.account_id
		 WHERE s.id = ?`, id).
		Scan(&sale.ID, &sale.AccountID, &sale.Username, &sale.Total.Cents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Sale{}, fmt.Errorf("sale %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Sale{}, fmt.Errorf("get sale: %w", err)
	}
	sale.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return core.Sale{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.sale_id, l.product_id, p.name, l.quantity, l.unit_price_cents, l.subtotal_cents
		 FROM sale_lines l JOIN products p ON p.id = l.product_id
		 WHERE l.sale_id = ?
		 ORDER BY l.id`, id)
	if err != nil {
		return core.Sale{}, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line core.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.UnitPrice.Cents, &line.Subtotal.Cents); err != nil {
			return core.Sale{}, fmt.Errorf("scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, line)
	}
	return sale, rows.Err()
}

// DeleteSale removes a sale and, through the schema, its lines. Stock taken
// by the sale is not restored.
func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sale rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sale %d: %w", id, core.ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Sale deleted", log.FieldSaleID, id)
	return nil
}

func (s *Store) CountSales(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}

// CountSalesInMonth counts sales whose calendar month matches, across all
// years, the same bucketing the monthly series uses.
func (s *Store) CountSalesInMonth(ctx context.Context, month time.Month) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales WHERE CAST(strftime('%m', created_at) AS INTEGER) = ?`,
		int(month)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sales in month: %w", err)
	}
	return n, nil
}

func (s *Store) TotalRevenue(ctx context.Context) (core.Money, error) {
	var cents int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_cents), 0) FROM sales`).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("total revenue: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
