package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ropastore/internal/core"
	"ropastore/internal/log"
)

// CreateAccount inserts a new login identity. Username and email collisions
// surface as core.ErrDuplicateName.
func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, email, password_hash, is_admin, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Username, a.Email, a.PasswordHash, a.Admin, a.Active, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("%w: %s", core.ErrDuplicateName, a.Username)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now

	s.logger.InfoContext(ctx, "Account created",
		log.FieldAccountID, id,
		log.FieldUsername, a.Username,
		"admin", a.Admin)

	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_admin, is_active, created_at
		 FROM accounts WHERE id = ?`, id))
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (core.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_admin, is_active, created_at
		 FROM accounts WHERE username = ?`, username))
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, password_hash, is_admin, is_active, created_at
		 FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := s.scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount changes username, email and flags. The password hash is only
// replaced when a non-empty hash is supplied.
func (s *Store) UpdateAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}

	var (
		res sql.Result
		err error
	)
	if a.PasswordHash != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET username = ?, email = ?, password_hash = ?, is_admin = ?, is_active = ?
			 WHERE id = ?`,
			a.Username, a.Email, a.PasswordHash, a.Admin, a.Active, a.ID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET username = ?, email = ?, is_admin = ?, is_active = ?
			 WHERE id = ?`,
			a.Username, a.Email, a.Admin, a.Active, a.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateName, a.Username)
		}
		return fmt.Errorf("update account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, a.ID)
	}
	return nil
}

// DeleteAccount removes an account. Accounts referenced by sales are kept by
// the foreign key; the caller sees the constraint error wrapped.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, id)
	}

	s.logger.InfoContext(ctx, "Account deleted", log.FieldAccountID, id)
	return nil
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// CountCustomers counts non-admin accounts.
func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE is_admin = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAccount(row *sql.Row) (core.Account, error) {
	a, err := s.scanAccountRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account: %w", core.ErrNotFound)
	}
	return a, err
}

func (s *Store) scanAccountRow(row rowScanner) (core.Account, error) {
	var (
		a         core.Account
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Admin, &a.Active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Account{}, err
		}
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = t
	return a, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
