package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Category groups products. Name is unique across the catalog.
	Category struct {
		ID          int64
		Name        string
		Description string
	}

	// Product is a catalog entry. Price and Stock are the source of truth
	// for every sale; the cart only carries display snapshots.
	Product struct {
		ID          int64
		Name        string
		Description string
		Price       Money
		Stock       int
		Image       string
		Featured    bool
		CreatedAt   time.Time
		CategoryID  *int64
	}

	// Account is a login identity. Admin accounts can reach the back office.
	Account struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		Admin        bool
		Active       bool
		CreatedAt    time.Time
	}

	// Sale is the persisted header of one completed transaction.
	// Total always equals the sum of its lines' subtotals.
	Sale struct {
		ID        int64
		AccountID int64
		Username  string
		Total     Money
		CreatedAt time.Time
		Lines     []SaleLine
	}

	// SaleLine is one product/quantity entry of a Sale. UnitPrice is the
	// catalog price at commit time; lines are never mutated after creation.
	SaleLine struct {
		ID          int64
		SaleID      int64
		ProductID   int64
		ProductName string
		Quantity    int
		UnitPrice   Money
		Subtotal    Money
	}

	// Expense is a standalone ledger entry with no relation to sales.
	Expense struct {
		ID          int64
		Description string
		Amount      Money
		Category    string
		CreatedAt   time.Time
	}

	// LineRequest is one requested sale line as submitted to CommitSale.
	LineRequest struct {
		ProductID int64
		Quantity  int
	}

	// MonthTotal is one bucket of the twelve-month sales series.
	MonthTotal struct {
		Month int // 1-12
		Total Money
	}
)

var (
	ErrEmptyCart         = errors.New("no sale lines submitted")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyDescription  = errors.New("empty description")
	ErrDuplicateName     = errors.New("name already in use")
)

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return errors.New("product name too long (max 100 characters)")
	}
	if p.Price.Cents < 0 {
		return ErrInvalidAmount
	}
	if p.Stock < 0 {
		return errors.New("stock cannot be negative")
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("empty username")
	}
	if !strings.Contains(a.Email, "@") {
		return errors.New("invalid email")
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 255 {
		return errors.New("description too long (max 255 characters)")
	}
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (lr LineRequest) Validate() error {
	if lr.ProductID <= 0 {
		return fmt.Errorf("%w: product id %d", ErrProductNotFound, lr.ProductID)
	}
	if lr.Quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, lr.Quantity)
	}
	return nil
}
