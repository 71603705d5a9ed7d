package storage

import (
	"context"
	"testing"
	"time"

	"ropastore/internal/core"
)

// backdateSale rewrites a sale's timestamp so window tests can place entries
// at known instants.
func backdateSale(t *testing.T, s *Store, id int64, at time.Time) {
	t.Helper()
	if _, err := s.db.Exec(`UPDATE sales SET created_at = ? WHERE id = ?`, formatTime(at), id); err != nil {
		t.Fatalf("backdate sale %d: %v", id, err)
	}
}

func backdateExpense(t *testing.T, s *Store, id int64, at time.Time) {
	t.Helper()
	if _, err := s.db.Exec(`UPDATE expenses SET created_at = ? WHERE id = ?`, formatTime(at), id); err != nil {
		t.Fatalf("backdate expense %d: %v", id, err)
	}
}

func mustCommitSaleAt(t *testing.T, s *Store, accountID, productID int64, qty int, at time.Time) core.Sale {
	t.Helper()
	sale, err := s.CommitSale(context.Background(), accountID, []core.LineRequest{
		{ProductID: productID, Quantity: qty},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	backdateSale(t, s, sale.ID, at)
	return sale
}

func TestListSales_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := mustCreateAccount(t, s, "Alice")
	bob := mustCreateAccount(t, s, "bob")
	shirt := mustCreateProduct(t, s, "Shirt", 1000, 100)

	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local)
	feb := time.Date(2026, 2, 15, 10, 0, 0, 0, time.Local)
	mar := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

	mustCommitSaleAt(t, s, alice.ID, shirt.ID, 1, jan)
	mustCommitSaleAt(t, s, bob.ID, shirt.ID, 2, feb)
	mustCommitSaleAt(t, s, alice.ID, shirt.ID, 3, mar)

	tests := []struct {
		name   string
		filter LedgerFilter
		want   int
	}{
		{"no filter", LedgerFilter{}, 3},
		{"from only", LedgerFilter{From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local)}, 2},
		{"to only", LedgerFilter{To: time.Date(2026, 2, 28, 23, 59, 59, 0, time.Local)}, 2},
		{"from and to", LedgerFilter{
			From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local),
			To:   time.Date(2026, 2, 28, 23, 59, 59, 0, time.Local),
		}, 1},
		{"customer substring case-insensitive", LedgerFilter{Customer: "ali"}, 2},
		{"customer upper-case query", LedgerFilter{Customer: "BOB"}, 1},
		{"customer no match", LedgerFilter{Customer: "carol"}, 0},
		{"window plus customer", LedgerFilter{
			From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
			Customer: "alice",
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales, err := s.ListSales(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list sales: %v", err)
			}
			if len(sales) != tt.want {
				t.Errorf("got %d sales, want %d", len(sales), tt.want)
			}
		})
	}

	t.Run("newest first", func(t *testing.T) {
		sales, err := s.ListSales(ctx, LedgerFilter{})
		if err != nil {
			t.Fatalf("list sales: %v", err)
		}
		for i := 1; i < len(sales); i++ {
			if sales[i].CreatedAt.After(sales[i-1].CreatedAt) {
				t.Errorf("sales not in descending time order at %d", i)
			}
		}
	})
}

func TestListExpenses_Window(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rent, err := s.CreateExpense(ctx, core.Expense{Description: "Rent", Amount: core.Money{Cents: 90000}})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	backdateExpense(t, s, rent.ID, time.Date(2026, 1, 1, 9, 0, 0, 0, time.Local))

	wages, err := s.CreateExpense(ctx, core.Expense{Description: "Wages", Amount: core.Money{Cents: 50000}})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	backdateExpense(t, s, wages.ID, time.Date(2026, 2, 1, 9, 0, 0, 0, time.Local))

	all, err := s.ListExpenses(ctx, LedgerFilter{})
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d expenses, want 2", len(all))
	}
	if all[0].Description != "Wages" {
		t.Errorf("newest first: got %q", all[0].Description)
	}

	// The customer filter only applies to sales.
	filtered, err := s.ListExpenses(ctx, LedgerFilter{Customer: "alice"})
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("customer filter leaked into expenses: got %d, want 2", len(filtered))
	}

	janOnly, err := s.ListExpenses(ctx, LedgerFilter{
		To: time.Date(2026, 1, 31, 23, 59, 59, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(janOnly) != 1 || janOnly[0].Description != "Rent" {
		t.Errorf("window filter: got %+v", janOnly)
	}
}

func TestMonthlySalesTotals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := mustCreateAccount(t, s, "alice")
	shirt := mustCreateProduct(t, s, "Shirt", 1000, 100)

	// Same calendar month across two years lands in one bucket.
	mustCommitSaleAt(t, s, alice.ID, shirt.ID, 1, time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local))
	mustCommitSaleAt(t, s, alice.ID, shirt.ID, 2, time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local))
	mustCommitSaleAt(t, s, alice.ID, shirt.ID, 4, time.Date(2026, 7, 10, 12, 0, 0, 0, time.Local))

	totals, err := s.MonthlySalesTotals(ctx)
	if err != nil {
		t.Fatalf("monthly totals: %v", err)
	}
	if len(totals) != 12 {
		t.Fatalf("got %d buckets, want 12", len(totals))
	}
	for i, mt := range totals {
		if mt.Month != i+1 {
			t.Errorf("bucket %d labelled month %d", i, mt.Month)
		}
	}
	if totals[2].Total.Cents != 3000 {
		t.Errorf("march bucket: got %d, want 3000", totals[2].Total.Cents)
	}
	if totals[6].Total.Cents != 4000 {
		t.Errorf("july bucket: got %d, want 4000", totals[6].Total.Cents)
	}
	if totals[0].Total.Cents != 0 {
		t.Errorf("empty month not zero: %d", totals[0].Total.Cents)
	}
}
