package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"ropastore/internal/core"
	"ropastore/internal/storage"
)

// fakeLedger serves canned entries, applying the same filter semantics the
// storage layer does.
type fakeLedger struct {
	sales    []core.Sale
	expenses []core.Expense
	monthly  []core.MonthTotal
}

func (f *fakeLedger) ListSales(_ context.Context, filter storage.LedgerFilter) ([]core.Sale, error) {
	var out []core.Sale
	for _, s := range f.sales {
		if !filter.From.IsZero() && s.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.CreatedAt.After(filter.To) {
			continue
		}
		if filter.Customer != "" &&
			!strings.Contains(strings.ToLower(s.Username), strings.ToLower(filter.Customer)) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeLedger) ListExpenses(_ context.Context, filter storage.LedgerFilter) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedger) MonthlySalesTotals(context.Context) ([]core.MonthTotal, error) {
	return f.monthly, nil
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 14, 30, 0, 0, time.Local)

	tests := []struct {
		name             string
		from, to, cust   string
		wantFrom, wantTo time.Time
	}{
		{
			name:     "no filters defaults to current day",
			wantFrom: time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local),
			wantTo:   time.Date(2026, 8, 30, 23, 59, 59, 999999000, time.Local),
		},
		{
			name:     "from only leaves to unbounded",
			from:     "2026-01-01",
			wantFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
		},
		{
			name:   "to only leaves from unbounded, inclusive end of day",
			to:     "2026-06-30",
			wantTo: time.Date(2026, 6, 30, 23, 59, 59, 999999000, time.Local),
		},
		{
			name:     "both bounds",
			from:     "2026-01-01",
			to:       "2026-01-31",
			wantFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
			wantTo:   time.Date(2026, 1, 31, 23, 59, 59, 999999000, time.Local),
		},
		{
			name: "customer only disables the default day window",
			cust: "alice",
		},
		{
			name:     "bad dates are ignored, not rejected",
			from:     "not-a-date",
			to:       "31/01/2026",
			cust:     "alice",
			wantFrom: time.Time{},
			wantTo:   time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ParseWindow(tt.from, tt.to, tt.cust, now)
			if !w.From.Equal(tt.wantFrom) {
				t.Errorf("from: got %v, want %v", w.From, tt.wantFrom)
			}
			if !w.To.Equal(tt.wantTo) {
				t.Errorf("to: got %v, want %v", w.To, tt.wantTo)
			}
			if w.Customer != tt.cust {
				t.Errorf("customer: got %q, want %q", w.Customer, tt.cust)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local)
	feb := time.Date(2026, 2, 15, 10, 0, 0, 0, time.Local)

	ledger := &fakeLedger{
		sales: []core.Sale{
			{ID: 1, Username: "alice", Total: core.Money{Cents: 5000}, CreatedAt: jan},
			{ID: 2, Username: "bob", Total: core.Money{Cents: 3000}, CreatedAt: feb},
		},
		expenses: []core.Expense{
			{ID: 1, Description: "Rent", Amount: core.Money{Cents: 2000}, CreatedAt: jan},
			{ID: 2, Description: "Wages", Amount: core.Money{Cents: 4000}, CreatedAt: feb},
		},
	}
	engine := NewEngine(ledger)
	ctx := context.Background()

	t.Run("unbounded window totals everything", func(t *testing.T) {
		s, err := engine.Aggregate(ctx, Window{})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if s.SalesTotal.Cents != 8000 {
			t.Errorf("sales total: got %d", s.SalesTotal.Cents)
		}
		if s.ExpensesTotal.Cents != 6000 {
			t.Errorf("expenses total: got %d", s.ExpensesTotal.Cents)
		}
		if s.Net.Cents != 2000 {
			t.Errorf("net: got %d", s.Net.Cents)
		}
	})

	t.Run("date bounds narrow both ledgers", func(t *testing.T) {
		s, err := engine.Aggregate(ctx, Window{
			From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local),
		})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if len(s.Sales) != 1 || len(s.Expenses) != 1 {
			t.Fatalf("got %d sales, %d expenses", len(s.Sales), len(s.Expenses))
		}
		if s.Net.Cents != 3000-4000 {
			t.Errorf("net: got %d, want -1000", s.Net.Cents)
		}
	})

	t.Run("customer filter narrows sales only", func(t *testing.T) {
		s, err := engine.Aggregate(ctx, Window{Customer: "ALI"})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if len(s.Sales) != 1 || s.Sales[0].Username != "alice" {
			t.Fatalf("sales: %+v", s.Sales)
		}
		if len(s.Expenses) != 2 {
			t.Errorf("customer filter leaked into expenses: %d", len(s.Expenses))
		}
		if s.SalesTotal.Cents != 5000 {
			t.Errorf("sales total: got %d", s.SalesTotal.Cents)
		}
	})

	t.Run("empty window yields zero totals", func(t *testing.T) {
		s, err := engine.Aggregate(ctx, Window{
			From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.Local),
		})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if s.SalesTotal.Cents != 0 || s.ExpensesTotal.Cents != 0 || s.Net.Cents != 0 {
			t.Errorf("totals not zero: %+v", s)
		}
	})
}

func TestWindowLabel(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		want string
	}{
		{"all time", Window{}, "All time"},
		{"from only", Window{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)}, "From 2026-01-01"},
		{"to only", Window{To: time.Date(2026, 6, 30, 23, 59, 59, 0, time.Local)}, "Until 2026-06-30"},
		{"both", Window{
			From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
			To:   time.Date(2026, 1, 31, 23, 59, 59, 0, time.Local),
		}, "2026-01-01 to 2026-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Label(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
