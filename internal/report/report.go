// Package report aggregates the sale and expense ledgers into the figures
// the back office prints: filtered listings with totals and the net result,
// plus a twelve-month sales series.
package report

import (
	"context"
	"fmt"
	"time"

	"ropastore/internal/core"
	"ropastore/internal/storage"
)

// dateLayout is the wire format of the report form's date fields.
const dateLayout = "2006-01-02"

// Window is a half-open-ended reporting window plus the customer filter.
// Zero bounds mean unbounded on that side.
type Window struct {
	From     time.Time
	To       time.Time
	Customer string
}

// ParseWindow builds a Window from raw form values. Unparseable dates are
// treated as absent rather than rejected. When no filter is given at all the
// window defaults to the current local day.
func ParseWindow(fromStr, toStr, customer string, now time.Time) Window {
	w := Window{Customer: customer}

	if t, err := time.ParseInLocation(dateLayout, fromStr, time.Local); err == nil {
		w.From = t
	}
	if t, err := time.ParseInLocation(dateLayout, toStr, time.Local); err == nil {
		// The "to" date is inclusive: extend to the end of that day.
		w.To = endOfDay(t)
	}

	if w.From.IsZero() && w.To.IsZero() && w.Customer == "" {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		w.From = start
		w.To = endOfDay(start)
	}
	return w
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}

// Label describes the window for display, e.g. on the PDF header.
func (w Window) Label() string {
	switch {
	case w.From.IsZero() && w.To.IsZero():
		return "All time"
	case w.To.IsZero():
		return "From " + w.From.Format(dateLayout)
	case w.From.IsZero():
		return "Until " + w.To.Format(dateLayout)
	default:
		return w.From.Format(dateLayout) + " to " + w.To.Format(dateLayout)
	}
}

// Ledger is the slice of the storage layer the engine reads.
type Ledger interface {
	ListSales(ctx context.Context, f storage.LedgerFilter) ([]core.Sale, error)
	ListExpenses(ctx context.Context, f storage.LedgerFilter) ([]core.Expense, error)
	MonthlySalesTotals(ctx context.Context) ([]core.MonthTotal, error)
}

// Summary is one aggregated report: the entries inside the window and their
// totals. Net is sales minus expenses and may be negative.
type Summary struct {
	Window        Window
	Sales         []core.Sale
	Expenses      []core.Expense
	SalesTotal    core.Money
	ExpensesTotal core.Money
	Net           core.Money
	GeneratedAt   time.Time
}

type Engine struct {
	ledger Ledger
}

func NewEngine(ledger Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Aggregate runs both ledgers through the window and totals them. The
// customer filter narrows sales only; expenses always follow just the
// date bounds.
func (e *Engine) Aggregate(ctx context.Context, w Window) (Summary, error) {
	filter := storage.LedgerFilter{From: w.From, To: w.To, Customer: w.Customer}

	sales, err := e.ledger.ListSales(ctx, filter)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate sales: %w", err)
	}
	expenses, err := e.ledger.ListExpenses(ctx, storage.LedgerFilter{From: w.From, To: w.To})
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate expenses: %w", err)
	}

	s := Summary{
		Window:      w,
		Sales:       sales,
		Expenses:    expenses,
		GeneratedAt: time.Now(),
	}
	for _, sale := range sales {
		s.SalesTotal = s.SalesTotal.Add(sale.Total)
	}
	for _, ex := range expenses {
		s.ExpensesTotal = s.ExpensesTotal.Add(ex.Amount)
	}
	s.Net = s.SalesTotal.Sub(s.ExpensesTotal)
	return s, nil
}

// MonthlySales returns the twelve-bucket series for the dashboard chart.
func (e *Engine) MonthlySales(ctx context.Context) ([]core.MonthTotal, error) {
	return e.ledger.MonthlySalesTotals(ctx)
}
