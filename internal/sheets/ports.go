// Package sheets defines the outbound port for mirroring ledger entries into
// the bookkeeping spreadsheet.
package sheets

import (
	"context"

	"ropastore/internal/core"
)

// LedgerAppender writes committed ledger entries to an external book. The
// returned row reference identifies where the entry landed.
type LedgerAppender interface {
	AppendSale(ctx context.Context, s core.Sale) (rowRef string, err error)
	AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
}
