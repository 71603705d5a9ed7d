package worker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"ropastore/internal/amqp"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/sheets/memory"
	"ropastore/internal/storage"
)

func newTestWorker(t *testing.T) (*LedgerWorker, *storage.Store, *memory.Store) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	book := memory.New()
	return NewLedgerWorker(store, book, logger), store, book
}

func TestHandleMessage_Sale(t *testing.T) {
	w, store, book := newTestWorker(t)
	ctx := context.Background()

	buyer, err := store.CreateAccount(ctx, core.Account{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", Active: true,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	shirt, err := store.CreateProduct(ctx, core.Product{
		Name: "Shirt", Price: core.Money{Cents: 1000}, Stock: 10,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	sale, err := store.CommitSale(ctx, buyer.ID, []core.LineRequest{
		{ProductID: shirt.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	msg := amqp.NewLedgerEntryMessage(amqp.KindSale, sale.ID)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	mirrored := book.Sales()
	if len(mirrored) != 1 {
		t.Fatalf("mirrored %d sales, want 1", len(mirrored))
	}
	if mirrored[0].Total.Cents != 2000 || mirrored[0].Username != "alice" {
		t.Errorf("mirrored sale: %+v", mirrored[0])
	}
}

func TestHandleMessage_Expense(t *testing.T) {
	w, store, book := newTestWorker(t)
	ctx := context.Background()

	e, err := store.CreateExpense(ctx, core.Expense{
		Description: "Rent", Amount: core.Money{Cents: 90000},
	})
	if err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	msg := amqp.NewLedgerEntryMessage(amqp.KindExpense, e.ID)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(book.Expenses()) != 1 {
		t.Fatalf("mirrored %d expenses, want 1", len(book.Expenses()))
	}
}

func TestHandleMessage_DeletedEntrySkipped(t *testing.T) {
	w, _, book := newTestWorker(t)
	ctx := context.Background()

	// The entry no longer exists; the message is dropped without error so
	// the queue does not retry forever.
	msg := amqp.NewLedgerEntryMessage(amqp.KindSale, 999)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("missing sale should be skipped: %v", err)
	}
	if len(book.Sales()) != 0 {
		t.Error("phantom sale mirrored")
	}
}

func TestHandleMessage_UnknownKind(t *testing.T) {
	w, _, _ := newTestWorker(t)

	msg := &amqp.LedgerEntryMessage{Kind: "refund", ID: 1}
	if err := w.HandleMessage(context.Background(), msg); err == nil {
		t.Error("unknown kind accepted")
	}
}
