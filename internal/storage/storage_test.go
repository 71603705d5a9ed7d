package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"ropastore/internal/core"
	"ropastore/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := log.New(log.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})

	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateAccount(t *testing.T, s *Store, username string) core.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), core.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", username, err)
	}
	return a
}

func mustCreateProduct(t *testing.T, s *Store, name string, priceCents int64, stock int) core.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), core.Product{
		Name:  name,
		Price: core.Money{Cents: priceCents},
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}
