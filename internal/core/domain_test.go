package core

import (
	"errors"
	"strings"
	"testing"
)

func TestProductValidate(t *testing.T) {
	valid := Product{Name: "Shirt", Price: Money{Cents: 1500}, Stock: 3}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid product rejected: %v", err)
	}

	cases := []struct {
		name string
		p    Product
		want error
	}{
		{"empty name", Product{Name: "  ", Price: Money{Cents: 1}}, ErrEmptyName},
		{"negative price", Product{Name: "x", Price: Money{Cents: -1}}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.p.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}

	if err := (Product{Name: "x", Stock: -1}).Validate(); err == nil {
		t.Error("negative stock accepted")
	}
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{Description: "Rent", Amount: Money{Cents: 30000}, Category: "fixed"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}
	if err := (Expense{Description: "", Amount: Money{Cents: 1}}).Validate(); !errors.Is(err, ErrEmptyDescription) {
		t.Error("empty description accepted")
	}
	if err := (Expense{Description: "x", Amount: Money{Cents: 0}}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Error("zero amount accepted")
	}
	long := Expense{Description: strings.Repeat("a", 256), Amount: Money{Cents: 1}}
	if err := long.Validate(); err == nil {
		t.Error("overlong description accepted")
	}
}

func TestLineRequestValidate(t *testing.T) {
	if err := (LineRequest{ProductID: 1, Quantity: 2}).Validate(); err != nil {
		t.Fatalf("valid line rejected: %v", err)
	}
	if err := (LineRequest{ProductID: 0, Quantity: 1}).Validate(); !errors.Is(err, ErrProductNotFound) {
		t.Error("zero product id accepted")
	}
	if err := (LineRequest{ProductID: 1, Quantity: 0}).Validate(); !errors.Is(err, ErrInvalidQuantity) {
		t.Error("zero quantity accepted")
	}
}

func TestAccountValidate(t *testing.T) {
	if err := (Account{Username: "ana", Email: "ana@example.com"}).Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}
	if err := (Account{Username: "", Email: "a@b"}).Validate(); err == nil {
		t.Error("empty username accepted")
	}
	if err := (Account{Username: "ana", Email: "nope"}).Validate(); err == nil {
		t.Error("mail without @ accepted")
	}
}
