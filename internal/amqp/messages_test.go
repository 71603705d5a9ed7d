package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEntryMessage(t *testing.T) {
	msg := NewLedgerEntryMessage(KindSale, 42)

	if msg.Kind != KindSale {
		t.Errorf("kind: got %q", msg.Kind)
	}
	if msg.ID != 42 {
		t.Errorf("id: got %d", msg.ID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("timestamp not recent")
	}
}

func TestLedgerEntryMessage_JSON(t *testing.T) {
	msg := &LedgerEntryMessage{
		Kind:      KindExpense,
		ID:        7,
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := LedgerEntryMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Kind != msg.Kind || parsed.ID != msg.ID || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
}

func TestLedgerEntryMessageFromJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"wrong type", `{"kind": "sale", "id": "nope"}`},
		{"unknown kind", `{"kind": "refund", "id": 1}`},
		{"zero id", `{"kind": "sale", "id": 0}`},
		{"negative id", `{"kind": "expense", "id": -4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LedgerEntryMessageFromJSON([]byte(tt.body)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
