package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ledger entry kinds carried on the queue.
const (
	KindSale    = "sale"
	KindExpense = "expense"
)

// LedgerEntryMessage announces one committed ledger entry. It carries only
// the kind and ID; the worker fetches the full record from the database.
type LedgerEntryMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEntryMessage(kind string, id int64) *LedgerEntryMessage {
	return &LedgerEntryMessage{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEntryMessage) Validate() error {
	if m.Kind != KindSale && m.Kind != KindExpense {
		return fmt.Errorf("unknown ledger entry kind %q", m.Kind)
	}
	if m.ID <= 0 {
		return fmt.Errorf("invalid ledger entry id %d", m.ID)
	}
	return nil
}

func (m *LedgerEntryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEntryMessageFromJSON(data []byte) (*LedgerEntryMessage, error) {
	var msg LedgerEntryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
