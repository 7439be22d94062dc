// Package events publishes ledger domain events after they are committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/money"
)

// Event types double as AMQP routing keys.
const (
	TypeExpenseCreated     = "expense.created"
	TypeExpenseDeleted     = "expense.deleted"
	TypeSettlementRecorded = "settlement.recorded"
)

// Publisher delivers events. Publish is called after the change it
// describes is committed, so a failure never rolls anything back. It must
// not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, event *Envelope) error
	Close() error
}

// Envelope is the wire form of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	GroupID    string          `json:"groupId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type ExpenseCreated struct {
	ExpenseID string       `json:"expenseId"`
	PaidBy    string       `json:"paidBy"`
	Amount    money.Amount `json:"amount"`
	Splits    int          `json:"splits"`
}

type ExpenseDeleted struct {
	ExpenseID string `json:"expenseId"`
	DeletedBy string `json:"deletedBy"`
}

type SettlementRecorded struct {
	SettlementID   string       `json:"settlementId"`
	ExpenseID      string       `json:"expenseId"`
	PayerID        string       `json:"payerId"`
	PayeeID        string       `json:"payeeId"`
	Amount         money.Amount `json:"amount"`
	SplitPaid      bool         `json:"splitPaid"`
	ExpenseSettled bool         `json:"expenseSettled"`
}

// New wraps data in an envelope with a fresh ID.
func New(eventType, groupID string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		GroupID:    groupID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// Decode unmarshals the envelope payload into dst.
func (e *Envelope) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}

// Noop drops every event. It is used when events are disabled.
type Noop struct{}

func (Noop) Publish(context.Context, *Envelope) error { return nil }
func (Noop) Close() error                             { return nil }
