package models

import (
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// Settlement is a payment from a split owner to the member who paid the expense.
// Settlements are never updated; they are only appended.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// ExpenseID is the expense this payment is made against.
	ExpenseID string

	// PayerID is the member paying off their share (the debtor).
	PayerID string

	// PayeeID is the member receiving the payment. Always the expense payer.
	PayeeID string

	// Amount is the payment amount; always positive.
	Amount money.Amount

	// Date is when the payment happened, as reported by the payer.
	Date time.Time

	// Method is an optional free-form payment method ("cash", "bank transfer").
	Method string

	// Notes is an optional description.
	Notes string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}
