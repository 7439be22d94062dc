package models

import (
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// Expense is an amount one member paid on behalf of others in a group.
// It is loaded together with its splits and settlements as one aggregate.
type Expense struct {
	ID          string
	GroupID     string
	PaidBy      string
	Description string
	Amount      money.Amount
	Date        time.Time
	CreatedAt   int64

	// IsSettled becomes true once every non-payer split is paid.
	IsSettled bool

	Splits      []ExpenseSplit
	Settlements []Settlement
}

// ExpenseSplit is one member's share of an expense.
type ExpenseSplit struct {
	ExpenseID string
	UserID    string
	Amount    money.Amount
	IsPaid    bool
}

// SplitFor returns the split owned by userID, or nil.
func (e *Expense) SplitFor(userID string) *ExpenseSplit {
	for i := range e.Splits {
		if e.Splits[i].UserID == userID {
			return &e.Splits[i]
		}
	}
	return nil
}

// SettledAmount returns the total already paid by userID against this expense.
func (e *Expense) SettledAmount(userID string) money.Amount {
	var total money.Amount
	for _, s := range e.Settlements {
		if s.PayerID == userID {
			total += s.Amount
		}
	}
	return total
}
