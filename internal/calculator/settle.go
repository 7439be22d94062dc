package calculator

import (
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// SettleRequest is a payment a member wants to record against an expense.
type SettleRequest struct {
	ExpenseID string
	PayerID   string
	PayeeID   string
	Amount    money.Amount
	Date      time.Time
	Method    string
	Notes     string
}

// SettlementDiff is the state change produced by an accepted settlement.
// The three parts must be committed together.
type SettlementDiff struct {
	// Settlement is the new record to append. ID and CreatedAt are left for
	// the store to assign.
	Settlement models.Settlement

	// MarkSplitPaid flips the payer's split from unpaid to paid.
	MarkSplitPaid bool

	// MarkExpenseSettled flips the expense to settled.
	MarkExpenseSettled bool
}

// PlanSettlement decides whether req may be applied to expense and, if so,
// what changes. members is the current membership of the expense's group.
// A nil expense means it does not exist.
//
// Checks run in a fixed order and the first failure wins. A split only
// becomes paid when a single settlement covers its whole amount; smaller
// payments are recorded but leave the split unpaid.
func PlanSettlement(expense *models.Expense, members []string, req SettleRequest) (*SettlementDiff, error) {
	if expense == nil {
		return nil, fmt.Errorf("%w: %s", ErrExpenseNotFound, req.ExpenseID)
	}
	if !contains(members, req.PayerID) {
		return nil, ErrForbidden
	}
	if req.PayeeID != expense.PaidBy {
		return nil, ErrPayeeMismatch
	}

	split := expense.SplitFor(req.PayerID)
	if split == nil {
		return nil, ErrNoShare
	}
	if split.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: settlement amount must be positive, got %s", ErrInvalidAmount, req.Amount)
	}
	if req.Amount > split.Amount {
		return nil, fmt.Errorf("%w: %s is more than the share of %s", ErrExceedsShare, req.Amount, split.Amount)
	}
	// Earlier partial payments count against the same share.
	if remaining := split.Amount - expense.SettledAmount(req.PayerID); req.Amount > remaining {
		return nil, fmt.Errorf("%w: %s is more than the remaining %s", ErrExceedsShare, req.Amount, remaining)
	}

	diff := &SettlementDiff{
		Settlement: models.Settlement{
			ExpenseID: expense.ID,
			PayerID:   req.PayerID,
			PayeeID:   expense.PaidBy,
			Amount:    req.Amount,
			Date:      req.Date,
			Method:    req.Method,
			Notes:     req.Notes,
		},
		MarkSplitPaid: req.Amount == split.Amount,
	}

	settled := true
	for _, s := range expense.Splits {
		paid := s.IsPaid || (diff.MarkSplitPaid && s.UserID == req.PayerID)
		if !paid && s.UserID != expense.PaidBy {
			settled = false
			break
		}
	}
	diff.MarkExpenseSettled = settled && !expense.IsSettled

	return diff, nil
}

// Apply mutates expense in memory the way a store commits the diff.
func (d *SettlementDiff) Apply(expense *models.Expense) {
	expense.Settlements = append(expense.Settlements, d.Settlement)
	if d.MarkSplitPaid {
		if split := expense.SplitFor(d.Settlement.PayerID); split != nil {
			split.IsPaid = true
		}
	}
	if d.MarkExpenseSettled {
		expense.IsSettled = true
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
