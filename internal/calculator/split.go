package calculator

import (
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// SplitInput is one proposed share of an expense.
type SplitInput struct {
	UserID string
	Amount money.Amount
}

// ExpenseDraft is an expense as submitted, before any record exists.
type ExpenseDraft struct {
	Amount money.Amount
	PaidBy string
	Splits []SplitInput
}

// ValidateSplits checks that a proposed expense is well formed against the
// current group membership and returns the splits to persist.
//
// The sum of the split amounts must equal the expense amount exactly; there
// is no tolerance. The payer's own split comes back already paid.
func ValidateSplits(draft ExpenseDraft, members []string) ([]models.ExpenseSplit, error) {
	if !draft.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: expense amount must be positive, got %s", ErrInvalidAmount, draft.Amount)
	}
	if len(draft.Splits) == 0 {
		return nil, ErrNoSplits
	}

	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	if !memberSet[draft.PaidBy] {
		return nil, fmt.Errorf("%w: payer %s", ErrNotAMember, draft.PaidBy)
	}

	seen := make(map[string]bool, len(draft.Splits))
	splits := make([]models.ExpenseSplit, 0, len(draft.Splits))
	var total money.Amount
	over := false
	for _, in := range draft.Splits {
		if !memberSet[in.UserID] {
			return nil, fmt.Errorf("%w: user %s", ErrNotAMember, in.UserID)
		}
		if seen[in.UserID] {
			return nil, fmt.Errorf("%w: user %s", ErrDuplicateSplit, in.UserID)
		}
		if in.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: split for %s is negative", ErrInvalidAmount, in.UserID)
		}
		seen[in.UserID] = true
		// total never exceeds draft.Amount, so the addition cannot wrap.
		if over || in.Amount > draft.Amount-total {
			over = true
		} else {
			total += in.Amount
		}

		splits = append(splits, models.ExpenseSplit{
			UserID: in.UserID,
			Amount: in.Amount,
			IsPaid: in.UserID == draft.PaidBy,
		})
	}

	if over {
		return nil, fmt.Errorf("%w: splits total more than the expense amount %s", ErrAmountMismatch, draft.Amount)
	}
	if total != draft.Amount {
		return nil, fmt.Errorf("%w: splits total %s, expense is %s", ErrAmountMismatch, total, draft.Amount)
	}

	return splits, nil
}

// EqualSplit divides amount evenly among participants. Leftover cents go one
// each to the first participants in order, so the shares always add up to
// amount exactly.
func EqualSplit(amount money.Amount, participants []string) ([]SplitInput, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", ErrNoSplits)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: expense amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	n := int64(len(participants))
	base := amount.Cents() / n
	remainder := amount.Cents() % n

	splits := make([]SplitInput, len(participants))
	for i, p := range participants {
		share := base
		if int64(i) < remainder {
			share++
		}
		splits[i] = SplitInput{UserID: p, Amount: money.FromCents(share)}
	}
	return splits, nil
}
