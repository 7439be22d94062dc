package calculator

import (
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// MemberBalance is one member's aggregate position in a group.
type MemberBalance struct {
	MemberID  string
	Net       money.Amount // Positive = owed money, Negative = owes money
	TotalPaid money.Amount // Expenses paid plus settlements paid out
	TotalOwed money.Amount // Split shares plus settlements received
}

// BalanceVector holds one entry per group member, in membership order.
type BalanceVector []MemberBalance

// Total returns the sum of all net balances. It is zero for consistent data.
func (v BalanceVector) Total() money.Amount {
	var total money.Amount
	for _, b := range v {
		total += b.Net
	}
	return total
}

// Net returns the net balance of memberID, or zero if absent.
func (v BalanceVector) Net(memberID string) money.Amount {
	for _, b := range v {
		if b.MemberID == memberID {
			return b.Net
		}
	}
	return 0
}

// ComputeBalances aggregates a group's expenses and settlements into a net
// balance per member.
//
// Algorithm:
// - Every member starts at zero
// - For each expense: payer is credited the full amount, each split owner is
// debited their share (the payer's own share nets against the credit)
// - For each settlement: payer is credited, payee is debited
//
// Anyone who is not in members is skipped. The result does not depend on
// the order of expenses or settlements.
func ComputeBalances(members []string, expenses []models.Expense) BalanceVector {
	balances := make(BalanceVector, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		balances[i] = MemberBalance{MemberID: m}
		index[m] = i
	}

	credit := func(id string, amount money.Amount) {
		if i, ok := index[id]; ok {
			balances[i].TotalPaid += amount
		}
	}
	debit := func(id string, amount money.Amount) {
		if i, ok := index[id]; ok {
			balances[i].TotalOwed += amount
		}
	}

	for _, expense := range expenses {
		credit(expense.PaidBy, expense.Amount)
		for _, split := range expense.Splits {
			debit(split.UserID, split.Amount)
		}
		for _, s := range expense.Settlements {
			credit(s.PayerID, s.Amount)
			debit(s.PayeeID, s.Amount)
		}
	}

	for i := range balances {
		balances[i].Net = balances[i].TotalPaid - balances[i].TotalOwed
	}
	return balances
}

// CalculateGroupBalances computes the balance vector and the simplified
// transfer plan for a group in one call.
func CalculateGroupBalances(members []string, expenses []models.Expense) (BalanceVector, []Transfer) {
	balances := ComputeBalances(members, expenses)
	return balances, Simplify(balances)
}
