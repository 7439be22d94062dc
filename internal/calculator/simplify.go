package calculator

import (
	"sort"

	"github.com/mmynk/splitledger/internal/money"
)

// Transfer is a single payment in a settlement plan.
type Transfer struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount money.Amount
}

type position struct {
	member  string
	balance money.Amount
}

// Simplify reduces a balance vector to a list of transfers that brings every
// member to zero.
//
// Greedy matching: debtors sorted most negative first, creditors largest
// first, ties kept in input order. Two cursors walk the lists and each step
// moves min(|debt|, credit) from the current debtor to the current creditor.
// The result has at most debtors+creditors-1 entries. It is deterministic but
// not guaranteed to be the smallest possible plan.
//
// Transfers of a single cent are treated as dust and not emitted.
func Simplify(balances BalanceVector) []Transfer {
	var debtors, creditors []position
	for _, b := range balances {
		switch {
		case b.Net.IsNegative():
			debtors = append(debtors, position{member: b.MemberID, balance: b.Net})
		case b.Net.IsPositive():
			creditors = append(creditors, position{member: b.MemberID, balance: b.Net})
		}
	}

	sort.SliceStable(debtors, func(a, b int) bool { return debtors[a].balance < debtors[b].balance })
	sort.SliceStable(creditors, func(a, b int) bool { return creditors[a].balance > creditors[b].balance })

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := money.Min(debtors[i].balance.Abs(), creditors[j].balance)

		if amount > money.Cent {
			transfers = append(transfers, Transfer{
				From:   debtors[i].member,
				To:     creditors[j].member,
				Amount: amount,
			})
		}

		debtors[i].balance += amount
		creditors[j].balance -= amount

		if debtors[i].balance.Abs() < money.Cent {
			i++
		}
		if creditors[j].balance < money.Cent {
			j++
		}
	}

	return transfers
}
