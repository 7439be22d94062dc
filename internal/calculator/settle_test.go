package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var groupABC = []string{"alice", "bob", "carol"}

// dinner is a 90.00 expense paid by alice and split three ways.
func dinner() *models.Expense {
	return &models.Expense{
		ID:     "exp-1",
		PaidBy: "alice",
		Amount: money.MustParse("90.00"),
		Splits: []models.ExpenseSplit{
			{ExpenseID: "exp-1", UserID: "alice", Amount: money.MustParse("30.00"), IsPaid: true},
			{ExpenseID: "exp-1", UserID: "bob", Amount: money.MustParse("30.00")},
			{ExpenseID: "exp-1", UserID: "carol", Amount: money.MustParse("30.00")},
		},
	}
}

func settle(payer string, amount string) SettleRequest {
	return SettleRequest{
		ExpenseID: "exp-1",
		PayerID:   payer,
		PayeeID:   "alice",
		Amount:    money.MustParse(amount),
		Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Method:    "cash",
	}
}

func TestPlanSettlement_Errors(t *testing.T) {
	paidBob := dinner()
	paidBob.Splits[1].IsPaid = true

	tests := []struct {
		name    string
		expense *models.Expense
		members []string
		req     SettleRequest
		wantErr error
		kind    error
	}{
		{"unknown expense", nil, groupABC, settle("bob", "30.00"), ErrExpenseNotFound, ErrNotFound},
		{"payer not in group", dinner(), groupABC, settle("mallory", "30.00"), ErrForbidden, ErrAuthorization},
		{"payee is not the expense payer", dinner(), groupABC, SettleRequest{PayerID: "bob", PayeeID: "carol", Amount: money.MustParse("30.00")}, ErrPayeeMismatch, ErrConflict},
		{"member without a share", dinner(), append(groupABC, "dave"), settle("dave", "5.00"), ErrNoShare, ErrConflict},
		{"split already paid", paidBob, groupABC, settle("bob", "30.00"), ErrAlreadyPaid, ErrConflict},
		{"amount above share", dinner(), groupABC, settle("bob", "30.01"), ErrExceedsShare, ErrConflict},
		{"zero amount", dinner(), groupABC, settle("bob", "0"), ErrInvalidAmount, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, err := PlanSettlement(tt.expense, tt.members, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.kind)
			assert.Nil(t, diff)
		})
	}
}

func TestPlanSettlement_CheckOrder(t *testing.T) {
	// Non-member, wrong payee and excessive amount at once: membership is reported first.
	_, err := PlanSettlement(dinner(), groupABC, SettleRequest{PayerID: "mallory", PayeeID: "carol", Amount: money.MustParse("99.00")})
	assert.ErrorIs(t, err, ErrForbidden)

	// Wrong payee and excessive amount: payee is reported before the amount.
	_, err = PlanSettlement(dinner(), groupABC, SettleRequest{PayerID: "bob", PayeeID: "carol", Amount: money.MustParse("99.00")})
	assert.ErrorIs(t, err, ErrPayeeMismatch)
}

func TestPlanSettlement_FullAmountMarksSplitPaid(t *testing.T) {
	expense := dinner()

	diff, err := PlanSettlement(expense, groupABC, settle("bob", "30.00"))
	require.NoError(t, err)
	assert.True(t, diff.MarkSplitPaid)
	assert.False(t, diff.MarkExpenseSettled, "carol still owes")
	assert.Equal(t, "alice", diff.Settlement.PayeeID)
	assert.Equal(t, "cash", diff.Settlement.Method)

	diff.Apply(expense)
	assert.True(t, expense.SplitFor("bob").IsPaid)

	diff, err = PlanSettlement(expense, groupABC, settle("carol", "30.00"))
	require.NoError(t, err)
	assert.True(t, diff.MarkExpenseSettled)

	diff.Apply(expense)
	assert.True(t, expense.IsSettled)
	assert.Len(t, expense.Settlements, 2)
}

func TestPlanSettlement_PartialAmountLeavesSplitUnpaid(t *testing.T) {
	expense := dinner()

	diff, err := PlanSettlement(expense, groupABC, settle("bob", "10.00"))
	require.NoError(t, err)
	assert.False(t, diff.MarkSplitPaid)
	assert.False(t, diff.MarkExpenseSettled)
	assert.Equal(t, money.MustParse("10.00"), diff.Settlement.Amount)

	diff.Apply(expense)
	assert.False(t, expense.SplitFor("bob").IsPaid)
	assert.Len(t, expense.Settlements, 1)

	// Partials never add up to a paid split, and cannot exceed what is left.
	diff, err = PlanSettlement(expense, groupABC, settle("bob", "20.00"))
	require.NoError(t, err)
	assert.False(t, diff.MarkSplitPaid)
	diff.Apply(expense)

	_, err = PlanSettlement(expense, groupABC, settle("bob", "0.01"))
	assert.ErrorIs(t, err, ErrExceedsShare)
}

func TestPlanSettlement_SoleDebtorSettlesExpense(t *testing.T) {
	expense := &models.Expense{
		ID:     "exp-2",
		PaidBy: "alice",
		Amount: money.MustParse("40.00"),
		Splits: []models.ExpenseSplit{
			{UserID: "bob", Amount: money.MustParse("40.00")},
		},
	}

	diff, err := PlanSettlement(expense, groupABC, SettleRequest{PayerID: "bob", PayeeID: "alice", Amount: money.MustParse("40.00")})
	require.NoError(t, err)
	assert.True(t, diff.MarkSplitPaid)
	assert.True(t, diff.MarkExpenseSettled)
}
