package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/money"
)

func TestValidateSplits(t *testing.T) {
	members := []string{"alice", "bob", "carol"}

	tests := []struct {
		name    string
		draft   ExpenseDraft
		wantErr error
	}{
		{
			name: "equal three-way split accepted",
			draft: ExpenseDraft{
				Amount: money.MustParse("90.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "alice", Amount: money.MustParse("30.00")},
					{UserID: "bob", Amount: money.MustParse("30.00")},
					{UserID: "carol", Amount: money.MustParse("30.00")},
				},
			},
		},
		{
			name: "one cent over is rejected",
			draft: ExpenseDraft{
				Amount: money.MustParse("90.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "alice", Amount: money.MustParse("30.00")},
					{UserID: "bob", Amount: money.MustParse("30.00")},
					{UserID: "carol", Amount: money.MustParse("30.01")},
				},
			},
			wantErr: ErrAmountMismatch,
		},
		{
			name: "one cent under is rejected",
			draft: ExpenseDraft{
				Amount: money.MustParse("50.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "alice", Amount: money.MustParse("25.00")},
					{UserID: "bob", Amount: money.MustParse("24.99")},
				},
			},
			wantErr: ErrAmountMismatch,
		},
		{
			name: "non-member participant",
			draft: ExpenseDraft{
				Amount: money.MustParse("20.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "alice", Amount: money.MustParse("10.00")},
					{UserID: "mallory", Amount: money.MustParse("10.00")},
				},
			},
			wantErr: ErrNotAMember,
		},
		{
			name: "payer outside the group",
			draft: ExpenseDraft{
				Amount: money.MustParse("10.00"),
				PaidBy: "mallory",
				Splits: []SplitInput{{UserID: "alice", Amount: money.MustParse("10.00")}},
			},
			wantErr: ErrNotAMember,
		},
		{
			name: "duplicate member",
			draft: ExpenseDraft{
				Amount: money.MustParse("20.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "bob", Amount: money.MustParse("10.00")},
					{UserID: "bob", Amount: money.MustParse("10.00")},
				},
			},
			wantErr: ErrDuplicateSplit,
		},
		{
			name:    "zero expense amount",
			draft:   ExpenseDraft{Amount: 0, PaidBy: "alice", Splits: []SplitInput{{UserID: "alice"}}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "no splits",
			draft:   ExpenseDraft{Amount: money.MustParse("5.00"), PaidBy: "alice"},
			wantErr: ErrNoSplits,
		},
		{
			name: "negative split",
			draft: ExpenseDraft{
				Amount: money.MustParse("5.00"),
				PaidBy: "alice",
				Splits: []SplitInput{
					{UserID: "alice", Amount: money.MustParse("10.00")},
					{UserID: "bob", Amount: money.MustParse("-5.00")},
				},
			},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := ValidateSplits(tt.draft, members)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
				assert.Nil(t, splits)
				return
			}
			require.NoError(t, err)
			assert.Len(t, splits, len(tt.draft.Splits))
		})
	}
}

func TestValidateSplits_PayerSplitStartsPaid(t *testing.T) {
	splits, err := ValidateSplits(ExpenseDraft{
		Amount: money.MustParse("90.00"),
		PaidBy: "bob",
		Splits: []SplitInput{
			{UserID: "alice", Amount: money.MustParse("30.00")},
			{UserID: "bob", Amount: money.MustParse("30.00")},
			{UserID: "carol", Amount: money.MustParse("30.00")},
		},
	}, []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	for _, s := range splits {
		assert.Equal(t, s.UserID == "bob", s.IsPaid, "split for %s", s.UserID)
	}
}

func TestValidateSplits_LargeSharesDoNotWrap(t *testing.T) {
	members := []string{"alice", "bob", "carol"}
	huge := money.FromCents(math.MaxInt64)

	tests := []struct {
		name   string
		amount money.Amount
		splits []money.Amount
	}{
		{
			name:   "three max shares",
			amount: money.FromCents(math.MaxInt64 - 2),
			splits: []money.Amount{huge, huge, huge},
		},
		{
			name:   "second share overshoots",
			amount: money.MaxAmount,
			splits: []money.Amount{money.MaxAmount, money.Cent, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := ExpenseDraft{Amount: tt.amount, PaidBy: "alice"}
			for i, a := range tt.splits {
				draft.Splits = append(draft.Splits, SplitInput{UserID: members[i], Amount: a})
			}
			splits, err := ValidateSplits(draft, members)
			require.ErrorIs(t, err, ErrAmountMismatch)
			assert.Nil(t, splits)
		})
	}
}

func TestValidateSplits_OvershootKeepsCheckOrder(t *testing.T) {
	_, err := ValidateSplits(ExpenseDraft{
		Amount: money.MustParse("10.00"),
		PaidBy: "alice",
		Splits: []SplitInput{
			{UserID: "alice", Amount: money.MustParse("20.00")},
			{UserID: "mallory", Amount: money.MustParse("1.00")},
		},
	}, []string{"alice", "bob"})
	require.ErrorIs(t, err, ErrNotAMember)
}

func TestEqualSplit(t *testing.T) {
	t.Run("even division", func(t *testing.T) {
		splits, err := EqualSplit(money.MustParse("90.00"), []string{"alice", "bob", "carol"})
		require.NoError(t, err)
		for _, s := range splits {
			assert.Equal(t, money.MustParse("30.00"), s.Amount)
		}
	})

	t.Run("leftover cents go to the first participants", func(t *testing.T) {
		splits, err := EqualSplit(money.MustParse("100.00"), []string{"alice", "bob", "carol"})
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("33.34"), splits[0].Amount)
		assert.Equal(t, money.MustParse("33.33"), splits[1].Amount)
		assert.Equal(t, money.MustParse("33.33"), splits[2].Amount)

		var total money.Amount
		for _, s := range splits {
			total += s.Amount
		}
		assert.Equal(t, money.MustParse("100.00"), total)
	})

	t.Run("equal split always validates", func(t *testing.T) {
		members := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace"}
		splits, err := EqualSplit(money.MustParse("12.34"), members)
		require.NoError(t, err)
		_, err = ValidateSplits(ExpenseDraft{Amount: money.MustParse("12.34"), PaidBy: "alice", Splits: splits}, members)
		assert.NoError(t, err)
	})

	t.Run("no participants", func(t *testing.T) {
		_, err := EqualSplit(money.MustParse("10.00"), nil)
		assert.ErrorIs(t, err, ErrNoSplits)
	})
}
