package service

import (
	"context"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
)

func balancesByID(resp *rpc.GetGroupBalancesResponse) map[string]money.Amount {
	out := make(map[string]money.Amount)
	for _, b := range resp.Balances {
		out[b.Member.ID] = b.Net
	}
	return out
}

func TestGroupBalances_EqualSplitDinner(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	ctx := context.Background()

	createDinner(t, groupID, alice, alice, bob, carol)

	resp, err := bob.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)

	assert.Equal(t, map[string]money.Amount{
		alice.id: money.MustParse("60.00"),
		bob.id:   money.MustParse("-30.00"),
		carol.id: money.MustParse("-30.00"),
	}, balancesByID(resp.Msg))

	require.Len(t, resp.Msg.Transfers, 2)
	assert.Equal(t, bob.id, resp.Msg.Transfers[0].From.ID)
	assert.Equal(t, "bob", resp.Msg.Transfers[0].From.Name)
	assert.Equal(t, alice.id, resp.Msg.Transfers[0].To.ID)
	assert.Equal(t, money.MustParse("30.00"), resp.Msg.Transfers[0].Amount)
	assert.Equal(t, carol.id, resp.Msg.Transfers[1].From.ID)
	assert.Equal(t, alice.id, resp.Msg.Transfers[1].To.ID)
	assert.Equal(t, money.MustParse("30.00"), resp.Msg.Transfers[1].Amount)
}

func TestSettleExpense_FullShare(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	ctx := context.Background()

	expense := createDinner(t, groupID, alice, alice, bob, carol)

	settled, err := bob.ledger.SettleExpense(ctx, connect.NewRequest(&rpc.SettleExpenseRequest{
		ExpenseID: expense.ID,
		PayerID:   bob.id,
		PayeeID:   alice.id,
		Amount:    money.MustParse("30.00"),
		Method:    "cash",
	}))
	require.NoError(t, err)
	assert.True(t, settled.Msg.SplitPaid)
	assert.False(t, settled.Msg.ExpenseSettled)
	assert.Equal(t, "cash", settled.Msg.Settlement.Method)

	got, err := alice.ledger.GetExpense(ctx, connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	for _, sp := range got.Msg.Expense.Splits {
		switch sp.User.ID {
		case alice.id, bob.id:
			assert.True(t, sp.IsPaid, "split of %s", sp.User.Name)
		case carol.id:
			assert.False(t, sp.IsPaid)
		}
	}
	require.Len(t, got.Msg.Expense.Settlements, 1)

	resp, err := carol.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, map[string]money.Amount{
		alice.id: money.MustParse("30.00"),
		bob.id:   0,
		carol.id: money.MustParse("-30.00"),
	}, balancesByID(resp.Msg))
	require.Len(t, resp.Msg.Transfers, 1)
	assert.Equal(t, carol.id, resp.Msg.Transfers[0].From.ID)
	assert.Equal(t, alice.id, resp.Msg.Transfers[0].To.ID)
	assert.Equal(t, money.MustParse("30.00"), resp.Msg.Transfers[0].Amount)

	t.Run("last share settles the expense", func(t *testing.T) {
		resp, err := carol.ledger.SettleExpense(ctx, connect.NewRequest(&rpc.SettleExpenseRequest{
			ExpenseID: expense.ID,
			PayeeID:   alice.id,
			Amount:    money.MustParse("30.00"),
		}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.ExpenseSettled)

		balances, err := alice.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
		require.NoError(t, err)
		assert.Empty(t, balances.Msg.Transfers)
	})

	assert.Equal(t, []string{
		events.TypeExpenseCreated,
		events.TypeSettlementRecorded,
		events.TypeSettlementRecorded,
	}, env.publisher.types())
}

func TestCreateExpense_AmountMismatch(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, _ := setupGroup(t, env)
	ctx := context.Background()

	_, err := alice.ledger.CreateExpense(ctx, connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID:     groupID,
		Description: "Tickets",
		Amount:      money.MustParse("50.00"),
		Splits: []rpc.SplitInput{
			{UserID: alice.id, Amount: money.MustParse("25.00")},
			{UserID: bob.id, Amount: money.MustParse("24.99")},
		},
	}))
	requireCode(t, connect.CodeInvalidArgument, err)
	assert.Contains(t, err.Error(), "sum of split amounts")

	list, err := alice.ledger.ListGroupExpenses(ctx, connect.NewRequest(&rpc.ListGroupExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses)
	assert.Empty(t, env.publisher.types())
}

func TestCreateExpense(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	outsider := env.register(t, "mallory")
	ctx := context.Background()

	t.Run("explicit splits", func(t *testing.T) {
		resp, err := bob.ledger.CreateExpense(ctx, connect.NewRequest(&rpc.CreateExpenseRequest{
			GroupID:     groupID,
			PaidBy:      bob.id,
			Description: "Groceries",
			Amount:      money.MustParse("10.00"),
			Date:        "2024-05-02",
			Splits: []rpc.SplitInput{
				{UserID: bob.id, Amount: money.MustParse("3.34")},
				{UserID: carol.id, Amount: money.MustParse("6.66")},
			},
		}))
		require.NoError(t, err)
		e := resp.Msg.Expense
		assert.Equal(t, "2024-05-02", e.Date)
		assert.Equal(t, "bob", e.PaidBy.Name)
		require.Len(t, e.Splits, 2)
		assert.True(t, e.Splits[0].IsPaid)
		assert.False(t, e.Splits[1].IsPaid)
	})

	t.Run("equal split spreads leftover cents", func(t *testing.T) {
		resp, err := alice.ledger.CreateExpense(ctx, connect.NewRequest(&rpc.CreateExpenseRequest{
			GroupID:      groupID,
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			Participants: []string{alice.id, bob.id, carol.id},
		}))
		require.NoError(t, err)
		var amounts []money.Amount
		for _, sp := range resp.Msg.Expense.Splits {
			amounts = append(amounts, sp.Amount)
		}
		assert.Equal(t, []money.Amount{334, 333, 333}, amounts)
	})

	tests := []struct {
		name string
		user *testUser
		req  *rpc.CreateExpenseRequest
		code connect.Code
	}{
		{
			name: "caller outside group",
			user: outsider,
			req: &rpc.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: 100,
				Participants: []string{outsider.id}},
			code: connect.CodePermissionDenied,
		},
		{
			name: "participant outside group",
			user: alice,
			req: &rpc.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: 100,
				Participants: []string{alice.id, outsider.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "unknown group",
			user: alice,
			req:  &rpc.CreateExpenseRequest{GroupID: "nope", Description: "x", Amount: 100},
			code: connect.CodeNotFound,
		},
		{
			name: "missing description",
			user: alice,
			req:  &rpc.CreateExpenseRequest{GroupID: groupID, Amount: 100, Participants: []string{alice.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "bad date",
			user: alice,
			req: &rpc.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: 100, Date: "05/01/2024",
				Participants: []string{alice.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "zero amount",
			user: alice,
			req:  &rpc.CreateExpenseRequest{GroupID: groupID, Description: "x", Participants: []string{alice.id}},
			code: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.user.ledger.CreateExpense(ctx, connect.NewRequest(tt.req))
			requireCode(t, tt.code, err)
		})
	}
}

func TestSettleExpense_Errors(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	outsider := env.register(t, "mallory")
	ctx := context.Background()

	// Dinner shared by alice and bob only; carol has no share.
	expense := createDinner(t, groupID, alice, alice, bob)

	tests := []struct {
		name string
		user *testUser
		req  rpc.SettleExpenseRequest
		code connect.Code
	}{
		{
			name: "unknown expense",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: "nope", PayeeID: alice.id, Amount: 100},
			code: connect.CodeNotFound,
		},
		{
			name: "unknown expense with bad date",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: "nope", PayeeID: alice.id, Amount: 100, Date: "yesterday"},
			code: connect.CodeNotFound,
		},
		{
			name: "wrong payee with bad date",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: carol.id, Amount: 100, Date: "yesterday"},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "bad date",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: 100, Date: "yesterday"},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "settling for someone else",
			user: carol,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayerID: bob.id, PayeeID: alice.id, Amount: 100},
			code: connect.CodePermissionDenied,
		},
		{
			name: "payer outside group",
			user: outsider,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: 100},
			code: connect.CodePermissionDenied,
		},
		{
			name: "wrong payee",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: carol.id, Amount: 100},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "no share",
			user: carol,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: 100},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "payer split starts paid",
			user: alice,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: 100},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "more than the share",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: money.MustParse("45.01")},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "non-positive amount",
			user: bob,
			req:  rpc.SettleExpenseRequest{ExpenseID: expense.ID, PayeeID: alice.id, Amount: 0},
			code: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := tt.user.ledger.SettleExpense(ctx, connect.NewRequest(&req))
			requireCode(t, tt.code, err)
		})
	}

	got, err := alice.ledger.GetExpense(ctx, connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	assert.Empty(t, got.Msg.Expense.Settlements, "rejected settlements must not be stored")
}

func TestSettleExpense_Partial(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	ctx := context.Background()

	expense := createDinner(t, groupID, alice, alice, bob, carol)
	settle := func(amount string) (*connect.Response[rpc.SettleExpenseResponse], error) {
		return bob.ledger.SettleExpense(ctx, connect.NewRequest(&rpc.SettleExpenseRequest{
			ExpenseID: expense.ID,
			PayeeID:   alice.id,
			Amount:    money.MustParse(amount),
		}))
	}

	resp, err := settle("10.00")
	require.NoError(t, err)
	assert.False(t, resp.Msg.SplitPaid)

	resp, err = settle("20.00")
	require.NoError(t, err)
	assert.False(t, resp.Msg.SplitPaid, "partial payments never flip the split")

	_, err = settle("0.01")
	requireCode(t, connect.CodeFailedPrecondition, err)

	balances, err := alice.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), balancesByID(balances.Msg)[bob.id])
}

func TestSettleExpense_Concurrent(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	ctx := context.Background()

	expense := createDinner(t, groupID, alice, alice, bob, carol)

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = bob.ledger.SettleExpense(ctx, connect.NewRequest(&rpc.SettleExpenseRequest{
				ExpenseID: expense.ID,
				PayeeID:   alice.id,
				Amount:    money.MustParse("30.00"),
			}))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err), "error: %v", err)
	}
	assert.Equal(t, 1, ok)

	got, err := alice.ledger.GetExpense(ctx, connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	assert.Len(t, got.Msg.Expense.Settlements, 1)
}

func TestListAndDeleteExpenses(t *testing.T) {
	env := setupTestServer(t)
	groupID, alice, bob, carol := setupGroup(t, env)
	outsider := env.register(t, "mallory")
	ctx := context.Background()

	older := createDinner(t, groupID, alice, alice, bob, carol)
	newer, err := bob.ledger.CreateExpense(ctx, connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID:      groupID,
		Description:  "Breakfast",
		Amount:       money.MustParse("12.00"),
		Date:         "2024-05-03",
		Participants: []string{alice.id, bob.id},
	}))
	require.NoError(t, err)

	list, err := carol.ledger.ListGroupExpenses(ctx, connect.NewRequest(&rpc.ListGroupExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Expenses, 2)
	assert.Equal(t, newer.Msg.Expense.ID, list.Msg.Expenses[0].ID)
	assert.Equal(t, older.ID, list.Msg.Expenses[1].ID)

	_, err = outsider.ledger.ListGroupExpenses(ctx, connect.NewRequest(&rpc.ListGroupExpensesRequest{GroupID: groupID}))
	requireCode(t, connect.CodePermissionDenied, err)

	_, err = outsider.ledger.GetExpense(ctx, connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: older.ID}))
	requireCode(t, connect.CodePermissionDenied, err)

	t.Run("only payer or creator may delete", func(t *testing.T) {
		_, err := carol.ledger.DeleteExpense(ctx, connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: newer.Msg.Expense.ID}))
		requireCode(t, connect.CodePermissionDenied, err)

		// alice created the group, bob paid.
		_, err = alice.ledger.DeleteExpense(ctx, connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: newer.Msg.Expense.ID}))
		require.NoError(t, err)
	})

	t.Run("settled expense cannot be deleted", func(t *testing.T) {
		_, err := bob.ledger.SettleExpense(ctx, connect.NewRequest(&rpc.SettleExpenseRequest{
			ExpenseID: older.ID,
			PayeeID:   alice.id,
			Amount:    money.MustParse("5.00"),
		}))
		require.NoError(t, err)

		_, err = alice.ledger.DeleteExpense(ctx, connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: older.ID}))
		requireCode(t, connect.CodeFailedPrecondition, err)
	})

	t.Run("missing expense", func(t *testing.T) {
		_, err := alice.ledger.DeleteExpense(ctx, connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: "nope"}))
		requireCode(t, connect.CodeNotFound, err)
	})
}

func TestGetGroupBalances_Errors(t *testing.T) {
	env := setupTestServer(t)
	groupID, _, _, _ := setupGroup(t, env)
	outsider := env.register(t, "mallory")
	ctx := context.Background()

	_, err := outsider.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
	requireCode(t, connect.CodePermissionDenied, err)

	_, err = outsider.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{}))
	requireCode(t, connect.CodeInvalidArgument, err)

	_, err = outsider.ledger.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: "nope"}))
	requireCode(t, connect.CodeNotFound, err)
}
