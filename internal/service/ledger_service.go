package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// LedgerService implements the Connect LedgerService: expenses, settlements
// and group balances.
type LedgerService struct {
	store     storage.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ rpc.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a LedgerService. publisher may be events.Noop{}.
func NewLedgerService(store storage.Store, publisher events.Publisher, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateExpense validates the splits and stores the expense with all of
// them. Without explicit splits the amount is divided equally among the
// participants.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[rpc.CreateExpenseRequest]) (*connect.Response[rpc.CreateExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	msg := req.Msg
	s.logger.InfoContext(ctx, "CreateExpense request received",
		"group_id", msg.GroupID,
		"amount", msg.Amount,
		"splits_count", len(msg.Splits),
	)

	if msg.GroupID == "" {
		return nil, toConnectError(errMissing("group_id"))
	}
	if strings.TrimSpace(msg.Description) == "" {
		return nil, toConnectError(errMissing("description"))
	}

	group, err := s.memberGroup(ctx, msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	date, err := parseDate(msg.Date, s.now())
	if err != nil {
		return nil, toConnectError(err)
	}

	paidBy := msg.PaidBy
	if paidBy == "" {
		paidBy = userID
	}

	inputs := make([]calculator.SplitInput, len(msg.Splits))
	for i, sp := range msg.Splits {
		inputs[i] = calculator.SplitInput{UserID: sp.UserID, Amount: sp.Amount}
	}
	if len(inputs) == 0 && len(msg.Participants) > 0 {
		inputs, err = calculator.EqualSplit(msg.Amount, msg.Participants)
		if err != nil {
			return nil, toConnectError(err)
		}
	}

	splits, err := calculator.ValidateSplits(calculator.ExpenseDraft{
		Amount: msg.Amount,
		PaidBy: paidBy,
		Splits: inputs,
	}, group.Members)
	if err != nil {
		s.logger.WarnContext(ctx, "CreateExpense rejected", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	expense := &models.Expense{
		GroupID:     group.ID,
		PaidBy:      paidBy,
		Description: strings.TrimSpace(msg.Description),
		Amount:      msg.Amount,
		Date:        date,
		Splits:      splits,
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		s.logger.ErrorContext(ctx, "CreateExpense failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}
	metrics.ExpensesCreated.Inc()

	s.logger.InfoContext(ctx, "Expense created", "expense_id", expense.ID, "group_id", group.ID)
	s.publish(ctx, events.TypeExpenseCreated, group.ID, events.ExpenseCreated{
		ExpenseID: expense.ID,
		PaidBy:    expense.PaidBy,
		Amount:    expense.Amount,
		Splits:    len(expense.Splits),
	})

	d, err := loadDirectory(ctx, s.store, expenseUserIDs(expense))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.CreateExpenseResponse{Expense: toRPCExpense(expense, d)}), nil
}

// GetExpense returns one expense with its splits and settlements.
func (s *LedgerService) GetExpense(ctx context.Context, req *connect.Request[rpc.GetExpenseRequest]) (*connect.Response[rpc.GetExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "GetExpense request received", "expense_id", req.Msg.ExpenseID)

	if req.Msg.ExpenseID == "" {
		return nil, toConnectError(errMissing("expense_id"))
	}

	expense, _, err := s.memberExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	d, err := loadDirectory(ctx, s.store, expenseUserIDs(expense))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.GetExpenseResponse{Expense: toRPCExpense(expense, d)}), nil
}

// ListGroupExpenses returns every expense of a group, newest first.
func (s *LedgerService) ListGroupExpenses(ctx context.Context, req *connect.Request[rpc.ListGroupExpensesRequest]) (*connect.Response[rpc.ListGroupExpensesResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "ListGroupExpenses request received", "group_id", req.Msg.GroupID)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(errMissing("group_id"))
	}
	if _, err := s.memberGroup(ctx, req.Msg.GroupID, userID); err != nil {
		return nil, toConnectError(err)
	}

	expenses, err := s.store.ListGroupExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		s.logger.ErrorContext(ctx, "ListGroupExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	ptrs := make([]*models.Expense, len(expenses))
	for i := range expenses {
		ptrs[i] = &expenses[i]
	}
	d, err := loadDirectory(ctx, s.store, expenseUserIDs(ptrs...))
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &rpc.ListGroupExpensesResponse{Expenses: make([]*rpc.Expense, len(ptrs))}
	for i, e := range ptrs {
		resp.Expenses[i] = toRPCExpense(e, d)
	}

	s.logger.InfoContext(ctx, "ListGroupExpenses successful", "group_id", req.Msg.GroupID, "count", len(ptrs))
	return connect.NewResponse(resp), nil
}

// DeleteExpense removes an expense. Only its payer or the group creator may
// delete it, and only while no settlement references it.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[rpc.DeleteExpenseRequest]) (*connect.Response[rpc.DeleteExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	if req.Msg.ExpenseID == "" {
		return nil, toConnectError(errMissing("expense_id"))
	}

	expense, group, err := s.memberExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if expense.PaidBy != userID && group.CreatedBy != userID {
		return nil, toConnectError(errCannotDelete)
	}
	if len(expense.Settlements) > 0 {
		return nil, toConnectError(errHasSettlements)
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		if errors.Is(err, storage.ErrHasSettlements) {
			err = errHasSettlements
		}
		s.logger.WarnContext(ctx, "DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", "expense_id", expense.ID)
	s.publish(ctx, events.TypeExpenseDeleted, group.ID, events.ExpenseDeleted{
		ExpenseID: expense.ID,
		DeletedBy: userID,
	})
	return connect.NewResponse(&rpc.DeleteExpenseResponse{}), nil
}

// SettleExpense records a payment from the caller to the expense payer
// against the caller's split.
func (s *LedgerService) SettleExpense(ctx context.Context, req *connect.Request[rpc.SettleExpenseRequest]) (*connect.Response[rpc.SettleExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	msg := req.Msg
	s.logger.InfoContext(ctx, "SettleExpense request received",
		"expense_id", msg.ExpenseID,
		"payer_id", msg.PayerID,
		"payee_id", msg.PayeeID,
		"amount", msg.Amount,
	)

	settlement, diff, err := s.settle(ctx, userID, msg)
	if err != nil {
		metrics.SettlementsRejected.WithLabelValues(category(err)).Inc()
		s.logger.WarnContext(ctx, "SettleExpense rejected", "expense_id", msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	kind := "partial"
	if diff.MarkSplitPaid {
		kind = "full"
	}
	metrics.SettlementsRecorded.WithLabelValues(kind).Inc()
	s.logger.InfoContext(ctx, "Settlement recorded",
		"settlement_id", settlement.ID,
		"expense_id", settlement.ExpenseID,
		"split_paid", diff.MarkSplitPaid,
		"expense_settled", diff.MarkExpenseSettled,
	)

	d, err := loadDirectory(ctx, s.store, []string{settlement.PayerID, settlement.PayeeID})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.SettleExpenseResponse{
		Settlement:     toRPCSettlement(settlement, d),
		SplitPaid:      diff.MarkSplitPaid,
		ExpenseSettled: diff.MarkExpenseSettled,
	}), nil
}

// settle runs the decision step against a fresh read of the expense and
// commits the result in one transaction. Nothing is written when any check
// fails.
func (s *LedgerService) settle(ctx context.Context, userID string, msg *rpc.SettleExpenseRequest) (*models.Settlement, *calculator.SettlementDiff, error) {
	if msg.ExpenseID == "" {
		return nil, nil, errMissing("expense_id")
	}
	payerID := msg.PayerID
	if payerID == "" {
		payerID = userID
	}
	if payerID != userID {
		return nil, nil, errSettleForSelf
	}

	expense, err := s.store.GetExpense(ctx, msg.ExpenseID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, err
	}

	var members []string
	if expense != nil {
		group, err := s.store.GetGroup(ctx, expense.GroupID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load group of expense: %w", err)
		}
		members = group.Members
	}

	diff, err := calculator.PlanSettlement(expense, members, calculator.SettleRequest{
		ExpenseID: msg.ExpenseID,
		PayerID:   payerID,
		PayeeID:   msg.PayeeID,
		Amount:    msg.Amount,
		Method:    msg.Method,
		Notes:     msg.Notes,
	})
	if err != nil {
		return nil, nil, err
	}

	// The date is checked only once the settlement itself is acceptable.
	date, err := parseDate(msg.Date, s.now())
	if err != nil {
		return nil, nil, err
	}
	diff.Settlement.Date = date

	settlement, err := s.store.ApplySettlement(ctx, diff)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.TypeSettlementRecorded, expense.GroupID, events.SettlementRecorded{
		SettlementID:   settlement.ID,
		ExpenseID:      settlement.ExpenseID,
		PayerID:        settlement.PayerID,
		PayeeID:        settlement.PayeeID,
		Amount:         settlement.Amount,
		SplitPaid:      diff.MarkSplitPaid,
		ExpenseSettled: diff.MarkExpenseSettled,
	})
	return settlement, diff, nil
}

// GetGroupBalances computes every member's net balance from the group's full
// history and the transfers that settle them. Nothing is cached.
func (s *LedgerService) GetGroupBalances(ctx context.Context, req *connect.Request[rpc.GetGroupBalancesRequest]) (*connect.Response[rpc.GetGroupBalancesResponse], error) {
	userID := middleware.GetUserID(ctx)
	groupID := req.Msg.GroupID
	s.logger.InfoContext(ctx, "GetGroupBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, toConnectError(errMissing("group_id"))
	}

	start := time.Now()
	group, err := s.memberGroup(ctx, groupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	expenses, err := s.store.ListGroupExpenses(ctx, groupID)
	if err != nil {
		s.logger.ErrorContext(ctx, "GetGroupBalances failed - could not list expenses", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	balances, transfers := calculator.CalculateGroupBalances(group.Members, expenses)
	metrics.BalanceComputeDuration.Observe(time.Since(start).Seconds())
	metrics.BalanceTransfers.Observe(float64(len(transfers)))

	if total := balances.Total(); !total.IsZero() {
		s.logger.ErrorContext(ctx, "Group balances do not sum to zero", "group_id", groupID, "total", total)
	}

	d, err := loadDirectory(ctx, s.store, group.Members)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.InfoContext(ctx, "GetGroupBalances successful",
		"group_id", groupID,
		"expenses_count", len(expenses),
		"members_count", len(balances),
		"transfers_count", len(transfers),
	)
	return connect.NewResponse(toRPCBalances(balances, transfers, d)), nil
}

// memberGroup loads a group the caller belongs to.
func (s *LedgerService) memberGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	return loadMemberGroup(ctx, s.store, groupID, userID)
}

// memberExpense loads an expense of a group the caller belongs to.
func (s *LedgerService) memberExpense(ctx context.Context, expenseID, userID string) (*models.Expense, *models.Group, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", calculator.ErrExpenseNotFound, expenseID)
		}
		return nil, nil, err
	}
	group, err := loadMemberGroup(ctx, s.store, expense.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	return expense, group, nil
}

// publish emits an event after a commit. Failures are logged, never returned.
func (s *LedgerService) publish(ctx context.Context, eventType, groupID string, data any) {
	env, err := events.New(eventType, groupID, data)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Event not published", "type", eventType, "group_id", groupID, "error", err)
	}
}

func loadMemberGroup(ctx context.Context, groups storage.GroupStore, groupID, userID string) (*models.Group, error) {
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errGroupNotFound
		}
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, errNotMember
	}
	return group, nil
}
