package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// directory resolves user IDs to display references for responses.
type directory map[string]*models.User

func loadDirectory(ctx context.Context, users storage.UserStore, ids []string) (directory, error) {
	found, err := users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return directory(found), nil
}

func (d directory) ref(id string) rpc.UserRef {
	if u, ok := d[id]; ok {
		return rpc.UserRef{ID: u.ID, Name: u.DisplayName, Email: u.Email}
	}
	return rpc.UserRef{ID: id}
}

func expenseUserIDs(expenses ...*models.Expense) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range expenses {
		add(e.PaidBy)
		for _, sp := range e.Splits {
			add(sp.UserID)
		}
		for _, st := range e.Settlements {
			add(st.PayerID)
			add(st.PayeeID)
		}
	}
	return ids
}

func toRPCUser(u *models.User) *rpc.User {
	return &rpc.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toRPCGroup(g *models.Group, d directory) *rpc.Group {
	members := make([]rpc.UserRef, len(g.Members))
	for i, id := range g.Members {
		members[i] = d.ref(id)
	}
	return &rpc.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   d.ref(g.CreatedBy),
		Members:     members,
		CreatedAt:   g.CreatedAt,
	}
}

func toRPCSettlement(s *models.Settlement, d directory) *rpc.Settlement {
	return &rpc.Settlement{
		ID:        s.ID,
		ExpenseID: s.ExpenseID,
		Payer:     d.ref(s.PayerID),
		Payee:     d.ref(s.PayeeID),
		Amount:    s.Amount,
		Date:      s.Date.UTC().Format(rpc.DateLayout),
		Method:    s.Method,
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
	}
}

func toRPCExpense(e *models.Expense, d directory) *rpc.Expense {
	splits := make([]rpc.Split, len(e.Splits))
	for i, sp := range e.Splits {
		splits[i] = rpc.Split{User: d.ref(sp.UserID), Amount: sp.Amount, IsPaid: sp.IsPaid}
	}
	settlements := make([]rpc.Settlement, len(e.Settlements))
	for i := range e.Settlements {
		settlements[i] = *toRPCSettlement(&e.Settlements[i], d)
	}
	return &rpc.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PaidBy:      d.ref(e.PaidBy),
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.UTC().Format(rpc.DateLayout),
		CreatedAt:   e.CreatedAt,
		IsSettled:   e.IsSettled,
		Splits:      splits,
		Settlements: settlements,
	}
}

func toRPCBalances(balances calculator.BalanceVector, transfers []calculator.Transfer, d directory) *rpc.GetGroupBalancesResponse {
	resp := &rpc.GetGroupBalancesResponse{
		Balances:  make([]*rpc.MemberBalance, len(balances)),
		Transfers: make([]*rpc.Transfer, len(transfers)),
	}
	for i, b := range balances {
		resp.Balances[i] = &rpc.MemberBalance{
			Member:    d.ref(b.MemberID),
			Net:       b.Net,
			TotalPaid: b.TotalPaid,
			TotalOwed: b.TotalOwed,
		}
	}
	for i, t := range transfers {
		resp.Transfers[i] = &rpc.Transfer{From: d.ref(t.From), To: d.ref(t.To), Amount: t.Amount}
	}
	return resp
}

// parseDate reads a wire date, defaulting to today.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(rpc.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", calculator.ErrValidation, s)
	}
	return t, nil
}
