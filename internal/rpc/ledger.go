package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/money"
)

// LedgerServiceName is the fully-qualified name of the LedgerService.
const LedgerServiceName = "splitledger.v1.LedgerService"

const (
	LedgerServiceCreateExpenseProcedure     = "/splitledger.v1.LedgerService/CreateExpense"
	LedgerServiceGetExpenseProcedure        = "/splitledger.v1.LedgerService/GetExpense"
	LedgerServiceListGroupExpensesProcedure = "/splitledger.v1.LedgerService/ListGroupExpenses"
	LedgerServiceDeleteExpenseProcedure     = "/splitledger.v1.LedgerService/DeleteExpense"
	LedgerServiceSettleExpenseProcedure     = "/splitledger.v1.LedgerService/SettleExpense"
	LedgerServiceGetGroupBalancesProcedure  = "/splitledger.v1.LedgerService/GetGroupBalances"
)

// CreateExpenseRequest records a new expense. Either Splits lists every
// share explicitly, or Participants names the members who split Amount
// equally.
type CreateExpenseRequest struct {
	GroupID      string       `json:"groupId"`
	PaidBy       string       `json:"paidBy"`
	Description  string       `json:"description"`
	Amount       money.Amount `json:"amount"`
	Date         string       `json:"date,omitempty"`
	Splits       []SplitInput `json:"splits,omitempty"`
	Participants []string     `json:"participants,omitempty"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListGroupExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type ListGroupExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type SettleExpenseRequest struct {
	ExpenseID string       `json:"expenseId"`
	PayerID   string       `json:"payerId"`
	PayeeID   string       `json:"payeeId"`
	Amount    money.Amount `json:"amount"`
	Date      string       `json:"date,omitempty"`
	Method    string       `json:"method,omitempty"`
	Notes     string       `json:"notes,omitempty"`
}

type SettleExpenseResponse struct {
	Settlement     *Settlement `json:"settlement"`
	SplitPaid      bool        `json:"splitPaid"`
	ExpenseSettled bool        `json:"expenseSettled"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalancesResponse struct {
	Balances  []*MemberBalance `json:"balances"`
	Transfers []*Transfer      `json:"transfers"`
}

// LedgerServiceHandler is implemented by the ledger server.
type LedgerServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	ListGroupExpenses(context.Context, *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListGroupExpensesResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	SettleExpense(context.Context, *connect.Request[SettleExpenseRequest]) (*connect.Response[SettleExpenseResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return serviceHandler(LedgerServiceName, map[string]http.Handler{
		LedgerServiceCreateExpenseProcedure:     connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...),
		LedgerServiceGetExpenseProcedure:        connect.NewUnaryHandler(LedgerServiceGetExpenseProcedure, svc.GetExpense, opts...),
		LedgerServiceListGroupExpensesProcedure: connect.NewUnaryHandler(LedgerServiceListGroupExpensesProcedure, svc.ListGroupExpenses, opts...),
		LedgerServiceDeleteExpenseProcedure:     connect.NewUnaryHandler(LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		LedgerServiceSettleExpenseProcedure:     connect.NewUnaryHandler(LedgerServiceSettleExpenseProcedure, svc.SettleExpense, opts...),
		LedgerServiceGetGroupBalancesProcedure:  connect.NewUnaryHandler(LedgerServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
	})
}

// LedgerServiceClient is a client for the LedgerService.
type LedgerServiceClient interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	ListGroupExpenses(context.Context, *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListGroupExpensesResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	SettleExpense(context.Context, *connect.Request[SettleExpenseRequest]) (*connect.Response[SettleExpenseResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
}

type ledgerServiceClient struct {
	createExpense     *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	getExpense        *connect.Client[GetExpenseRequest, GetExpenseResponse]
	listGroupExpenses *connect.Client[ListGroupExpensesRequest, ListGroupExpensesResponse]
	deleteExpense     *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	settleExpense     *connect.Client[SettleExpenseRequest, SettleExpenseResponse]
	getGroupBalances  *connect.Client[GetGroupBalancesRequest, GetGroupBalancesResponse]
}

// NewLedgerServiceClient constructs a client for the LedgerService at
// baseURL, e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &ledgerServiceClient{
		createExpense:     connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		getExpense:        connect.NewClient[GetExpenseRequest, GetExpenseResponse](httpClient, baseURL+LedgerServiceGetExpenseProcedure, opts...),
		listGroupExpenses: connect.NewClient[ListGroupExpensesRequest, ListGroupExpensesResponse](httpClient, baseURL+LedgerServiceListGroupExpensesProcedure, opts...),
		deleteExpense:     connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		settleExpense:     connect.NewClient[SettleExpenseRequest, SettleExpenseResponse](httpClient, baseURL+LedgerServiceSettleExpenseProcedure, opts...),
		getGroupBalances:  connect.NewClient[GetGroupBalancesRequest, GetGroupBalancesResponse](httpClient, baseURL+LedgerServiceGetGroupBalancesProcedure, opts...),
	}
}

func (c *ledgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListGroupExpenses(ctx context.Context, req *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListGroupExpensesResponse], error) {
	return c.listGroupExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SettleExpense(ctx context.Context, req *connect.Request[SettleExpenseRequest]) (*connect.Response[SettleExpenseResponse], error) {
	return c.settleExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}
