package rpc

import "github.com/mmynk/splitledger/internal/money"

// UserRef identifies a member in responses.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   UserRef   `json:"createdBy"`
	Members     []UserRef `json:"members"`
	CreatedAt   int64     `json:"createdAt"`
}

type SplitInput struct {
	UserID string       `json:"userId"`
	Amount money.Amount `json:"amount"`
}

type Split struct {
	User   UserRef      `json:"user"`
	Amount money.Amount `json:"amount"`
	IsPaid bool         `json:"isPaid"`
}

type Settlement struct {
	ID        string       `json:"id"`
	ExpenseID string       `json:"expenseId"`
	Payer     UserRef      `json:"payer"`
	Payee     UserRef      `json:"payee"`
	Amount    money.Amount `json:"amount"`
	Date      string       `json:"date"`
	Method    string       `json:"method"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt int64        `json:"createdAt"`
}

type Expense struct {
	ID          string       `json:"id"`
	GroupID     string       `json:"groupId"`
	PaidBy      UserRef      `json:"paidBy"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
	Date        string       `json:"date"`
	CreatedAt   int64        `json:"createdAt"`
	IsSettled   bool         `json:"isSettled"`
	Splits      []Split      `json:"splits"`
	Settlements []Settlement `json:"settlements"`
}

type MemberBalance struct {
	Member    UserRef      `json:"member"`
	Net       money.Amount `json:"net"`
	TotalPaid money.Amount `json:"totalPaid"`
	TotalOwed money.Amount `json:"totalOwed"`
}

type Transfer struct {
	From   UserRef      `json:"from"`
	To     UserRef      `json:"to"`
	Amount money.Amount `json:"amount"`
}

// DateLayout is the wire format of expense and settlement dates.
const DateLayout = "2006-01-02"
