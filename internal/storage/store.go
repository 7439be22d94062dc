// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrHasSettlements is returned when deleting an expense that already
	// has settlements recorded against it.
	ErrHasSettlements = errors.New("expense has settlements")
)

// Store is the persistence boundary of the ledger.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer. Reads return plain aggregates; nothing
// is lazily loaded.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	// CreateGroup persists a new group and its initial members.
	// The group.ID and group.CreatedAt fields are populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, groupID string) error
}

// ExpenseStore persists expenses, their splits and their settlements.
type ExpenseStore interface {
	// CreateExpense persists the expense and all of its splits atomically.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense loads one expense with its splits and settlements.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListGroupExpenses loads every expense of a group with splits and
	// settlements, newest date first.
	ListGroupExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// DeleteExpense removes an expense that has no settlements.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ApplySettlement commits a planned settlement in one transaction: the
	// settlement row, the split flag and the expense flag. It re-checks the
	// split inside the transaction and fails with calculator.ErrAlreadyPaid or
	// calculator.ErrExceedsShare if another settlement won the race.
	ApplySettlement(ctx context.Context, diff *calculator.SettlementDiff) (*models.Settlement, error)
}
