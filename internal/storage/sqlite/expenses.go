package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = "id, group_id, paid_by, description, amount_cents, date, created_at, is_settled"

// CreateExpense persists a new expense and its splits in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date.IsZero() {
		expense.Date = time.Unix(expense.CreatedAt, 0).UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.GroupID, expense.PaidBy, expense.Description,
		expense.Amount.Cents(), expense.Date.Unix(), expense.CreatedAt, boolToInt(expense.IsSettled),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Splits {
		split := &expense.Splits[i]
		split.ExpenseID = expense.ID

		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, user_id, amount_cents, is_paid, position) VALUES (?, ?, ?, ?, ?)",
			expense.ID, split.UserID, split.Amount.Cents(), boolToInt(split.IsPaid), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense with its splits and settlements.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadChildren(ctx, []*models.Expense{expense}, "expense_id = ?", expense.ID); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListGroupExpenses retrieves every expense of a group, newest date first,
// with splits and settlements attached.
func (s *SQLiteStore) ListGroupExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY date DESC, created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var list []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		list = append(list, expense)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if err := s.loadChildren(ctx, list, "expense_id IN (SELECT id FROM expenses WHERE group_id = ?)", groupID); err != nil {
		return nil, err
	}

	expenses := make([]models.Expense, len(list))
	for i, e := range list {
		expenses[i] = *e
	}
	return expenses, nil
}

// DeleteExpense removes an expense and its splits. Expenses with settlements
// are never deleted.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ?
		 AND NOT EXISTS (SELECT 1 FROM settlements WHERE expense_id = ?)`,
		expenseID, expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", expenseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense existence: %w", err)
	}
	return fmt.Errorf("%w: %s", storage.ErrHasSettlements, expenseID)
}

// loadChildren attaches splits and settlements to each expense. filter is a
// WHERE clause on expense_id taking the single argument arg; rows for
// expenses not in the list are ignored.
func (s *SQLiteStore) loadChildren(ctx context.Context, expenses []*models.Expense, filter string, arg any) error {
	if len(expenses) == 0 {
		return nil
	}

	byID := make(map[string]*models.Expense, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
	}

	splitRows, err := s.db.QueryContext(ctx,
		"SELECT expense_id, user_id, amount_cents, is_paid FROM expense_splits WHERE "+filter+" ORDER BY expense_id, position",
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	for splitRows.Next() {
		var split models.ExpenseSplit
		var cents int64
		var paid int
		if err := splitRows.Scan(&split.ExpenseID, &split.UserID, &cents, &paid); err != nil {
			splitRows.Close()
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		split.Amount = money.FromCents(cents)
		split.IsPaid = paid != 0
		if e, ok := byID[split.ExpenseID]; ok {
			e.Splits = append(e.Splits, split)
		}
	}
	splitRows.Close()
	if err := splitRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}

	settlementRows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE "+filter+" ORDER BY created_at, id",
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get settlements: %w", err)
	}
	defer settlementRows.Close()
	for settlementRows.Next() {
		settlement, err := scanSettlement(settlementRows)
		if err != nil {
			return fmt.Errorf("failed to scan settlement: %w", err)
		}
		if e, ok := byID[settlement.ExpenseID]; ok {
			e.Settlements = append(e.Settlements, *settlement)
		}
	}
	if err := settlementRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var cents, date int64
	var settled int
	err := row.Scan(&expense.ID, &expense.GroupID, &expense.PaidBy, &expense.Description,
		&cents, &date, &expense.CreatedAt, &settled)
	if err != nil {
		return nil, err
	}
	expense.Amount = money.FromCents(cents)
	expense.Date = time.Unix(date, 0).UTC()
	expense.IsSettled = settled != 0
	return expense, nil
}
