package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

const settlementColumns = "id, expense_id, payer_id, payee_id, amount_cents, date, method, notes, created_at"

// ApplySettlement records a settlement and updates the split and expense
// flags in a single transaction.
//
// The insert is conditional on the split still being unpaid and the new
// amount fitting in what is left of the share, and the split flag is flipped
// with a compare-and-set. Two concurrent full settlements of one split can
// therefore never both commit.
func (s *SQLiteStore) ApplySettlement(ctx context.Context, diff *calculator.SettlementDiff) (*models.Settlement, error) {
	settlement := diff.Settlement
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	if settlement.Date.IsZero() {
		settlement.Date = time.Unix(settlement.CreatedAt, 0).UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		 FROM expense_splits sp
		 WHERE sp.expense_id = ? AND sp.user_id = ? AND sp.is_paid = 0
		   AND ? <= sp.amount_cents - (
		       SELECT COALESCE(SUM(amount_cents), 0) FROM settlements
		       WHERE expense_id = sp.expense_id AND payer_id = sp.user_id)`,
		settlement.ID, settlement.ExpenseID, settlement.PayerID, settlement.PayeeID,
		settlement.Amount.Cents(), settlement.Date.Unix(), nullString(settlement.Method),
		nullString(settlement.Notes), settlement.CreatedAt,
		settlement.ExpenseID, settlement.PayerID, settlement.Amount.Cents(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, rejectionReason(ctx, tx, settlement.ExpenseID, settlement.PayerID)
	}

	if diff.MarkSplitPaid {
		res, err := tx.ExecContext(ctx,
			"UPDATE expense_splits SET is_paid = 1 WHERE expense_id = ? AND user_id = ? AND is_paid = 0",
			settlement.ExpenseID, settlement.PayerID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark split paid: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, calculator.ErrAlreadyPaid
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET is_settled = 1
		 WHERE id = ? AND is_settled = 0 AND NOT EXISTS (
		     SELECT 1 FROM expense_splits sp
		     WHERE sp.expense_id = expenses.id AND sp.is_paid = 0 AND sp.user_id != expenses.paid_by)`,
		settlement.ExpenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense settled flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &settlement, nil
}

// rejectionReason explains why the conditional insert matched no split.
func rejectionReason(ctx context.Context, tx *sql.Tx, expenseID, payerID string) error {
	var paid int
	err := tx.QueryRowContext(ctx,
		"SELECT is_paid FROM expense_splits WHERE expense_id = ? AND user_id = ?",
		expenseID, payerID,
	).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return calculator.ErrNoShare
	}
	if err != nil {
		return fmt.Errorf("failed to read split: %w", err)
	}
	if paid != 0 {
		return calculator.ErrAlreadyPaid
	}
	return calculator.ErrExceedsShare
}

func scanSettlement(row scanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var cents, date int64
	var method, notes sql.NullString
	err := row.Scan(&settlement.ID, &settlement.ExpenseID, &settlement.PayerID, &settlement.PayeeID,
		&cents, &date, &method, &notes, &settlement.CreatedAt)
	if err != nil {
		return nil, err
	}
	settlement.Amount = money.FromCents(cents)
	settlement.Date = time.Unix(date, 0).UTC()
	settlement.Method = method.String
	settlement.Notes = notes.String
	return settlement, nil
}
