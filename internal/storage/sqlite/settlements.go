package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
	"github.com/fairshare/ledger/internal/storage"
)

// AppendSettlement persists a new settlement.
func (s *SQLiteStore) AppendSettlement(ctx context.Context, settlement *models.Settlement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimEventID(ctx, tx, settlement.ID, "settlement"); err != nil {
		return fmt.Errorf("settlement %s: %w", settlement.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, from_party, to_party, amount_minor, note, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, string(settlement.From), string(settlement.To), settlement.Amount.MinorUnits(),
		nullString(settlement.Note), string(settlement.CreatedBy), toNanos(settlement.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendVoid persists a void for an existing, not yet voided expense.
func (s *SQLiteStore) AppendVoid(ctx context.Context, void *models.ExpenseVoid) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", void.ExpenseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", void.ExpenseID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense existence: %w", err)
	}

	if err := checkUnique(ctx, tx, "SELECT 1 FROM expense_voids WHERE expense_id = ?", void.ExpenseID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("%w: %w: %s", err, calculator.ErrAlreadyVoided, void.ExpenseID)
		}
		return err
	}
	if err := claimEventID(ctx, tx, void.ID, "void"); err != nil {
		return fmt.Errorf("void %s: %w", void.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expense_voids (id, expense_id, reason, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		void.ID, void.ExpenseID, nullString(void.Reason), string(void.CreatedBy), toNanos(void.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert void: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listSettlements(ctx context.Context, party models.Party) ([]*models.Settlement, error) {
	query := `SELECT id, from_party, to_party, amount_minor, note, created_by, created_at FROM settlements`
	var args []any
	if party != "" {
		query += " WHERE from_party = ? OR to_party = ?"
		args = append(args, string(party), string(party))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		var (
			st        models.Settlement
			from, to  string
			amount    int64
			note      sql.NullString
			createdBy string
			createdAt int64
		)
		if err := rows.Scan(&st.ID, &from, &to, &amount, &note, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		st.From = models.Party(from)
		st.To = models.Party(to)
		st.Amount = money.FromMinorUnits(amount)
		if note.Valid {
			st.Note = note.String
		}
		st.CreatedBy = models.Party(createdBy)
		st.CreatedAt = fromNanos(createdAt)
		settlements = append(settlements, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

func (s *SQLiteStore) listVoids(ctx context.Context, party models.Party) ([]*models.ExpenseVoid, error) {
	query := `SELECT v.id, v.expense_id, v.reason, v.created_by, v.created_at
		FROM expense_voids v JOIN expenses e ON e.id = v.expense_id`
	var args []any
	if party != "" {
		query += " WHERE " + expenseInvolves
		args = append(args, string(party), string(party))
	}
	query += " ORDER BY v.created_at, v.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list voids: %w", err)
	}
	defer rows.Close()

	var voids []*models.ExpenseVoid
	for rows.Next() {
		var (
			v         models.ExpenseVoid
			reason    sql.NullString
			createdBy string
			createdAt int64
		)
		if err := rows.Scan(&v.ID, &v.ExpenseID, &reason, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan void: %w", err)
		}
		if reason.Valid {
			v.Reason = reason.String
		}
		v.CreatedBy = models.Party(createdBy)
		v.CreatedAt = fromNanos(createdAt)
		voids = append(voids, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate voids: %w", err)
	}
	return voids, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
