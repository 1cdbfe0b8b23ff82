// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
	"github.com/fairshare/ledger/internal/storage"
)

// Ensure SQLiteStore implements the storage interfaces
var (
	_ storage.Store             = (*SQLiteStore)(nil)
	_ storage.NotificationStore = (*SQLiteStore)(nil)
)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Appends run in explicit transactions; a single writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendExpense persists a new expense with its participants and shares.
func (s *SQLiteStore) AppendExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimEventID(ctx, tx, expense.ID, "expense"); err != nil {
		return fmt.Errorf("expense %s: %w", expense.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_minor, payer, split_kind, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.Description, expense.Amount.MinorUnits(), string(expense.Payer),
		string(expense.Split), string(expense.CreatedBy), toNanos(expense.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, party := range expense.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, party, position) VALUES (?, ?, ?)",
			expense.ID, string(party), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for party, share := range expense.Shares {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, party, amount_minor) VALUES (?, ?, ?)",
			expense.ID, string(party), share.MinorUnits(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetExpense retrieves an expense by ID, including participants and shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, selectExpenses+" WHERE e.id = ?", expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	expenses, err := s.scanExpenses(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return expenses[0], nil
}

// SearchExpenses returns the party's expenses whose description contains
// query, newest first. An empty query matches everything.
func (s *SQLiteStore) SearchExpenses(ctx context.Context, party models.Party, query string) ([]*models.Expense, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx,
		selectExpenses+" WHERE "+expenseInvolves+
			` AND LOWER(e.description) LIKE ? ESCAPE '\'
			 ORDER BY e.created_at DESC, e.id DESC`,
		string(party), string(party), pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search expenses: %w", err)
	}
	return s.scanExpenses(ctx, rows)
}

const selectExpenses = `
	SELECT e.id, e.description, e.amount_minor, e.payer, e.split_kind, e.created_by, e.created_at
	FROM expenses e`

// expenseInvolves matches expenses the party paid for or participates in.
// It takes the party twice.
const expenseInvolves = `(e.payer = ? OR EXISTS (
	SELECT 1 FROM expense_participants p WHERE p.expense_id = e.id AND p.party = ?))`

// scanExpenses reads expense rows, closes them, then loads participants and shares.
func (s *SQLiteStore) scanExpenses(ctx context.Context, rows *sql.Rows) ([]*models.Expense, error) {
	expenses, err := readExpenseRows(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		if err := s.loadExpenseDetails(ctx, e); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func readExpenseRows(rows *sql.Rows) ([]*models.Expense, error) {
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		var (
			e         models.Expense
			amount    int64
			payer     string
			kind      string
			createdBy string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Description, &amount, &payer, &kind, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Amount = money.FromMinorUnits(amount)
		e.Payer = models.Party(payer)
		e.Split = models.SplitKind(kind)
		e.CreatedBy = models.Party(createdBy)
		e.CreatedAt = fromNanos(createdAt)
		expenses = append(expenses, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *SQLiteStore) loadExpenseDetails(ctx context.Context, e *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT party FROM expense_participants WHERE expense_id = ? ORDER BY position",
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	for rows.Next() {
		var party string
		if err := rows.Scan(&party); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		e.Participants = append(e.Participants, models.Party(party))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}

	shareRows, err := s.db.QueryContext(ctx,
		"SELECT party, amount_minor FROM expense_shares WHERE expense_id = ?",
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get shares: %w", err)
	}
	defer shareRows.Close()

	e.Shares = make(map[models.Party]money.Money)
	for shareRows.Next() {
		var (
			party  string
			amount int64
		)
		if err := shareRows.Scan(&party, &amount); err != nil {
			return fmt.Errorf("failed to scan share: %w", err)
		}
		e.Shares[models.Party(party)] = money.FromMinorUnits(amount)
	}
	if err := shareRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shares: %w", err)
	}
	return nil
}

// claimEventID reserves id for an event of the given kind. Any earlier event
// holding the same ID, whatever its kind, fails with storage.ErrDuplicate.
func claimEventID(ctx context.Context, tx *sql.Tx, id, kind string) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO event_ids (id, kind) VALUES (?, ?) ON CONFLICT(id) DO NOTHING", id, kind)
	if err != nil {
		return fmt.Errorf("failed to claim event id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to claim event id: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicate
	}
	return nil
}

// checkUnique returns storage.ErrDuplicate when query finds a row.
func checkUnique(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	var exists int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	return storage.ErrDuplicate
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
