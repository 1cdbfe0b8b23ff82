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

var _ storage.BalanceCache = (*BalanceCache)(nil)

// BalanceCache keeps canonical pair balances in the same database as the
// event log.
type BalanceCache struct {
	db *sql.DB
}

// BalanceCache returns a cache backed by this store's database.
func (s *SQLiteStore) BalanceCache() *BalanceCache {
	return &BalanceCache{db: s.db}
}

// ApplyDelta adds delta to the cached pairs unless its event was already applied.
func (c *BalanceCache) ApplyDelta(ctx context.Context, delta calculator.BalanceDelta) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO applied_deltas (event_id) VALUES (?) ON CONFLICT(event_id) DO NOTHING",
		delta.EventID,
	)
	if err != nil {
		return fmt.Errorf("failed to record applied delta: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to record applied delta: %w", err)
	} else if n == 0 {
		return nil
	}

	for _, entry := range delta.Entries {
		if entry.Creditor == entry.Debtor || entry.Amount.IsZero() {
			continue
		}
		pair := calculator.CanonicalPair(entry.Creditor, entry.Debtor, entry.Amount)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pair_balances (party_a, party_b, amount_minor) VALUES (?, ?, ?)
			 ON CONFLICT(party_a, party_b) DO UPDATE SET amount_minor = amount_minor + excluded.amount_minor`,
			string(pair.A), string(pair.B), pair.Amount.MinorUnits(),
		)
		if err != nil {
			return fmt.Errorf("failed to update pair balance: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pair_balances WHERE amount_minor = 0"); err != nil {
		return fmt.Errorf("failed to prune settled pairs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PairBalance returns what b owes a.
func (c *BalanceCache) PairBalance(ctx context.Context, a, b models.Party) (money.Money, error) {
	if a == b {
		return money.Zero, nil
	}
	pair := calculator.CanonicalPair(a, b, money.FromMinorUnits(1))

	var amount int64
	err := c.db.QueryRowContext(ctx,
		"SELECT amount_minor FROM pair_balances WHERE party_a = ? AND party_b = ?",
		string(pair.A), string(pair.B),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero, nil
	}
	if err != nil {
		return money.Zero, fmt.Errorf("failed to get pair balance: %w", err)
	}
	// pair.Amount carries the sign that maps (a, b) onto the canonical order.
	return money.FromMinorUnits(amount * pair.Amount.MinorUnits()), nil
}

// AllPairs returns every non-zero cached pair, sorted.
func (c *BalanceCache) AllPairs(ctx context.Context) ([]calculator.PairBalance, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT party_a, party_b, amount_minor FROM pair_balances WHERE amount_minor != 0 ORDER BY party_a, party_b",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair balances: %w", err)
	}
	defer rows.Close()

	var pairs []calculator.PairBalance
	for rows.Next() {
		var (
			a, b   string
			amount int64
		)
		if err := rows.Scan(&a, &b, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan pair balance: %w", err)
		}
		pairs = append(pairs, calculator.PairBalance{
			A:      models.Party(a),
			B:      models.Party(b),
			Amount: money.FromMinorUnits(amount),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pair balances: %w", err)
	}
	return pairs, nil
}

// Replace swaps the cache contents for pairs in a single transaction.
func (c *BalanceCache) Replace(ctx context.Context, pairs []calculator.PairBalance, eventIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pair_balances"); err != nil {
		return fmt.Errorf("failed to clear pair balances: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM applied_deltas"); err != nil {
		return fmt.Errorf("failed to clear applied deltas: %w", err)
	}

	for _, p := range pairs {
		if p.Amount.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pair_balances (party_a, party_b, amount_minor) VALUES (?, ?, ?)",
			string(p.A), string(p.B), p.Amount.MinorUnits(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert pair balance: %w", err)
		}
	}
	for _, id := range eventIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO applied_deltas (event_id) VALUES (?) ON CONFLICT(event_id) DO NOTHING", id,
		)
		if err != nil {
			return fmt.Errorf("failed to record applied delta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
