// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when appending an event whose ID is already stored.
	ErrDuplicate = errors.New("already exists")
)

// EventFilter narrows ListEvents.
type EventFilter struct {
	// Party, when set, keeps only events involving this party. Voids are
	// kept when the expense they cancel involves the party.
	Party models.Party
}

// Store defines the append-only event log.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// AppendExpense persists a new expense. Returns ErrDuplicate if the ID exists.
	AppendExpense(ctx context.Context, expense *models.Expense) error

	// AppendSettlement persists a new settlement. Returns ErrDuplicate if the ID exists.
	AppendSettlement(ctx context.Context, settlement *models.Settlement) error

	// AppendVoid persists a void. Returns ErrNotFound if the expense does not
	// exist and ErrDuplicate if it is already voided.
	AppendVoid(ctx context.Context, void *models.ExpenseVoid) error

	// GetExpense retrieves an expense by ID, or ErrNotFound.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListEvents returns matching events, oldest first.
	ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)

	// SearchExpenses returns the party's expenses whose description contains
	// query (case-insensitive), newest first.
	SearchExpenses(ctx context.Context, party models.Party, query string) ([]*models.Expense, error)

	// Close releases any resources held by the store.
	Close() error
}

// NotificationStore persists messages for parties.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipient models.Party, limit int) ([]*models.Notification, error)
}

// BalanceCache is a materialized view of the pair balances produced by
// folding the event log. It is never the source of truth: Replace rebuilds it
// from a full replay at any time.
type BalanceCache interface {
	// ApplyDelta adds one event's balance change. Applying the same event ID
	// twice is a no-op.
	ApplyDelta(ctx context.Context, delta calculator.BalanceDelta) error

	// PairBalance returns what b owes a according to the cache.
	PairBalance(ctx context.Context, a, b models.Party) (money.Money, error)

	// AllPairs returns every non-zero cached pair in canonical form.
	AllPairs(ctx context.Context) ([]calculator.PairBalance, error)

	// Replace overwrites the cache with pairs and records eventIDs as applied.
	Replace(ctx context.Context, pairs []calculator.PairBalance, eventIDs []string) error
}
