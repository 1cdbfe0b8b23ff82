package sqlite

import (
	"context"
	"fmt"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/storage"
)

// ListEvents returns expenses, settlements and voids matching filter, merged
// into timestamp order (ties broken by ID).
func (s *SQLiteStore) ListEvents(ctx context.Context, filter storage.EventFilter) ([]models.Event, error) {
	query := selectExpenses
	var args []any
	if filter.Party != "" {
		query += " WHERE " + expenseInvolves
		args = append(args, string(filter.Party), string(filter.Party))
	}
	query += " ORDER BY e.created_at, e.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	expenses, err := s.scanExpenses(ctx, rows)
	if err != nil {
		return nil, err
	}

	settlements, err := s.listSettlements(ctx, filter.Party)
	if err != nil {
		return nil, err
	}

	voids, err := s.listVoids(ctx, filter.Party)
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(expenses)+len(settlements)+len(voids))
	for _, e := range expenses {
		events = append(events, *e)
	}
	for _, st := range settlements {
		events = append(events, *st)
	}
	for _, v := range voids {
		events = append(events, *v)
	}
	models.SortEvents(events)
	return events, nil
}
