package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/storage"
)

// RebuildReport describes one replay of the event log.
type RebuildReport struct {
	Events int
	Pairs  []calculator.PairBalance
	// Drift holds the pairs whose cached amount was wrong, with the replayed amount.
	Drift    []calculator.PairBalance
	Duration time.Duration
}

// Rebuild folds the whole event log and replaces the balance cache with the
// result. Appends are blocked while it runs.
func (s *LedgerService) Rebuild(ctx context.Context) (*RebuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	events, err := s.store.ListEvents(ctx, storage.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	l, err := calculator.Fold(events)
	if err != nil {
		return nil, fmt.Errorf("failed to fold event log: %w", err)
	}
	pairs := l.Pairs()

	cached, err := s.cache.AllPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance cache: %w", err)
	}
	drift := calculator.DiffPairs(pairs, cached)

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.EventID()
	}
	if err := s.cache.Replace(ctx, pairs, ids); err != nil {
		return nil, fmt.Errorf("failed to replace balance cache: %w", err)
	}

	report := &RebuildReport{
		Events:   len(events),
		Pairs:    pairs,
		Drift:    drift,
		Duration: time.Since(start),
	}
	s.metrics.Replayed(report.Events, len(drift), report.Duration)

	if len(drift) > 0 {
		s.logger.Warn("Balance cache drifted from event log", "pairs", len(drift), "events", report.Events)
	}
	s.logger.Info("Balances rebuilt", "events", report.Events, "pairs", len(pairs), "duration_ms", report.Duration.Milliseconds())
	return report, nil
}
