package service

import (
	"context"
	"fmt"

	"github.com/fairshare/ledger/internal/metrics"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/storage"
)

// Notifier delivers messages about ledger events to parties.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// StoreNotifier delivers notifications by persisting them for later reads.
type StoreNotifier struct {
	store   storage.NotificationStore
	metrics *metrics.Metrics
}

// NewStoreNotifier creates a notifier backed by store. m may be nil.
func NewStoreNotifier(store storage.NotificationStore, m *metrics.Metrics) *StoreNotifier {
	return &StoreNotifier{store: store, metrics: m}
}

// Notify saves n.
func (n *StoreNotifier) Notify(ctx context.Context, msg models.Notification) error {
	if err := n.store.SaveNotification(ctx, &msg); err != nil {
		return err
	}
	n.metrics.NotificationSent()
	return nil
}

// UserDirectory resolves party IDs to accounts for display names.
type UserDirectory interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// displayNames maps each party to a display name, falling back to the ID.
func (s *LedgerService) displayNames(ctx context.Context, parties ...models.Party) map[models.Party]string {
	names := make(map[models.Party]string, len(parties))
	ids := make([]string, len(parties))
	for i, p := range parties {
		names[p] = string(p)
		ids[i] = string(p)
	}
	if s.users == nil {
		return names
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve display names", "error", err)
		return names
	}
	for _, p := range parties {
		if u, ok := users[string(p)]; ok && u.DisplayName != "" {
			names[p] = u.DisplayName
		}
	}
	return names
}

// notify sends message to every recipient. Failures are logged, never
// returned: the event is already durable.
func (s *LedgerService) notify(ctx context.Context, eventID string, recipients []models.Party, message string) {
	if s.notifier == nil {
		return
	}
	now := s.now().UnixMilli()
	for _, r := range recipients {
		err := s.notifier.Notify(ctx, models.Notification{
			ID:        fmt.Sprintf("%s:%s", eventID, r),
			Recipient: r,
			EventID:   eventID,
			Message:   message,
			CreatedAt: now,
		})
		if err != nil {
			s.logger.Error("Failed to deliver notification", "event_id", eventID, "recipient", r, "error", err)
		}
	}
}
