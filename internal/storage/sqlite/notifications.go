package sqlite

import (
	"context"
	"fmt"

	"github.com/fairshare/ledger/internal/models"
)

// SaveNotification stores a notification. Saving the same ID twice is a no-op.
func (s *SQLiteStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, event_id, message, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		n.ID, string(n.Recipient), n.EventID, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's notifications, newest first.
// A non-positive limit returns all of them.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipient models.Party, limit int) ([]*models.Notification, error) {
	query := `SELECT id, recipient, event_id, message, created_at
		FROM notifications WHERE recipient = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{string(recipient)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			recipient string
		)
		if err := rows.Scan(&n.ID, &recipient, &n.EventID, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Recipient = models.Party(recipient)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}
