package models

import (
	"time"

	"github.com/fairshare/ledger/internal/money"
)

// Settlement represents a direct payment that reduces From's debt to To.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// From is the party who paid (debtor settling up).
	From Party

	// To is the party who received the payment (creditor being paid).
	To Party

	// Amount is the payment amount. Always positive.
	Amount money.Money

	// Note is an optional description for the settlement.
	Note string

	// CreatedBy is the party who recorded this settlement.
	CreatedBy Party

	// CreatedAt is when the payment happened.
	CreatedAt time.Time
}

// EventID implements Event.
func (s Settlement) EventID() string { return s.ID }

// OccurredAt implements Event.
func (s Settlement) OccurredAt() time.Time { return s.CreatedAt }

// Involves reports whether p paid or received the settlement.
func (s Settlement) Involves(p Party) bool {
	return s.From == p || s.To == p
}
