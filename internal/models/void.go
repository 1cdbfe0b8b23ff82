package models

import "time"

// ExpenseVoid cancels an earlier expense. Folding it reverses every balance
// change the expense caused.
type ExpenseVoid struct {
	ID        string
	ExpenseID string
	Reason    string
	CreatedBy Party
	CreatedAt time.Time
}

// EventID implements Event.
func (v ExpenseVoid) EventID() string { return v.ID }

// OccurredAt implements Event.
func (v ExpenseVoid) OccurredAt() time.Time { return v.CreatedAt }
