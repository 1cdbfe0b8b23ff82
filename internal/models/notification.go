package models

// Notification is a message for one party about a ledger event,
// e.g. "Alice paid Bob 12.50".
type Notification struct {
	ID        string
	Recipient Party
	EventID   string
	Message   string
	// CreatedAt is Unix milliseconds.
	CreatedAt int64
}
