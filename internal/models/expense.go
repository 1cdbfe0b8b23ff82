package models

import (
	"time"

	"github.com/fairshare/ledger/internal/money"
)

// SplitKind names the policy used to divide an expense.
type SplitKind string

const (
	// SplitPaidByPayerEqually: the payer covers the bill and everyone,
	// payer included, owes an equal share.
	SplitPaidByPayerEqually SplitKind = "paid_by_payer_split_equally"

	// SplitPayerOwedFull: the payer is owed the whole total by the other participants.
	SplitPayerOwedFull SplitKind = "payer_owed_full_amount"

	// SplitCounterpartyPaidEqually mirrors SplitPaidByPayerEqually with the
	// counterparty, not the initiator, as payer.
	SplitCounterpartyPaidEqually SplitKind = "counterparty_paid_split_equally"

	// SplitCounterpartyPaidFull mirrors SplitPayerOwedFull with the
	// counterparty as payer.
	SplitCounterpartyPaidFull SplitKind = "counterparty_paid_full_amount"

	// SplitCustomShares uses caller-supplied per-participant amounts.
	SplitCustomShares SplitKind = "custom_shares"
)

// Valid reports whether k is one of the known split kinds.
func (k SplitKind) Valid() bool {
	switch k {
	case SplitPaidByPayerEqually, SplitPayerOwedFull, SplitCounterpartyPaidEqually,
		SplitCounterpartyPaidFull, SplitCustomShares:
		return true
	}
	return false
}

// Expense records one shared cost. It is immutable once created; construct
// it with calculator.NewExpense so that Shares always sum to Amount.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is the human-readable label, e.g. "Dinner".
	Description string

	// Amount is the total paid by Payer.
	Amount money.Money

	// Payer is the party who paid the bill.
	Payer Party

	// Participants lists everyone on the expense in the order supplied at
	// creation. The payer may or may not be included.
	Participants []Party

	// Shares is the amount each participant is responsible for.
	// The values sum exactly to Amount.
	Shares map[Party]money.Money

	// Split is the policy used to resolve Shares. Informational only.
	Split SplitKind

	// CreatedBy is the party who recorded the expense.
	CreatedBy Party

	// CreatedAt is when the expense happened.
	CreatedAt time.Time
}

// EventID implements Event.
func (e Expense) EventID() string { return e.ID }

// OccurredAt implements Event.
func (e Expense) OccurredAt() time.Time { return e.CreatedAt }

// Involves reports whether p paid for or participates in the expense.
func (e Expense) Involves(p Party) bool {
	if e.Payer == p {
		return true
	}
	for _, participant := range e.Participants {
		if participant == p {
			return true
		}
	}
	return false
}
