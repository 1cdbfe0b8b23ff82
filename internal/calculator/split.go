// Package calculator turns shared expenses and payments into balances.
//
// Resolve divides an expense total into per-participant shares. Ledger folds
// an ordered log of expenses, settlements and voids into pairwise balances.
// SettlementProcessor validates settle-up input. Everything here is pure and
// synchronous: no I/O, no logging, no shared state.
package calculator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

// SplitPolicy is a split kind plus, for custom and full-amount splits, the
// explicit per-participant shares.
type SplitPolicy struct {
	Kind   models.SplitKind
	Shares map[models.Party]money.Money
}

func PaidByPayerSplitEqually() SplitPolicy {
	return SplitPolicy{Kind: models.SplitPaidByPayerEqually}
}

func PayerOwedFullAmount() SplitPolicy {
	return SplitPolicy{Kind: models.SplitPayerOwedFull}
}

func CounterpartyPaidSplitEqually() SplitPolicy {
	return SplitPolicy{Kind: models.SplitCounterpartyPaidEqually}
}

func CounterpartyPaidFullAmount() SplitPolicy {
	return SplitPolicy{Kind: models.SplitCounterpartyPaidFull}
}

func CustomShares(shares map[models.Party]money.Money) SplitPolicy {
	return SplitPolicy{Kind: models.SplitCustomShares, Shares: shares}
}

// SplitRequest is everything Resolve needs to divide a bill.
type SplitRequest struct {
	Policy       SplitPolicy
	Total        money.Money
	Payer        models.Party
	Participants []models.Party

	// Initiator is the party creating the expense ("you" in a two-party
	// split). Optional; when set, the payer-side policies require
	// Payer == Initiator and the counterparty policies require Payer != Initiator.
	Initiator models.Party
}

// Resolve computes the amount each participant owes for the bill.
//
// The returned shares always sum exactly to Total. Equal splits hand leftover
// minor units one at a time to the payer first, then to the remaining
// participants in the order supplied: 10.00 between payer A and B, C gives
// A 3.34, B 3.33, C 3.33.
func Resolve(req SplitRequest) (map[models.Party]money.Money, error) {
	if !req.Total.IsPositive() {
		return nil, fmt.Errorf("%w: total %s", ErrNonPositiveAmount, req.Total)
	}
	if req.Payer == "" {
		return nil, fmt.Errorf("%w: payer is required", ErrInvalidPolicy)
	}
	if !req.Payer.Valid() {
		return nil, fmt.Errorf("%w: invalid payer %q", ErrInvalidPolicy, req.Payer)
	}
	if err := validateParticipants(req.Participants); err != nil {
		return nil, err
	}
	if err := checkInitiator(req); err != nil {
		return nil, err
	}

	var (
		shares map[models.Party]money.Money
		err    error
	)
	switch req.Policy.Kind {
	case models.SplitPaidByPayerEqually, models.SplitCounterpartyPaidEqually:
		shares, err = splitEqually(req.Total, payerFirst(req.Payer, req.Participants))

	case models.SplitPayerOwedFull, models.SplitCounterpartyPaidFull:
		shares, err = payerOwedFull(req)

	case models.SplitCustomShares:
		shares, err = explicitShares(req)

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, req.Policy.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := checkSharesSum(shares, req.Total); err != nil {
		return nil, err
	}
	return shares, nil
}

func validateParticipants(participants []models.Party) error {
	if len(participants) == 0 {
		return fmt.Errorf("%w: must have at least one participant", ErrInvalidPolicy)
	}
	seen := make(map[models.Party]bool, len(participants))
	for _, p := range participants {
		if p == "" {
			return fmt.Errorf("%w: empty participant", ErrInvalidPolicy)
		}
		if !p.Valid() {
			return fmt.Errorf("%w: invalid participant %q", ErrInvalidPolicy, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate participant %q", ErrInvalidPolicy, p)
		}
		seen[p] = true
	}
	return nil
}

func checkInitiator(req SplitRequest) error {
	if req.Initiator == "" {
		return nil
	}
	switch req.Policy.Kind {
	case models.SplitPaidByPayerEqually, models.SplitPayerOwedFull:
		if req.Payer != req.Initiator {
			return fmt.Errorf("%w: %s requires the initiator to be the payer", ErrInvalidPolicy, req.Policy.Kind)
		}
	case models.SplitCounterpartyPaidEqually, models.SplitCounterpartyPaidFull:
		if req.Payer == req.Initiator {
			return fmt.Errorf("%w: %s requires a payer other than the initiator", ErrInvalidPolicy, req.Policy.Kind)
		}
		if !containsParty(req.Participants, req.Initiator) {
			return fmt.Errorf("%w: initiator %q must participate", ErrInvalidPolicy, req.Initiator)
		}
	}
	return nil
}

// payerFirst returns the equal-split order: the payer, then everyone else as supplied.
func payerFirst(payer models.Party, participants []models.Party) []models.Party {
	order := make([]models.Party, 0, len(participants)+1)
	order = append(order, payer)
	for _, p := range participants {
		if p != payer {
			order = append(order, p)
		}
	}
	return order
}

func splitEqually(total money.Money, sharers []models.Party) (map[models.Party]money.Money, error) {
	parts, err := total.Divide(len(sharers))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	shares := make(map[models.Party]money.Money, len(sharers))
	for i, p := range sharers {
		shares[p] = parts[i]
	}
	return shares, nil
}

func payerOwedFull(req SplitRequest) (map[models.Party]money.Money, error) {
	if len(req.Policy.Shares) > 0 {
		if share, ok := req.Policy.Shares[req.Payer]; ok && !share.IsZero() {
			return nil, fmt.Errorf("%w: payer share must be zero for %s", ErrInvalidPolicy, req.Policy.Kind)
		}
		return explicitShares(req)
	}

	var debtors []models.Party
	for _, p := range req.Participants {
		if p != req.Payer {
			debtors = append(debtors, p)
		}
	}
	if len(debtors) == 0 {
		return nil, fmt.Errorf("%w: %s needs a participant other than the payer", ErrInvalidPolicy, req.Policy.Kind)
	}

	shares, err := splitEqually(req.Total, debtors)
	if err != nil {
		return nil, err
	}
	if containsParty(req.Participants, req.Payer) {
		shares[req.Payer] = money.Zero
	}
	return shares, nil
}

func explicitShares(req SplitRequest) (map[models.Party]money.Money, error) {
	given := req.Policy.Shares
	if len(given) == 0 {
		return nil, fmt.Errorf("%w: %s requires explicit shares", ErrInvalidPolicy, req.Policy.Kind)
	}

	shares := make(map[models.Party]money.Money, len(given))
	for _, p := range req.Participants {
		share, ok := given[p]
		if !ok {
			return nil, fmt.Errorf("%w: missing share for participant %q", ErrInvalidPolicy, p)
		}
		shares[p] = share
	}
	for p, share := range given {
		if _, ok := shares[p]; !ok {
			if p != req.Payer {
				return nil, fmt.Errorf("%w: share given for non-participant %q", ErrInvalidPolicy, p)
			}
			shares[p] = share
		}
		if share.IsNegative() {
			return nil, fmt.Errorf("%w: negative share %s for %q", ErrInvalidPolicy, share, p)
		}
	}

	var sum money.Money
	for _, share := range shares {
		sum = sum.Add(share)
	}
	if sum != req.Total {
		return nil, fmt.Errorf("%w: shares sum to %s, total is %s", ErrInvalidPolicy, sum, req.Total)
	}
	return shares, nil
}

func checkSharesSum(shares map[models.Party]money.Money, total money.Money) error {
	var sum money.Money
	for _, share := range shares {
		sum = sum.Add(share)
	}
	if sum != total {
		return fmt.Errorf("%w: shares sum to %s, total is %s", ErrRoundingInvariant, sum, total)
	}
	return nil
}

func containsParty(parties []models.Party, p models.Party) bool {
	for _, candidate := range parties {
		if candidate == p {
			return true
		}
	}
	return false
}

// ExpenseInput describes a new expense before its shares are resolved.
type ExpenseInput struct {
	// ID is generated when empty.
	ID          string
	Description string
	Split       SplitRequest
	CreatedBy   models.Party
	// CreatedAt defaults to the current time.
	CreatedAt time.Time
}

// NewExpense resolves the split and returns the immutable expense record.
func NewExpense(in ExpenseInput) (models.Expense, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return models.Expense{}, fmt.Errorf("%w: description is required", ErrInvalidEvent)
	}

	shares, err := Resolve(in.Split)
	if err != nil {
		return models.Expense{}, err
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	participants := make([]models.Party, len(in.Split.Participants))
	copy(participants, in.Split.Participants)

	return models.Expense{
		ID:           id,
		Description:  description,
		Amount:       in.Split.Total,
		Payer:        in.Split.Payer,
		Participants: participants,
		Shares:       shares,
		Split:        in.Split.Policy.Kind,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    createdAt,
	}, nil
}
