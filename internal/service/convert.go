package service

import (
	"fmt"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

// splitRequest converts wire input into a calculator request made by initiator.
func splitRequest(in SplitInput, initiator models.Party) (calculator.SplitRequest, error) {
	kind := models.SplitKind(in.Kind)
	if !kind.Valid() {
		return calculator.SplitRequest{}, fmt.Errorf("%w: unknown split kind %q", calculator.ErrInvalidPolicy, in.Kind)
	}

	total, err := money.Parse(in.Total)
	if err != nil {
		return calculator.SplitRequest{}, fmt.Errorf("total: %w", err)
	}

	var shares map[models.Party]money.Money
	if len(in.Shares) > 0 {
		shares = make(map[models.Party]money.Money, len(in.Shares))
		for party, text := range in.Shares {
			amount, err := money.Parse(text)
			if err != nil {
				return calculator.SplitRequest{}, fmt.Errorf("share for %q: %w", party, err)
			}
			shares[models.Party(party)] = amount
		}
	}

	participants := make([]models.Party, len(in.Participants))
	for i, p := range in.Participants {
		participants[i] = models.Party(p)
	}

	return calculator.SplitRequest{
		Policy:       calculator.SplitPolicy{Kind: kind, Shares: shares},
		Total:        total,
		Payer:        models.Party(in.Payer),
		Participants: participants,
		Initiator:    initiator,
	}, nil
}

// orderedShares lists the payer first, then participants in their given
// order, then any remaining parties sorted.
func orderedShares(payer models.Party, participants []models.Party, shares map[models.Party]money.Money) []ShareMessage {
	out := make([]ShareMessage, 0, len(shares))
	seen := make(map[models.Party]bool, len(shares))
	add := func(p models.Party) {
		amount, ok := shares[p]
		if !ok || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, ShareMessage{Party: string(p), Amount: amount.String()})
	}

	add(payer)
	for _, p := range participants {
		add(p)
	}

	var rest []models.Party
	for p := range shares {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	models.SortParties(rest)
	for _, p := range rest {
		add(p)
	}
	return out
}

// involvedParties returns everyone on the expense except skip, sorted.
func involvedParties(e *models.Expense, skip models.Party) []models.Party {
	set := map[models.Party]bool{e.Payer: true}
	for _, p := range e.Participants {
		set[p] = true
	}
	delete(set, skip)

	out := make([]models.Party, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	models.SortParties(out)
	return out
}

// effectOn sums how delta moves party's net position: positive when others
// now owe the party more.
func effectOn(party models.Party, delta calculator.BalanceDelta) money.Money {
	var effect money.Money
	for _, e := range delta.Entries {
		switch party {
		case e.Creditor:
			effect = effect.Add(e.Amount)
		case e.Debtor:
			effect = effect.Sub(e.Amount)
		}
	}
	return effect
}
