package calculator

import (
	"sort"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

// DebtEdge is a suggested payment: From pays To Amount.
type DebtEdge struct {
	From   models.Party
	To     models.Party
	Amount money.Money
}

type position struct {
	party  models.Party
	amount money.Money // always positive
}

// SimplifyDebts proposes the payments that bring every party's net position
// to zero, using few transfers.
//
// Algorithm:
//   - net position per party = what others owe them - what they owe others
//   - creditors (positive) and debtors (negative) are sorted largest first,
//     ties by party ID, so the result is deterministic
//   - greedy matching: the current debtor pays the current creditor the
//     smaller of the two outstanding amounts, then whichever is cleared advances
func SimplifyDebts(l *Ledger) []DebtEdge {
	var creditors, debtors []position
	for party, amount := range l.NetPositions() {
		switch {
		case amount.IsPositive():
			creditors = append(creditors, position{party: party, amount: amount})
		case amount.IsNegative():
			debtors = append(debtors, position{party: party, amount: amount.Neg()})
		}
	}
	sortPositions(creditors)
	sortPositions(debtors)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].amount
		if creditors[j].amount.Cmp(amount) < 0 {
			amount = creditors[j].amount
		}

		edges = append(edges, DebtEdge{From: debtors[i].party, To: creditors[j].party, Amount: amount})

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		if debtors[i].amount.IsZero() {
			i++
		}
		if creditors[j].amount.IsZero() {
			j++
		}
	}
	return edges
}

func sortPositions(ps []position) {
	sort.Slice(ps, func(i, j int) bool {
		if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
			return c > 0
		}
		return ps[i].party < ps[j].party
	})
}
