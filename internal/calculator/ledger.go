package calculator

import (
	"fmt"
	"sort"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

// PairDelta records that Debtor owes Creditor Amount more than before.
// A negative Amount moves the debt the other way.
type PairDelta struct {
	Creditor models.Party
	Debtor   models.Party
	Amount   money.Money
}

// BalanceDelta is the full balance change caused by one event.
type BalanceDelta struct {
	EventID string
	Entries []PairDelta
}

// Neg returns the delta that undoes d.
func (d BalanceDelta) Neg() BalanceDelta {
	entries := make([]PairDelta, len(d.Entries))
	for i, e := range d.Entries {
		entries[i] = PairDelta{Creditor: e.Creditor, Debtor: e.Debtor, Amount: e.Amount.Neg()}
	}
	return BalanceDelta{EventID: d.EventID, Entries: entries}
}

// PairBalance is the balance of an unordered pair in canonical form:
// A < B, and a positive Amount means B owes A.
type PairBalance struct {
	A      models.Party
	B      models.Party
	Amount money.Money
}

// CounterpartyBalance is one party's balance against another.
// Positive means the counterparty owes the party.
type CounterpartyBalance struct {
	Counterparty models.Party
	Amount       money.Money
}

type pairKey struct {
	a, b models.Party
}

// canonical returns the key for (x, y) and the sign that converts
// netBalance(x, y) into the stored value.
func canonical(x, y models.Party) (pairKey, int64) {
	if x < y {
		return pairKey{a: x, b: y}, 1
	}
	return pairKey{a: y, b: x}, -1
}

// Ledger folds ledger events into pairwise balances.
//
// The balances are a pure function of the set of events folded so far:
// expenses and settlements commute, so any ordering that keeps each void after
// its expense yields the same result. A Ledger is not safe for concurrent use.
type Ledger struct {
	pairs    map[pairKey]money.Money
	expenses map[string]models.Expense
	voided   map[string]bool
	seen     map[string]bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		pairs:    make(map[pairKey]money.Money),
		expenses: make(map[string]models.Expense),
		voided:   make(map[string]bool),
		seen:     make(map[string]bool),
	}
}

// Fold builds a ledger from events, applied in timestamp order.
func Fold(events []models.Event) (*Ledger, error) {
	l := NewLedger()
	if err := l.ApplyAll(events); err != nil {
		return nil, err
	}
	return l, nil
}

// LedgerFromPairs restores a ledger's balances from canonical pairs, such as
// a balance cache snapshot. The result has no event history, so it cannot
// fold voids of earlier expenses.
func LedgerFromPairs(pairs []PairBalance) *Ledger {
	l := NewLedger()
	for _, p := range pairs {
		if p.A == p.B || p.Amount.IsZero() {
			continue
		}
		key, sign := canonical(p.A, p.B)
		next := l.pairs[key].Add(money.FromMinorUnits(sign * p.Amount.MinorUnits()))
		if next.IsZero() {
			delete(l.pairs, key)
			continue
		}
		l.pairs[key] = next
	}
	return l
}

// ApplyAll applies a batch of events in timestamp order (ties broken by ID).
// On error the ledger holds every event before the failing one.
func (l *Ledger) ApplyAll(events []models.Event) error {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	models.SortEvents(sorted)

	for _, ev := range sorted {
		if _, err := l.Apply(ev); err != nil {
			return fmt.Errorf("failed to apply event %s: %w", ev.EventID(), err)
		}
	}
	return nil
}

// Apply folds a single event of any kind.
func (l *Ledger) Apply(ev models.Event) (BalanceDelta, error) {
	switch e := ev.(type) {
	case models.Expense:
		return l.ApplyExpense(e)
	case *models.Expense:
		return l.ApplyExpense(*e)
	case models.Settlement:
		return l.ApplySettlement(e)
	case *models.Settlement:
		return l.ApplySettlement(*e)
	case models.ExpenseVoid:
		return l.ApplyVoid(e)
	case *models.ExpenseVoid:
		return l.ApplyVoid(*e)
	default:
		return BalanceDelta{}, fmt.Errorf("%w: unsupported event type %T", ErrInvalidEvent, ev)
	}
}

// ApplyExpense folds an expense: every participant other than the payer owes
// the payer their share. The expense's stored shares are authoritative.
func (l *Ledger) ApplyExpense(e models.Expense) (BalanceDelta, error) {
	if l.seen[e.ID] {
		return BalanceDelta{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, e.ID)
	}
	delta, err := ExpenseDelta(e)
	if err != nil {
		return BalanceDelta{}, err
	}

	l.apply(delta)
	l.seen[e.ID] = true
	l.expenses[e.ID] = e
	return delta, nil
}

// ApplySettlement folds a payment: From's debt to To shrinks by Amount.
// Overpaying is allowed and flips the sign of the pair balance.
func (l *Ledger) ApplySettlement(s models.Settlement) (BalanceDelta, error) {
	if l.seen[s.ID] {
		return BalanceDelta{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, s.ID)
	}
	delta, err := SettlementDelta(s)
	if err != nil {
		return BalanceDelta{}, err
	}

	l.apply(delta)
	l.seen[s.ID] = true
	return delta, nil
}

// ApplyVoid reverses every balance change of a previously folded expense.
func (l *Ledger) ApplyVoid(v models.ExpenseVoid) (BalanceDelta, error) {
	if v.ID == "" || v.ExpenseID == "" {
		return BalanceDelta{}, fmt.Errorf("%w: void requires id and expense id", ErrInvalidEvent)
	}
	if l.seen[v.ID] {
		return BalanceDelta{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, v.ID)
	}
	expense, ok := l.expenses[v.ExpenseID]
	if !ok {
		return BalanceDelta{}, fmt.Errorf("%w: %s", ErrUnknownExpense, v.ExpenseID)
	}
	if l.voided[v.ExpenseID] {
		return BalanceDelta{}, fmt.Errorf("%w: %s", ErrAlreadyVoided, v.ExpenseID)
	}

	original, err := ExpenseDelta(expense)
	if err != nil {
		return BalanceDelta{}, err
	}
	delta := original.Neg()
	delta.EventID = v.ID

	l.apply(delta)
	l.seen[v.ID] = true
	l.voided[v.ExpenseID] = true
	return delta, nil
}

// ExpenseDelta computes the balance change of an expense without applying it.
// It depends only on the expense, never on ledger state.
func ExpenseDelta(e models.Expense) (BalanceDelta, error) {
	if err := ValidateExpense(e); err != nil {
		return BalanceDelta{}, err
	}

	debtors := make([]models.Party, 0, len(e.Shares))
	for p := range e.Shares {
		if p != e.Payer {
			debtors = append(debtors, p)
		}
	}
	models.SortParties(debtors)

	delta := BalanceDelta{EventID: e.ID}
	for _, p := range debtors {
		share := e.Shares[p]
		if share.IsZero() {
			continue
		}
		delta.Entries = append(delta.Entries, PairDelta{Creditor: e.Payer, Debtor: p, Amount: share})
	}
	return delta, nil
}

// ValidateExpense checks the invariants every stored expense must satisfy.
func ValidateExpense(e models.Expense) error {
	if e.ID == "" {
		return fmt.Errorf("%w: expense id is required", ErrInvalidEvent)
	}
	if !e.Payer.Valid() {
		return fmt.Errorf("%w: expense %s has no valid payer", ErrInvalidEvent, e.ID)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: expense %s amount %s", ErrNonPositiveAmount, e.ID, e.Amount)
	}
	for p, share := range e.Shares {
		if !p.Valid() {
			return fmt.Errorf("%w: expense %s has invalid party %q", ErrInvalidEvent, e.ID, p)
		}
		if share.IsNegative() {
			return fmt.Errorf("%w: expense %s has negative share for %q", ErrInvalidEvent, e.ID, p)
		}
	}
	return checkSharesSum(e.Shares, e.Amount)
}

// SettlementDelta computes the balance change of a settlement without applying it.
func SettlementDelta(s models.Settlement) (BalanceDelta, error) {
	if err := ValidateSettlement(s); err != nil {
		return BalanceDelta{}, err
	}
	return BalanceDelta{
		EventID: s.ID,
		Entries: []PairDelta{{Creditor: s.From, Debtor: s.To, Amount: s.Amount}},
	}, nil
}

// ValidateSettlement checks the invariants every stored settlement must satisfy.
func ValidateSettlement(s models.Settlement) error {
	if s.ID == "" {
		return fmt.Errorf("%w: settlement id is required", ErrInvalidEvent)
	}
	if !s.From.Valid() || !s.To.Valid() {
		return fmt.Errorf("%w: settlement %s needs two valid parties", ErrInvalidEvent, s.ID)
	}
	if s.From == s.To {
		return fmt.Errorf("%w: %q", ErrSameParty, s.From)
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("%w: settlement amount %s", ErrNonPositiveAmount, s.Amount)
	}
	return nil
}

func (l *Ledger) apply(delta BalanceDelta) {
	for _, e := range delta.Entries {
		if e.Creditor == e.Debtor {
			continue
		}
		key, sign := canonical(e.Creditor, e.Debtor)
		next := l.pairs[key].Add(money.FromMinorUnits(sign * e.Amount.MinorUnits()))
		if next.IsZero() {
			delete(l.pairs, key)
			continue
		}
		l.pairs[key] = next
	}
}

// NetBalance returns what b owes a across all folded events; negative means
// a owes b. NetBalance(a, b) == NetBalance(b, a).Neg() always holds.
func (l *Ledger) NetBalance(a, b models.Party) money.Money {
	if a == b {
		return money.Zero
	}
	key, sign := canonical(a, b)
	return money.FromMinorUnits(sign * l.pairs[key].MinorUnits())
}

// Balances lists p's non-zero balances against each counterparty, sorted by counterparty.
func (l *Ledger) Balances(p models.Party) []CounterpartyBalance {
	var out []CounterpartyBalance
	for key, amount := range l.pairs {
		switch p {
		case key.a:
			out = append(out, CounterpartyBalance{Counterparty: key.b, Amount: amount})
		case key.b:
			out = append(out, CounterpartyBalance{Counterparty: key.a, Amount: amount.Neg()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Counterparty < out[j].Counterparty })
	return out
}

// TotalOwedTo sums what other parties owe p.
func (l *Ledger) TotalOwedTo(p models.Party) money.Money {
	var total money.Money
	for _, b := range l.Balances(p) {
		if b.Amount.IsPositive() {
			total = total.Add(b.Amount)
		}
	}
	return total
}

// TotalOwedBy sums what p owes other parties, as a non-negative amount.
func (l *Ledger) TotalOwedBy(p models.Party) money.Money {
	var total money.Money
	for _, b := range l.Balances(p) {
		if b.Amount.IsNegative() {
			total = total.Add(b.Amount.Neg())
		}
	}
	return total
}

// NetPositions returns every party's overall position: positive means the
// party is owed money on balance.
func (l *Ledger) NetPositions() map[models.Party]money.Money {
	positions := make(map[models.Party]money.Money)
	for key, amount := range l.pairs {
		positions[key.a] = positions[key.a].Add(amount)
		positions[key.b] = positions[key.b].Sub(amount)
	}
	return positions
}

// Pairs returns every non-zero pair balance in canonical form, sorted.
func (l *Ledger) Pairs() []PairBalance {
	out := make([]PairBalance, 0, len(l.pairs))
	for key, amount := range l.pairs {
		out = append(out, PairBalance{A: key.a, B: key.b, Amount: amount})
	}
	SortPairs(out)
	return out
}

// Expense returns a folded expense by ID, voided or not.
func (l *Ledger) Expense(id string) (models.Expense, bool) {
	e, ok := l.expenses[id]
	return e, ok
}

// Voided reports whether a void for expense id has been applied.
func (l *Ledger) Voided(id string) bool {
	return l.voided[id]
}

// SortPairs orders pair balances by (A, B).
func SortPairs(pairs []PairBalance) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
}

// CanonicalPair converts "debtor owes creditor amount" into canonical form.
func CanonicalPair(creditor, debtor models.Party, amount money.Money) PairBalance {
	key, sign := canonical(creditor, debtor)
	return PairBalance{A: key.a, B: key.b, Amount: money.FromMinorUnits(sign * amount.MinorUnits())}
}

// DiffPairs returns the canonical pairs whose amounts differ between want and
// got, with want's amount (zero if absent).
func DiffPairs(want, got []PairBalance) []PairBalance {
	index := func(pairs []PairBalance) map[pairKey]money.Money {
		m := make(map[pairKey]money.Money, len(pairs))
		for _, p := range pairs {
			if !p.Amount.IsZero() {
				m[pairKey{a: p.A, b: p.B}] = p.Amount
			}
		}
		return m
	}
	w, g := index(want), index(got)

	var diff []PairBalance
	for key, amount := range w {
		if g[key] != amount {
			diff = append(diff, PairBalance{A: key.a, B: key.b, Amount: amount})
		}
	}
	for key := range g {
		if _, ok := w[key]; !ok {
			diff = append(diff, PairBalance{A: key.a, B: key.b})
		}
	}
	SortPairs(diff)
	return diff
}
