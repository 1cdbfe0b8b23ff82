package models

import (
	"sort"
	"time"
)

// Event is one entry in the ledger log: an Expense, Settlement or ExpenseVoid.
type Event interface {
	EventID() string
	OccurredAt() time.Time
}

// SortEvents orders events by timestamp, so that any two permutations of the
// same log sort identically. Ties put voids last, then break by ID.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := events[i].OccurredAt(), events[j].OccurredAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if vi, vj := isVoid(events[i]), isVoid(events[j]); vi != vj {
			return vj
		}
		return events[i].EventID() < events[j].EventID()
	})
}

func isVoid(ev Event) bool {
	switch ev.(type) {
	case ExpenseVoid, *ExpenseVoid:
		return true
	}
	return false
}
