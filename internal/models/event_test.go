package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortEvents(t *testing.T) {
	t0 := time.Date(2024, 6, 18, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	events := []Event{
		Settlement{ID: "s-late", CreatedAt: t1},
		&ExpenseVoid{ID: "a-void", ExpenseID: "z-exp", CreatedAt: t0},
		Expense{ID: "z-exp", CreatedAt: t0},
		Settlement{ID: "m-set", CreatedAt: t0},
	}
	SortEvents(events)

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.EventID()
	}
	// Voids sort after same-instant events even when their ID is smaller.
	assert.Equal(t, []string{"m-set", "z-exp", "a-void", "s-late"}, ids)
}
