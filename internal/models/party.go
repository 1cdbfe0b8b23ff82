package models

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Party identifies a user or friend taking part in expenses and settlements.
type Party string

// Valid reports whether p can name a party: non-empty UTF-8 with no control
// characters. Balance caches join two parties with a control character, so
// one inside an identifier would split ambiguously.
func (p Party) Valid() bool {
	s := string(p)
	return s != "" && utf8.ValidString(s) && !strings.ContainsFunc(s, unicode.IsControl)
}

// SortParties orders parties by identifier, in place.
func SortParties(parties []Party) {
	sort.Slice(parties, func(i, j int) bool { return parties[i] < parties[j] })
}
