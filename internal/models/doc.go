// Package models defines the records that make up a shared-expense ledger.
//
// # Events
//
// The ledger is an append-only log of three event kinds:
//   - Expense: one shared cost, with the per-participant shares fixed at creation
//   - Settlement: a direct payment from one party to another
//   - ExpenseVoid: a compensating event that cancels an earlier expense
//
// Events are never edited or deleted. Balances are derived by folding the log
// (see package calculator); any stored balance is a cache of that fold.
//
// # Parties
//
// A Party is an opaque identifier for a user or friend. The ledger does not
// own profile data; User exists only for the authentication boundary.
//
// # Design Principles
//
//  1. **Amounts are money.Money**: integer minor units, never float64
//  2. **Shares are authoritative**: an Expense carries its resolved shares; the
//     split policy is recorded for display only
//  3. **Avoid circular references**: events refer to each other by ID string
package models
