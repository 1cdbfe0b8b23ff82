package sqlite

import "database/sql"

// schema sets up the event log, accounts, notifications and the balance cache.
// Amounts are INTEGER minor units; timestamps are Unix nanoseconds (UTC).
// IMPORTANT: expenses must be created BEFORE the tables that reference it.
const schema = `
CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    payer TEXT NOT NULL,
    split_kind TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL,
    party TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (expense_id, party),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_shares (
    expense_id TEXT NOT NULL,
    party TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    PRIMARY KEY (expense_id, party),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    from_party TEXT NOT NULL,
    to_party TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    note TEXT,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_voids (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL UNIQUE,
    reason TEXT,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (expense_id) REFERENCES expenses(id)
);

-- event_ids holds every expense, settlement and void ID: events share one ID space.
CREATE TABLE IF NOT EXISTS event_ids (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    recipient TEXT NOT NULL,
    event_id TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pair_balances (
    party_a TEXT NOT NULL,
    party_b TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    PRIMARY KEY (party_a, party_b)
);

CREATE TABLE IF NOT EXISTS applied_deltas (
    event_id TEXT PRIMARY KEY
);

CREATE INDEX IF NOT EXISTS idx_expenses_payer ON expenses(payer);
CREATE INDEX IF NOT EXISTS idx_expense_participants_party ON expense_participants(party);
CREATE INDEX IF NOT EXISTS idx_settlements_from ON settlements(from_party);
CREATE INDEX IF NOT EXISTS idx_settlements_to ON settlements(to_party);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, created_at);

INSERT OR IGNORE INTO event_ids (id, kind) SELECT id, 'expense' FROM expenses;
INSERT OR IGNORE INTO event_ids (id, kind) SELECT id, 'settlement' FROM settlements;
INSERT OR IGNORE INTO event_ids (id, kind) SELECT id, 'void' FROM expense_voids;
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
