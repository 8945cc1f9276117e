package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema sets up the ledger tables. It runs on startup to ensure tables
// exist and is valid for both SQLite and PostgreSQL.
// IMPORTANT: users must be created first; other tables reference it.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    owner_id TEXT NOT NULL REFERENCES users(id),
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id),
    joined_at BIGINT NOT NULL,
    PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    scope_type TEXT NOT NULL,
    scope_id TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(id),
    type TEXT NOT NULL,
    amount TEXT NOT NULL,
    description TEXT NOT NULL,
    attachment_url TEXT NOT NULL DEFAULT '',
    loan_id TEXT NOT NULL DEFAULT '',
    goal_id TEXT NOT NULL DEFAULT '',
    is_system_generated INTEGER NOT NULL DEFAULT 0,
    system_key TEXT UNIQUE,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
    id TEXT PRIMARY KEY,
    family_id TEXT NOT NULL DEFAULT '',
    creditor_id TEXT NOT NULL REFERENCES users(id),
    debtor_id TEXT NOT NULL DEFAULT '',
    debtor_name TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    interest_amount TEXT NOT NULL,
    total_owed TEXT NOT NULL,
    repaid_amount TEXT NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL,
    attachment_url TEXT NOT NULL DEFAULT '',
    pending_amount TEXT,
    pending_receipt_url TEXT,
    pending_submitted_by TEXT,
    pending_submitted_at BIGINT,
    deadline BIGINT,
    confirmed_at BIGINT,
    version BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS loan_receipts (
    loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    amount TEXT NOT NULL,
    receipt_url TEXT NOT NULL DEFAULT '',
    recorded_at BIGINT NOT NULL,
    PRIMARY KEY (loan_id, seq)
);

CREATE TABLE IF NOT EXISTS goals (
    id TEXT PRIMARY KEY,
    scope_type TEXT NOT NULL,
    scope_id TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(id),
    name TEXT NOT NULL,
    target_amount TEXT NOT NULL,
    target_date BIGINT,
    status TEXT NOT NULL,
    consequence_note TEXT NOT NULL DEFAULT '',
    completed_by TEXT NOT NULL DEFAULT '',
    completed_at BIGINT,
    abandoned_at BIGINT,
    version BIGINT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    user_id TEXT NOT NULL,
    idem_key TEXT NOT NULL,
    request_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    response_status INTEGER NOT NULL DEFAULT 0,
    response_body TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, idem_key)
);

CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_scope ON transactions(scope_type, scope_id, created_at);
CREATE INDEX IF NOT EXISTS idx_loans_creditor_id ON loans(creditor_id);
CREATE INDEX IF NOT EXISTS idx_loans_debtor_id ON loans(debtor_id);
CREATE INDEX IF NOT EXISTS idx_loans_family_id ON loans(family_id);
CREATE INDEX IF NOT EXISTS idx_goals_scope ON goals(scope_type, scope_id, status);
CREATE INDEX IF NOT EXISTS idx_idempotency_keys_created_at ON idempotency_keys(created_at);
`

// runMigrations executes the schema setup one statement at a time.
func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
