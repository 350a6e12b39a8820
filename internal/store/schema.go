package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the service tables. Every statement is idempotent so
// the schema can be ensured on each boot.
var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		role VARCHAR(20) NOT NULL DEFAULT 'USER',
		name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		balance NUMERIC(8,2) NOT NULL DEFAULT 0,
		CONSTRAINT users_name_key UNIQUE (name),
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_balance_non_negative CHECK (balance >= 0)
	);`,
	`
	CREATE TABLE IF NOT EXISTS connections (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		friend_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		CONSTRAINT connections_user_friend_key UNIQUE (user_id, friend_id),
		CONSTRAINT connections_no_self CHECK (user_id <> friend_id)
	);`,
	`
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		sender_id UUID NOT NULL REFERENCES users(id),
		receiver_id UUID NOT NULL REFERENCES users(id),
		description VARCHAR(255) NOT NULL,
		amount NUMERIC(8,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		CONSTRAINT transactions_amount_positive CHECK (amount > 0)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_sender_created ON transactions (sender_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions (created_at DESC);`,
}

// EnsureSchema creates the tables and indexes if they do not already exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
