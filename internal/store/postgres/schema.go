package postgres

import (
	"context"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Wallets and round tallies
// ─────────────────────────────────────────────────────────────────────────────

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id          TEXT         PRIMARY KEY,
    money            BIGINT       NOT NULL DEFAULT 0,
    games_played     INTEGER      NOT NULL DEFAULT 0,
    last_time_played TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS round_status (
    user_id TEXT    PRIMARY KEY,
    wins    INTEGER NOT NULL DEFAULT 0,
    losses  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_round_status_wins
    ON round_status (wins DESC);

CREATE TABLE IF NOT EXISTS user_roll_dices (
    user_id TEXT    PRIMARY KEY,
    dices   INTEGER NOT NULL DEFAULT 0
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Asset cooldowns
// ─────────────────────────────────────────────────────────────────────────────

const ddlAudioFiles = `
CREATE TABLE IF NOT EXISTS audio_files (
    user_id    TEXT        NOT NULL,
    asset_id   TEXT        NOT NULL,
    language   TEXT        NOT NULL,
    difficulty TEXT        NOT NULL,
    played_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, language, difficulty, asset_id)
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Scheduled jobs
// ─────────────────────────────────────────────────────────────────────────────

const ddlScheduledEvents = `
CREATE TABLE IF NOT EXISTS scheduled_events (
    label    TEXT        PRIMARY KEY,
    last_run TIMESTAMPTZ NOT NULL
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Cosmetic items
// ─────────────────────────────────────────────────────────────────────────────

const ddlItems = `
CREATE TABLE IF NOT EXISTS registered_items (
    image_name   TEXT    PRIMARY KEY,
    item_name    TEXT    NOT NULL UNIQUE,
    item_type    TEXT    NOT NULL,
    item_price   INTEGER NOT NULL CHECK (item_price >= 0),
    message_ref  TEXT    NOT NULL DEFAULT '',
    reaction_ref TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_items (
    user_id   TEXT    NOT NULL,
    item_name TEXT    NOT NULL REFERENCES registered_items (item_name)
                      ON UPDATE CASCADE ON DELETE CASCADE,
    enabled   BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (user_id, item_name)
);
`

// Schema lists the DDL statements applied by [Store.Migrate], in order.
var Schema = []string{
	ddlProfiles,
	ddlAudioFiles,
	ddlScheduledEvents,
	ddlItems,
}

// Migrate creates the tables and indexes if they do not exist yet. It is
// idempotent and safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
