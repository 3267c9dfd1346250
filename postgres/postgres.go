// Package postgres installs the database-side helpers for uuid47
// columns: a config row pinning the key fingerprint, a plain v7
// generator, and extractors over the stored sortable form. The masking
// transform itself stays in the application so the key never reaches
// the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Config pins the application's key identity to the database. Only the
// irreversible fingerprint is stored, never the key.
type Config struct {
	KeyFingerprint string
}

// ErrConfigMismatch is returned when the database was migrated under a
// different key fingerprint than the application is running with.
var ErrConfigMismatch = errors.New("uuid47: database key fingerprint does not match application key")

// Migrate runs the idempotent uuid47 migration. If the database already
// holds a different key fingerprint, returns ErrConfigMismatch; rotate
// deliberately rather than silently re-masking.
func Migrate(ctx context.Context, db *sql.DB, cfg Config) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _uuid47_config (
			id int PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			key_fingerprint text NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("uuid47: create config table: %w", err)
	}

	var stored string
	err = db.QueryRowContext(ctx, `SELECT key_fingerprint FROM _uuid47_config`).Scan(&stored)
	if err == nil {
		if stored != cfg.KeyFingerprint {
			return fmt.Errorf("%w: db has %s, app has %s",
				ErrConfigMismatch, stored, cfg.KeyFingerprint)
		}
	} else if errors.Is(err, sql.ErrNoRows) {
		_, err = db.ExecContext(ctx, `INSERT INTO _uuid47_config (key_fingerprint) VALUES ($1)`,
			cfg.KeyFingerprint)
		if err != nil {
			return fmt.Errorf("uuid47: insert config: %w", err)
		}
	} else {
		return fmt.Errorf("uuid47: read config: %w", err)
	}

	if _, err := db.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("uuid47: run migrations: %w", err)
	}

	return nil
}

// GetConfig reads the uuid47 configuration from the database.
func GetConfig(ctx context.Context, db *sql.DB) (Config, error) {
	var cfg Config
	err := db.QueryRowContext(ctx, `SELECT key_fingerprint FROM _uuid47_config`).Scan(&cfg.KeyFingerprint)
	return cfg, err
}

// The SQL surface works on the stored sortable form. uuid47_generate()
// is the in-database fallback producer (random, not monotonic: cross
// backend monotonicity cannot be promised anyway); application code
// should prefer the Go generator.
const migrationSQL = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

-- Generate a sortable (v7) uuid
CREATE OR REPLACE FUNCTION uuid47_generate()
  RETURNS uuid
  LANGUAGE plpgsql
  VOLATILE
  AS $$
DECLARE
  unix_ms bigint;
  buf bytea;
BEGIN
  unix_ms := (extract(epoch FROM clock_timestamp()) * 1000)::bigint;
  buf := gen_random_bytes(16);
  buf := overlay(buf PLACING substring(int8send(unix_ms) FROM 3 FOR 6) FROM 1 FOR 6);
  buf := set_byte(buf, 6, (get_byte(buf, 6) & 15) | 112);  -- version 7
  buf := set_byte(buf, 8, (get_byte(buf, 8) & 63) | 128);  -- variant 10
  RETURN encode(buf, 'hex')::uuid;
END;
$$;

-- Version nibble of a stored id
CREATE OR REPLACE FUNCTION uuid47_version(id uuid)
  RETURNS int
  LANGUAGE sql
  IMMUTABLE PARALLEL SAFE STRICT LEAKPROOF
  AS $$
  SELECT ('x' || substring(replace(id::text, '-', '') FROM 13 FOR 1))::bit(4)::int;
$$;

CREATE OR REPLACE FUNCTION is_uuid47_sortable(id uuid)
  RETURNS boolean
  LANGUAGE sql
  IMMUTABLE PARALLEL SAFE STRICT LEAKPROOF
  AS $$
  SELECT uuid47_version(id) = 7;
$$;

CREATE OR REPLACE FUNCTION is_uuid47_facade(id uuid)
  RETURNS boolean
  LANGUAGE sql
  IMMUTABLE PARALLEL SAFE STRICT LEAKPROOF
  AS $$
  SELECT uuid47_version(id) = 4;
$$;

-- Embedded timestamp of the sortable form
CREATE OR REPLACE FUNCTION uuid47_timestamp(id uuid)
  RETURNS timestamptz
  LANGUAGE sql
  IMMUTABLE PARALLEL SAFE STRICT LEAKPROOF
  AS $$
  SELECT to_timestamp((('x' || substring(replace(id::text, '-', '') FROM 1 FOR 12))::bit(48)::bigint)::numeric / 1000);
$$;
`
