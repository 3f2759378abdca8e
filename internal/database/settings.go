package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/amazonlight/internal/config"
)

const settingsSchema = `
	CREATE TABLE IF NOT EXISTS plugin_settings (
		plugin     TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (plugin, key)
	)`

// Querier is satisfied by *DB and by pgx transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SettingsStore reads one plugin's settings from the shared plugin_settings
// table. It is a config.Source, so a sibling plugin's configuration can back
// this one without either reaching into the other.
type SettingsStore struct {
	q      Querier
	plugin string
}

func NewSettingsStore(q Querier, plugin string) *SettingsStore {
	return &SettingsStore{q: q, plugin: plugin}
}

// EnsureSchema creates the settings table when it does not exist yet.
func (s *SettingsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, settingsSchema); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// Lookup returns config.ErrNotFound when the plugin has no value for key.
func (s *SettingsStore) Lookup(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value
		FROM plugin_settings
		WHERE plugin = $1 AND key = $2`

	var value string
	err := s.q.QueryRow(ctx, query, s.plugin, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%s.%s: %w", s.plugin, key, config.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s.%s: %w", s.plugin, key, err)
	}

	return value, nil
}
