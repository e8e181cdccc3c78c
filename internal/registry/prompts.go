// Package registry provides the two read-only SQLite-backed stores consulted
// by the Agent Runtime: prompts and guardrails. The Agent Runtime opens
// both read-only (mode=ro); mutation is exclusive to cmd/prompts and
// cmd/guardrails.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// PromptRegistry resolves named prompts to their latest enabled version's
// content.
type PromptRegistry interface {
	Get(ctx context.Context, key string, promptContext map[string]any) (string, error)
}

// PromptStore is the read-write administrative handle used by cmd/prompts;
// it also implements the read-only PromptRegistry surface used by the runtime.
type PromptStore struct {
	db *sql.DB
}

// OpenPromptStore opens (or, if createSchema, creates) the prompt store at
// dsn. Pass "file:prompts.db?mode=ro" for read-only runtime use and a plain
// path for cmd/prompts' administrative access.
func OpenPromptStore(dsn string, createSchema bool) (*PromptStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open prompt store: %w", err)
	}

	store := &PromptStore{db: db}
	if createSchema {
		if err := store.ensureSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return store, nil
}

func (s *PromptStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE IF NOT EXISTS prompt_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id INTEGER NOT NULL REFERENCES prompts(id),
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(prompt_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_versions_prompt_id ON prompt_versions(prompt_id);
		CREATE INDEX IF NOT EXISTS idx_versions_enabled ON prompt_versions(enabled);
	`)
	return err
}

// Get resolves key to the content of its latest enabled version. promptContext
// is accepted for interface compatibility with PromptRegistry but is
// not otherwise interpolated here; callers needing templated prompts render
// before storing, matching the registry's "content is opaque text" contract.
func (s *PromptStore) Get(ctx context.Context, key string, _ map[string]any) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pv.content
		FROM prompt_versions pv
		JOIN prompts p ON p.id = pv.prompt_id
		WHERE p.name = ? AND pv.enabled = 1
		ORDER BY pv.version DESC
		LIMIT 1
	`, key)

	var content string
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no enabled version found for prompt %q", key)
		}
		return "", fmt.Errorf("query prompt %q: %w", key, err)
	}
	return content, nil
}

// GetVersion resolves a specific prompt version, bypassing the
// latest-enabled lookup. Used only by cmd/prompts, never by the runtime.
func (s *PromptStore) GetVersion(ctx context.Context, key string, version int) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pv.content
		FROM prompt_versions pv
		JOIN prompts p ON p.id = pv.prompt_id
		WHERE p.name = ? AND pv.version = ?
	`, key, version)

	var content string
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query prompt %q version %d: %w", key, version, err)
	}
	return content, true, nil
}

// CreatePrompt inserts a new prompt record, or no-ops if name already exists.
func (s *PromptStore) CreatePrompt(ctx context.Context, name, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (name, description) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, description)
	return err
}

// AddVersion inserts a new version for an existing prompt.
func (s *PromptStore) AddVersion(ctx context.Context, name string, version int, content string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, content, enabled)
		SELECT id, ?, ?, ? FROM prompts WHERE name = ?
	`, version, content, enabled, name)
	return err
}

// ListPrompts returns every distinct prompt name.
func (s *PromptStore) ListPrompts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM prompts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database handle.
func (s *PromptStore) Close() error { return s.db.Close() }

var _ PromptRegistry = (*PromptStore)(nil)
