package registry

import (
	"context"
	"database/sql"
	"fmt"
)

// Guardrail is one policy check belonging to a pipeline.
type Guardrail struct {
	Name        string
	Description string
	CheckPrompt string
	Enabled     bool
}

// GuardrailRegistry resolves a pipeline name to its enabled guardrails, used
// by a codegen-style agent's guard stage to build its policy checks.
type GuardrailRegistry interface {
	GuardrailsFor(ctx context.Context, pipelineName string) ([]Guardrail, error)
}

// GuardrailStore is the read-write administrative handle used by
// cmd/guardrails; it also implements the read-only GuardrailRegistry surface.
type GuardrailStore struct {
	db *sql.DB
}

// OpenGuardrailStore opens (or, if createSchema, creates) the guardrail
// store at dsn.
func OpenGuardrailStore(dsn string, createSchema bool) (*GuardrailStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open guardrail store: %w", err)
	}

	store := &GuardrailStore{db: db}
	if createSchema {
		if err := store.ensureSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return store, nil
}

func (s *GuardrailStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipelines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			allowed_scope TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE IF NOT EXISTS guardrails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id INTEGER NOT NULL REFERENCES pipelines(id),
			name TEXT NOT NULL,
			description TEXT,
			check_prompt TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	return err
}

// GuardrailsFor returns every enabled guardrail belonging to pipelineName, in
// insertion order. A guardrail with enabled = 0 is skipped, never returned.
func (s *GuardrailStore) GuardrailsFor(ctx context.Context, pipelineName string) ([]Guardrail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.name, g.description, g.check_prompt, g.enabled
		FROM guardrails g
		JOIN pipelines p ON p.id = g.pipeline_id
		WHERE p.name = ? AND g.enabled = 1
		ORDER BY g.id
	`, pipelineName)
	if err != nil {
		return nil, fmt.Errorf("query guardrails for pipeline %q: %w", pipelineName, err)
	}
	defer rows.Close()

	var result []Guardrail
	for rows.Next() {
		var g Guardrail
		var enabled int
		if err := rows.Scan(&g.Name, &g.Description, &g.CheckPrompt, &enabled); err != nil {
			return nil, err
		}
		g.Enabled = enabled != 0
		result = append(result, g)
	}
	return result, rows.Err()
}

// SeedCodeExecutionPipeline seeds the default codegen guard stage
// configuration: the code-execution pipeline and its three guardrails.
func (s *GuardrailStore) SeedCodeExecutionPipeline(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (name, description, allowed_scope)
		VALUES ('code-execution', 'Guardrails applied before generated code is executed', 'codegen')
		ON CONFLICT(name) DO NOTHING
	`)
	if err != nil {
		return err
	}

	guardrails := []struct {
		name, description, checkPrompt string
	}{
		{"no-offensive-content", "Blocks offensive or abusive language in the request", "Does the following request contain offensive, abusive, or hateful language? Answer only yes or no."},
		{"no-harmful-instructions", "Blocks requests asking for malicious or destructive code", "Does the following request ask for code that is malicious, destructive, or intended to cause harm? Answer only yes or no."},
		{"scope-compliance", "Blocks requests outside the code-generation pipeline's allowed scope", "Is the following request unrelated to generating, explaining, or executing code? Answer only yes or no."},
	}

	for _, g := range guardrails {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO guardrails (pipeline_id, name, description, check_prompt, enabled)
			SELECT id, ?, ?, ?, 1 FROM pipelines WHERE name = 'code-execution'
		`, g.name, g.description, g.checkPrompt)
		if err != nil {
			return fmt.Errorf("seed guardrail %q: %w", g.name, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *GuardrailStore) Close() error { return s.db.Close() }

var _ GuardrailRegistry = (*GuardrailStore)(nil)
