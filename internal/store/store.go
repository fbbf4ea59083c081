// Package store persists agent records in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
)

const (
	driverName     = "sqlite"
	dirPermissions = 0o750
)

// Static errors.
var (
	// ErrAgentNotFound indicates no agent record exists for the given id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentNameEmpty indicates a record with no name was submitted.
	ErrAgentNameEmpty = errors.New("agent name cannot be empty")
)

// Store is a SQLite-backed implementation of core.AgentStore.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at the given path, enabling WAL mode
// and foreign keys.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = database.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: database, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			voice_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			settings TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name)`,
	}

	for _, migration := range migrations {
		_, err := s.db.Exec(migration)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// CreateAgent inserts a new agent record. A missing id is generated and the
// timestamps are set by the store.
func (s *Store) CreateAgent(ctx context.Context, agent *core.Agent) error {
	if agent.Name == "" {
		return ErrAgentNameEmpty
	}

	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	settings, err := json.Marshal(agent.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode agent settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, voice_id, description, system_prompt, settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID,
		agent.Name,
		agent.VoiceID,
		agent.Description,
		agent.SystemPrompt,
		string(settings),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent %s: %w", agent.ID, err)
	}

	return nil
}

// GetAgent returns the agent with the given id, or ErrAgentNotFound.
func (s *Store) GetAgent(ctx context.Context, id string) (*core.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, voice_id, description, system_prompt, settings, created_at, updated_at
		 FROM agents WHERE id = ?`, id)

	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}

		return nil, fmt.Errorf("failed to read agent %s: %w", id, err)
	}

	return agent, nil
}

// ListAgents returns all agent records ordered by creation time.
func (s *Store) ListAgents(ctx context.Context) ([]core.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, voice_id, description, system_prompt, settings, created_at, updated_at
		 FROM agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	agents := make([]core.Agent, 0)

	for rows.Next() {
		agent, scanErr := scanAgent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", scanErr)
		}

		agents = append(agents, *agent)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed while iterating agents: %w", err)
	}

	return agents, nil
}

// UpdateAgent rewrites an existing agent record, bumping its update time.
func (s *Store) UpdateAgent(ctx context.Context, agent *core.Agent) error {
	if agent.Name == "" {
		return ErrAgentNameEmpty
	}

	agent.UpdatedAt = time.Now().UTC()

	settings, err := json.Marshal(agent.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode agent settings: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE agents
		 SET name = ?, voice_id = ?, description = ?, system_prompt = ?, settings = ?, updated_at = ?
		 WHERE id = ?`,
		agent.Name,
		agent.VoiceID,
		agent.Description,
		agent.SystemPrompt,
		string(settings),
		formatTime(agent.UpdatedAt),
		agent.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent %s: %w", agent.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agent.ID)
	}

	return nil
}

// DeleteAgent removes an agent record, or returns ErrAgentNotFound.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*core.Agent, error) {
	var (
		agent     core.Agent
		settings  string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.VoiceID,
		&agent.Description,
		&agent.SystemPrompt,
		&settings,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal([]byte(settings), &agent.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to decode agent settings: %w", err)
	}

	agent.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	agent.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &agent, nil
}

// Timestamps are stored as RFC 3339 text so they stay readable in the file
// and scan portably across drivers.
func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", value, err)
	}

	return parsed, nil
}
