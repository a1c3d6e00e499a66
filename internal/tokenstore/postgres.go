package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultPostgresTable = "claude_tokens"

// PostgresConfig captures configuration required to initialize a Postgres-backed store.
type PostgresConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresStore persists records as JSONB rows keyed by record id.
type PostgresStore struct {
	db  *sql.DB
	cfg PostgresConfig
}

// NewPostgresStore connects to PostgreSQL and creates the table when missing.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = defaultPostgresTable
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}
	store := &PostgresStore{db: db, cfg: cfg}
	if err = store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the table (and schema when provided).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.tableName())); err != nil {
		return fmt.Errorf("postgres store: create token table: %w", err)
	}
	return nil
}

// Save upserts rec under id and returns a postgres:// locator for logs.
func (s *PostgresStore) Save(ctx context.Context, id string, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("postgres store: record is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("postgres store: id is empty")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("postgres store: marshal record: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
	`, s.tableName())
	if _, err = s.db.ExecContext(ctx, query, id, json.RawMessage(raw)); err != nil {
		return "", fmt.Errorf("postgres store: upsert record: %w", err)
	}
	return fmt.Sprintf("postgres://%s/%s", s.cfg.Table, id), nil
}

// Load reads the record stored under id.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf("SELECT content FROM %s WHERE id = $1", s.tableName())
	var content []byte
	if err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: query record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("postgres store: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record under id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName())
	if _, err := s.db.ExecContext(ctx, query, strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("postgres store: delete record: %w", err)
	}
	return nil
}

func (s *PostgresStore) tableName() string {
	return fullTableName(s.cfg.Schema, s.cfg.Table)
}

func fullTableName(schema, name string) string {
	if strings.TrimSpace(schema) == "" {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
