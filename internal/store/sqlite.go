// ABOUTME: SQLite implementation of lantern persistence using modernc.org/sqlite
// ABOUTME: Provides tenant/user/conversation storage with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements lantern persistence using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// NewMemoryStore creates an in-memory SQLite store, used by tests and the
// local development server.
func NewMemoryStore() (*SQLiteStore, error) {
	return NewSQLiteStore(":memory:")
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			domain     TEXT NOT NULL UNIQUE,
			plan       TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (plan IN ('free', 'pro', 'enterprise'))
		);

		CREATE INDEX IF NOT EXISTS idx_tenants_domain ON tenants(domain);

		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			role       TEXT NOT NULL,
			tenant_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (role IN ('admin', 'user')),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		);

		CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			agent_id   TEXT,
			queue_id   TEXT,
			subject    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_tenant ON conversations(tenant_id);

		CREATE TABLE IF NOT EXISTS conversation_transfers (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			from_type       TEXT,
			from_id         TEXT,
			to_type         TEXT NOT NULL,
			to_id           TEXT NOT NULL,
			note            TEXT NOT NULL DEFAULT '',
			tenant_id       TEXT NOT NULL DEFAULT '',
			actor           TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,

			CHECK (to_type IN ('agent', 'queue')),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_transfers_conversation
			ON conversation_transfers(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS otp_codes (
			email      TEXT PRIMARY KEY,
			code_hash  BLOB NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// CreateTenant inserts a new tenant. Returns ErrConflict if the ID or domain
// is already taken.
func (s *SQLiteStore) CreateTenant(ctx context.Context, t *Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, domain, plan, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Domain, t.Plan, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

// GetTenant returns the tenant with the given ID
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, plan, created_at FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

// GetTenantByDomain returns the tenant owning the given subdomain label
func (s *SQLiteStore) GetTenantByDomain(ctx context.Context, domain string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, plan, created_at FROM tenants WHERE domain = ?`, domain)
	return scanTenant(row)
}

// ListTenants returns all tenants ordered by creation time
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, domain, plan, created_at FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// CreateUser inserts a new user. Returns ErrConflict on duplicate ID or email.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, role, tenant_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Role, u.TenantID, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given ID
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, role, tenant_id, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, role, tenant_id, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*Tenant, error) {
	var t Tenant
	var createdAt string
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func scanUser(row scanner) (*User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.TenantID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
// Timestamps are always written by this package so failures indicate corruption.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// isUniqueViolation reports whether err is a SQLite unique constraint error
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
