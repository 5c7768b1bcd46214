package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nodeupload/nodeupload-gw/credentials/migrations"
	"github.com/pressly/goose/v3"

	// database/sql drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverSQLite is the go-sqlite3 driver name.
	DriverSQLite = "sqlite3"
	// DriverPostgres is the pgx driver name.
	DriverPostgres = "pgx"

	tokensTable = "tokens"
)

type (
	// SQLStore keeps tokens in SQLite or PostgreSQL.
	SQLStore struct {
		db     *sql.DB
		driver string

		// path of the SQLite file that must exist, empty when not checked
		path string
	}

	openOptions struct {
		mustExist bool
	}

	// OpenOption configures Open.
	OpenOption func(o *openOptions)
)

// MustExist makes a SQLite store refuse to create its database file:
// Verify reports ErrAbsent when the file is missing.
func MustExist() OpenOption {
	return func(o *openOptions) { o.mustExist = true }
}

// Open opens the database with the given driver ("sqlite3", "pgx" or
// "postgres") without connecting to it.
func Open(driver, dsn string, opts ...OpenOption) (*SQLStore, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
	case DriverPostgres, "postgres", "postgresql":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var path string
	if driver == DriverSQLite && o.mustExist {
		if path = sqlitePath(dsn); path != "" {
			dsn = readWriteDSN(dsn)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := NewSQLStore(db, driver)
	s.path = path

	return s, nil
}

// sqlitePath returns the file behind a SQLite DSN, empty for in-memory
// databases.
func sqlitePath(dsn string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}

	return path
}

// readWriteDSN turns dsn into a URI filename opened with mode=rw, so
// go-sqlite3 never creates a missing file.
func readWriteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	_, query, found := strings.Cut(dsn, "?")
	switch {
	case !found:
		return dsn + "?mode=rw"
	case strings.Contains(query, "mode="):
		return dsn
	default:
		return dsn + "&mode=rw"
	}
}

// NewSQLStore wraps an opened database.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Verify checks the database is reachable and holds the tokens table.
func (s *SQLStore) Verify(ctx context.Context) error {
	if s.path != "" {
		if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAbsent, s.path)
		}
	}

	query := `SELECT count(*) FROM information_schema.tables WHERE table_name = ?`
	if s.driver == DriverSQLite {
		query = `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), tokensTable).Scan(&count); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if count == 0 {
		return ErrNotInitialized
	}

	return nil
}

// Migrate creates or upgrades the schema.
func (s *SQLStore) Migrate(ctx context.Context) error {
	dialect := "postgres"
	if s.driver == DriverSQLite {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	return goose.UpContext(ctx, s.db, ".")
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Token, error) {
	query := `SELECT id, email, secret_hash, enabled, created_at FROM tokens WHERE id = ?`
	return s.scanOne(s.db.QueryRowContext(ctx, s.rebind(query), id))
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*Token, error) {
	query := `SELECT id, email, secret_hash, enabled, created_at FROM tokens WHERE email = ?`
	return s.scanOne(s.db.QueryRowContext(ctx, s.rebind(query), email))
}

// Create stores a new token. Emails are unique.
func (s *SQLStore) Create(ctx context.Context, t *Token) error {
	if _, err := s.GetByEmail(ctx, t.Email); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tokens (id, email, secret_hash, enabled, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.rebind(query),
		t.ID, t.Email, t.SecretHash, t.Enabled, t.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// SetEnabled flips the enabled flag of the token.
func (s *SQLStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE tokens SET enabled = ? WHERE id = ?`), enabled, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns all tokens ordered by creation time.
func (s *SQLStore) List(ctx context.Context) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, secret_hash, enabled, created_at FROM tokens ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []Token
	for rows.Next() {
		var t Token
		if err = rows.Scan(&t.ID, &t.Email, &t.SecretHash, &t.Enabled, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, t)
	}

	return result, rows.Err()
}

func (s *SQLStore) scanOne(row *sql.Row) (*Token, error) {
	t := new(Token)
	if err := row.Scan(&t.ID, &t.Email, &t.SecretHash, &t.Enabled, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
