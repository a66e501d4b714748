package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

const createTable = `CREATE TABLE IF NOT EXISTS credentials (
	cred_key   TEXT PRIMARY KEY,
	cred_value TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`

const (
	selectQuery = `SELECT cred_value FROM credentials WHERE cred_key = ?`
	upsertQuery = `INSERT INTO credentials (cred_key, cred_value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (cred_key) DO UPDATE SET cred_value = excluded.cred_value, updated_at = excluded.updated_at`
	deleteQuery = `DELETE FROM credentials WHERE cred_key = ?`
)

// SQL is a Store backed by a single "credentials" table.
type SQL struct {
	sqlDB  *sql.DB
	driver string
}

// OpenSQLite opens (creating if needed) a SQLite store at path.
func OpenSQLite(path string) (*SQL, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return openSQL(driverSQLite, dsn)
}

// OpenPostgres opens a Postgres store. dsn is anything lib/pq accepts.
func OpenPostgres(dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	return openSQL(driverPostgres, dsn)
}

func openSQL(driver, dsn string) (*SQL, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == driverSQLite {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	if _, err := sqlDB.Exec(createTable); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &SQL{sqlDB: sqlDB, driver: driver}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var value string
	err := s.sqlDB.QueryRowContext(ctx, s.rebind(selectQuery), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", key, err)
	}
	return value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("credential key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, s.rebind(upsertQuery), key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set credential %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, s.rebind(deleteQuery), key); err != nil {
		return fmt.Errorf("delete credential %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// rebind turns ? placeholders into $1, $2... for Postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*SQL)(nil)
