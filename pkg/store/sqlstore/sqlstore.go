// Package sqlstore stores revisions in SQL tables, one JSON document per row.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the DDL and placeholder syntax of the database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func (d Dialect) createTable(name string) string {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == Postgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	return fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        %s,
        document TEXT NOT NULL
    );`, name, seq)
}

func (d Dialect) insert(name string) string {
	placeholder := "?"
	if d == Postgres {
		placeholder = "$1"
	}
	return fmt.Sprintf("INSERT INTO %s (document) VALUES (%s)", name, placeholder)
}

// Store is a store.Connection on a database/sql handle.
type Store struct {
	db      *sql.DB
	dialect Dialect
	owned   bool

	mu       sync.Mutex
	migrated map[string]bool
	closed   bool
}

var _ store.Connection = (*Store)(nil)

// New wraps db. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, migrated: make(map[string]bool)}
}

// Open opens a database with the sqlite (modernc.org/sqlite) or postgres
// (lib/pq) driver. The returned store closes the database on Close.
func Open(driver, dsn string) (*Store, error) {
	var dialect Dialect
	switch Dialect(driver) {
	case SQLite:
		dialect = SQLite
	case Postgres:
		dialect = Postgres
	default:
		return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedDSN, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	s := New(db, dialect)
	s.owned = true
	return s, nil
}

// Collection returns the table name, creating it when it does not exist.
func (s *Store) Collection(name string) (store.Collection, error) {
	return s.CollectionContext(context.Background(), name)
}

// CollectionContext is like Collection but runs the table creation with ctx.
func (s *Store) CollectionContext(ctx context.Context, name string) (store.Collection, error) {
	if !identifier.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", constants.ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, constants.ErrStoreClosed
	}
	if !s.migrated[name] {
		if _, err := s.db.ExecContext(ctx, s.dialect.createTable(name)); err != nil {
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
		s.migrated[name] = true
	}

	return &table{store: s, name: name, query: s.dialect.insert(name)}, nil
}

// Close marks the store closed and closes the database if Open created it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type table struct {
	store *Store
	name  string
	query string
}

func (t *table) Insert(ctx context.Context, doc map[string]any) error {
	if t.store.isClosed() {
		return constants.ErrStoreClosed
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode revision: %w", err)
	}

	if _, err := t.store.db.ExecContext(ctx, t.query, string(data)); err != nil {
		return fmt.Errorf("insert into %s: %w", t.name, err)
	}
	return nil
}

// IdentityField is empty: rows are keyed by seq, outside the document.
func (t *table) IdentityField() string {
	return ""
}

func (t *table) Datetime(tm time.Time) any {
	return tm.UTC()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}
