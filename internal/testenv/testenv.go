// Package testenv connects integration tests to live databases.
//
// Tests that use it are skipped unless the matching environment variable
// points at a running server:
//
//	SURREALDB_URL=ws://localhost:8000 go test ./...
//	REVISION_POSTGRES_DSN=postgres://postgres@localhost/revisions?sslmode=disable go test ./...
package testenv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealrevision/pkg/store/sqlstore"
	"github.com/surrealdb/surrealrevision/pkg/store/surrealstore"
)

const (
	// EnvWSURL is the environment variable that specifies the SurrealDB URL.
	EnvWSURL = "SURREALDB_URL"

	// EnvPostgresDSN is the environment variable that specifies the
	// PostgreSQL data source name.
	EnvPostgresDSN = "REVISION_POSTGRES_DSN"

	// EnvNamespace overrides the SurrealDB namespace used by tests.
	EnvNamespace = "SURREALDB_NAMESPACE"
)

func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetSurrealDBWSURL returns the configured SurrealDB URL with a ws scheme.
func GetSurrealDBWSURL() string {
	return strings.Replace(os.Getenv(EnvWSURL), "http", "ws", 1)
}

// SurrealDB opens a store on the database named database and removes the
// given tables so the test starts empty. The store is closed on cleanup.
func SurrealDB(t testing.TB, database string, tables ...string) *surrealstore.Store {
	t.Helper()

	if os.Getenv(EnvWSURL) == "" {
		t.Skipf("%s is not set", EnvWSURL)
	}

	cfg := surrealstore.NewConfig(GetEnvOrDefault(EnvNamespace, "revisions"), database)
	cfg.Endpoint = GetSurrealDBWSURL()

	ctx := context.Background()
	s, err := surrealstore.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to SurrealDB: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	if err := removeTables(ctx, s.DB(), tables...); err != nil {
		t.Fatal(err)
	}
	return s
}

func removeTables(ctx context.Context, db *surrealdb.DB, tables ...string) error {
	for _, table := range tables {
		// Table names cannot be bound as parameters in REMOVE TABLE.
		if _, err := surrealdb.Query[[]any](ctx, db, "REMOVE TABLE IF EXISTS "+table, nil); err != nil {
			return fmt.Errorf("failed to remove table %s: %w", table, err)
		}
	}
	return nil
}

// Postgres opens a store on the configured PostgreSQL database and drops the
// given tables so the test starts empty.
func Postgres(t testing.TB, tables ...string) *sqlstore.Store {
	t.Helper()

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s is not set", EnvPostgresDSN)
	}

	s, err := sqlstore.Open(string(sqlstore.Postgres), dsn)
	if err != nil {
		t.Fatalf("failed to open PostgreSQL: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	for _, table := range tables {
		if _, err := s.DB().ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table); err != nil {
			t.Fatalf("failed to drop table %s: %v", table, err)
		}
	}
	return s
}
