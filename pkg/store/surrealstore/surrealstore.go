// Package surrealstore stores revisions in SurrealDB tables.
package surrealstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store"
)

// Config holds the connection settings of a SurrealDB store.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	// Username and Password sign in as a root user when Username is set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NewConfig creates a Config with the local development defaults.
func NewConfig(namespace, database string) *Config {
	return &Config{
		Endpoint:  constants.DefaultSurrealEndpoint,
		Namespace: namespace,
		Database:  database,
		Username:  constants.DefaultSurrealUsername,
		Password:  constants.DefaultSurrealPassword,
	}
}

// Validate checks that the config can be used to open a store.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return constants.ErrNoEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	switch u.Scheme {
	case constants.WebsocketScheme, constants.WebsocketSecureScheme, constants.HTTPScheme, constants.HTTPSecureScheme:
	default:
		return fmt.Errorf("invalid endpoint %q: unsupported scheme %q", c.Endpoint, u.Scheme)
	}
	if c.Namespace == "" || c.Database == "" {
		return constants.ErrNoNamespaceOrDB
	}
	return nil
}

// Store is a store.Connection backed by a SurrealDB database.
type Store struct {
	db *surrealdb.DB
}

var _ store.Connection = (*Store)(nil)

// Open connects to the database described by cfg, selects its namespace and
// database, and signs in when a username is configured.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := surrealdb.FromEndpointURLString(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("sign in as %s: %w", cfg.Username, err)
		}
	}

	return New(db), nil
}

// New wraps a connected database. The caller keeps ownership of db.
func New(db *surrealdb.DB) *Store {
	return &Store{db: db}
}

// Collection returns the table name. Tables are created on first insert.
func (s *Store) Collection(name string) (store.Collection, error) {
	if name == "" {
		return nil, constants.ErrInvalidName
	}
	return &table{db: s.db, name: models.Table(name)}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *surrealdb.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

type table struct {
	db   *surrealdb.DB
	name models.Table
}

func (t *table) Insert(ctx context.Context, doc map[string]any) error {
	_, err := surrealdb.Insert[struct{}](ctx, t.db, t.name, doc)
	return err
}

// IdentityField is the record ID field SurrealDB reserves.
func (t *table) IdentityField() string {
	return constants.SurrealIdentityField
}

func (t *table) Datetime(tm time.Time) any {
	return &models.CustomDateTime{Time: tm}
}
