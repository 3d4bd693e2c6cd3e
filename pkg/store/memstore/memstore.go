// Package memstore is an in-process, append-only revision store.
//
// It is meant for tests and for hosts that want to inspect captured revisions
// without a database. Entries are never updated or removed.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store"
)

// DefaultIdentityField is the field memstore assigns entry identities to.
const DefaultIdentityField = "id"

type Option func(*Store)

// WithIdentityField changes the reserved identity field.
// An empty name disables identity assignment.
func WithIdentityField(name string) Option {
	return func(s *Store) {
		s.identityField = name
	}
}

// Store holds collections of documents in memory.
// It is safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	identityField string
	collections   map[string][]map[string]any
	seq           uint64
	failErr       error
}

var _ store.Connection = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		identityField: DefaultIdentityField,
		collections:   make(map[string][]map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Collection(name string) (store.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", constants.ErrInvalidName)
	}
	return &collection{store: s, name: name}, nil
}

// FailWith makes every following insert return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Documents returns copies of the entries appended to the named collection,
// in insertion order.
func (s *Store) Documents(name string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[name]
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = copyDoc(doc)
	}
	return out
}

// Len returns the number of entries in the named collection.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[name])
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Insert(ctx context.Context, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}

	entry := copyDoc(doc)
	s.seq++
	if s.identityField != "" {
		entry[s.identityField] = fmt.Sprintf("%s:%d", c.name, s.seq)
	}
	s.collections[c.name] = append(s.collections[c.name], entry)
	return nil
}

func (c *collection) IdentityField() string {
	return c.store.identityField
}

func (c *collection) Datetime(t time.Time) any {
	return t.UTC()
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
