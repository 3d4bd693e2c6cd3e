// Package store defines what the revision recorder needs from a history store:
// named connections that hand out append-only collections.
//
// Implementations live in the sub-packages:
//
//   - [github.com/surrealdb/surrealrevision/pkg/store/surrealstore] writes revisions into SurrealDB tables
//   - [github.com/surrealdb/surrealrevision/pkg/store/sqlstore] writes one JSON document per row via database/sql
//   - [github.com/surrealdb/surrealrevision/pkg/store/memstore] keeps revisions in memory
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/surrealdb/surrealrevision/pkg/constants"
)

// Collection is an append-only destination for revision documents.
type Collection interface {
	// Insert appends doc as a new, independent entry.
	// Implementations must not retain doc after returning.
	Insert(ctx context.Context, doc map[string]any) error

	// IdentityField is the field name the store reserves for the identity
	// it assigns to each entry. Empty means the store reserves none.
	IdentityField() string

	// Datetime converts t into the store's native timestamp value.
	Datetime(t time.Time) any
}

// Connection hands out collections by name.
type Connection interface {
	Collection(name string) (Collection, error)
}

// Registry binds connection names to connections.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Connection)}
}

// Register binds name to conn, replacing any previous binding.
func (r *Registry) Register(name string, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns == nil {
		r.conns = make(map[string]Connection)
	}
	r.conns[name] = conn
}

// Resolve returns the connection bound to name.
func (r *Registry) Resolve(name string) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[name]
	if !ok || conn == nil {
		return nil, fmt.Errorf("%w: %q", constants.ErrConnectionNotFound, name)
	}
	return conn, nil
}

// Names returns the registered connection names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectionFunc adapts a function to the Connection interface.
type ConnectionFunc func(name string) (Collection, error)

func (f ConnectionFunc) Collection(name string) (Collection, error) {
	return f(name)
}
