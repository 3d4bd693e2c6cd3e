package surrealrevision

import "context"

// Operation is the kind of mutation a host pipeline reports.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// UpdateEvent describes a record update that has just been committed.
type UpdateEvent struct {
	// Model is the type name of the record, e.g. "User".
	Model string
	// OwnerID identifies the record. Composite keys can be passed as a
	// slice or a map.
	OwnerID any
	// Previous holds the field values the record had before the update.
	// It is read, never modified.
	Previous map[string]any
	// User identifies the acting user. Leave nil when no user is signed in
	// or the session is anonymous.
	User any
}

// Capturer is implemented by anything a host update pipeline can call once
// an update has been durably applied. It is never called for creates or deletes.
type Capturer interface {
	AfterUpdate(ctx context.Context, ev UpdateEvent) error
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context, ev UpdateEvent) error

func (f CapturerFunc) AfterUpdate(ctx context.Context, ev UpdateEvent) error {
	return f(ctx, ev)
}
