package surrealrevision

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned when the connection or collection a
// revision should be written to cannot be resolved. Nothing is written.
type ConfigurationError struct {
	Model      string
	Connection string
	Collection string
	Err        error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("revision configuration")
	if e.Model != "" {
		fmt.Fprintf(&b, " for %s", e.Model)
	}
	if e.Connection != "" {
		fmt.Fprintf(&b, " (connection %q, collection %q)", e.Connection, e.Collection)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// StoreWriteError is returned when the store rejects the insert of a revision.
// A failed insert leaves no partial revision behind.
type StoreWriteError struct {
	Model      string
	Collection string
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write revision of %s to %q: %v", e.Model, e.Collection, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}
