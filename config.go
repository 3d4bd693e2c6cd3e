package surrealrevision

import (
	"fmt"

	"github.com/surrealdb/surrealrevision/pkg/constants"
)

// Config holds the options of a single revision binding.
// Empty fields are filled from the binding's parent when resolved through
// [Bindings], and from [NewConfig] otherwise.
type Config struct {
	// Connection is the registry name of the store connection.
	Connection string `yaml:"connection"`
	// Collection is the collection (table) that receives revisions.
	Collection string `yaml:"collection"`

	// OwnerIDField receives the identity of the updated record.
	OwnerIDField string `yaml:"ownerIdField"`
	// OwnerModelField receives the type name of the updated record.
	OwnerModelField string `yaml:"ownerModelField"`
	// RevisionDateField receives the capture time.
	RevisionDateField string `yaml:"revisionDateField"`
	// RevisionUserField receives the acting user, or null.
	RevisionUserField string `yaml:"revisionUserField"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Connection:        constants.DefaultConnectionName,
		Collection:        constants.DefaultCollection,
		OwnerIDField:      constants.DefaultOwnerIDField,
		OwnerModelField:   constants.DefaultOwnerModelField,
		RevisionDateField: constants.DefaultRevisionDateField,
		RevisionUserField: constants.DefaultRevisionUserField,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	names := []struct {
		option string
		value  string
	}{
		{"connection", c.Connection},
		{"collection", c.Collection},
		{"ownerIdField", c.OwnerIDField},
		{"ownerModelField", c.OwnerModelField},
		{"revisionDateField", c.RevisionDateField},
		{"revisionUserField", c.RevisionUserField},
	}
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("%w: %s", constants.ErrEmptyFieldName, n.option)
		}
	}

	seen := make(map[string]string, 4)
	for _, n := range names[2:] {
		if prev, ok := seen[n.value]; ok {
			return fmt.Errorf("%w: %s and %s are both %q", constants.ErrDuplicateField, prev, n.option, n.value)
		}
		seen[n.value] = n.option
	}
	return nil
}

// inherit returns c with every empty field taken from parent.
func (c Config) inherit(parent Config) Config {
	if c.Connection == "" {
		c.Connection = parent.Connection
	}
	if c.Collection == "" {
		c.Collection = parent.Collection
	}
	if c.OwnerIDField == "" {
		c.OwnerIDField = parent.OwnerIDField
	}
	if c.OwnerModelField == "" {
		c.OwnerModelField = parent.OwnerModelField
	}
	if c.RevisionDateField == "" {
		c.RevisionDateField = parent.RevisionDateField
	}
	if c.RevisionUserField == "" {
		c.RevisionUserField = parent.RevisionUserField
	}
	return c
}
