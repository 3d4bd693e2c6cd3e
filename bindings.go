package surrealrevision

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Bindings maps record types to revision configs.
//
// A model without its own entry uses Default. Fields left empty in a model
// entry are taken from Default, and fields left empty in Default from
// [NewConfig].
//
// In YAML:
//
//	default:
//	  connection: surrealdb
//	models:
//	  User:
//	    collection: user_revision
//	    revisionUserField: editedBy
type Bindings struct {
	Default Config            `yaml:"default"`
	Models  map[string]Config `yaml:"models"`
}

func NewBindings() *Bindings {
	return &Bindings{
		Default: *NewConfig(),
		Models:  make(map[string]Config),
	}
}

// Bind sets the config used for model.
func (b *Bindings) Bind(model string, cfg Config) *Bindings {
	if b.Models == nil {
		b.Models = make(map[string]Config)
	}
	b.Models[model] = cfg
	return b
}

// ConfigFor resolves the effective config for model.
func (b *Bindings) ConfigFor(model string) Config {
	def := b.Default.inherit(*NewConfig())
	if cfg, ok := b.Models[model]; ok {
		return cfg.inherit(def)
	}
	return def
}

// Validate checks the default config and every model config after inheritance.
func (b *Bindings) Validate() error {
	def := b.ConfigFor("")
	if err := def.Validate(); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	for model := range b.Models {
		cfg := b.ConfigFor(model)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("model %s: %w", model, err)
		}
	}
	return nil
}

// LoadBindings decodes YAML bindings from r. Unknown keys are rejected.
// An empty document yields the default bindings.
func LoadBindings(r io.Reader) (*Bindings, error) {
	b := NewBindings()
	b.Default = Config{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(b); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}
	b.Default = b.Default.inherit(*NewConfig())

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadBindingsFile reads YAML bindings from the file at path.
func LoadBindingsFile(path string) (*Bindings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadBindings(f)
}
