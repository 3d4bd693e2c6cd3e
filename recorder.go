package surrealrevision

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store"
)

type Option func(*Recorder)

// WithClock replaces the wall clock used for the revision date.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Recorder writes the pre-update state of records into a history collection.
//
// A Recorder holds only its config, so a single value can serve any number
// of concurrent updates. It never reads, updates or deletes revisions.
type Recorder struct {
	cfg Config
	now func() time.Time
}

// NewRecorder creates a Recorder. A nil cfg means [NewConfig].
// Empty fields in cfg fall back to the defaults.
func NewRecorder(cfg *Config, opts ...Option) (*Recorder, error) {
	c := *NewConfig()
	if cfg != nil {
		c = cfg.inherit(c)
	}
	if err := c.Validate(); err != nil {
		return nil, &ConfigurationError{Connection: c.Connection, Collection: c.Collection, Err: err}
	}

	r := &Recorder{cfg: c, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the effective config of the recorder.
func (r *Recorder) Config() Config {
	return r.cfg
}

// CaptureRevision appends one revision of ev to coll.
//
// The revision is a copy of ev.Previous without the collection's reserved
// identity field, plus the owner ID, owner model, revision date and revision
// user fields. The insert is attempted exactly once.
func (r *Recorder) CaptureRevision(ctx context.Context, coll store.Collection, ev UpdateEvent) error {
	if coll == nil {
		return &ConfigurationError{
			Model:      ev.Model,
			Connection: r.cfg.Connection,
			Collection: r.cfg.Collection,
			Err:        constants.ErrNoCollection,
		}
	}

	identityField := coll.IdentityField()
	if err := r.checkIdentityField(identityField); err != nil {
		return &ConfigurationError{
			Model:      ev.Model,
			Connection: r.cfg.Connection,
			Collection: r.cfg.Collection,
			Err:        err,
		}
	}

	captured := RevisionTime(r.now())
	doc := r.BuildRevision(ev, identityField, coll.Datetime(captured))

	if err := coll.Insert(ctx, doc); err != nil {
		return &StoreWriteError{Model: ev.Model, Collection: r.cfg.Collection, Err: err}
	}
	return nil
}

// checkIdentityField rejects configs that would write an enrichment field
// into the identity slot the store assigns itself.
func (r *Recorder) checkIdentityField(identityField string) error {
	if identityField == "" {
		return nil
	}
	for option, name := range map[string]string{
		"ownerIdField":      r.cfg.OwnerIDField,
		"ownerModelField":   r.cfg.OwnerModelField,
		"revisionDateField": r.cfg.RevisionDateField,
		"revisionUserField": r.cfg.RevisionUserField,
	} {
		if name == identityField {
			return fmt.Errorf("%w: %s is %q", constants.ErrReservedField, option, name)
		}
	}
	return nil
}

// BuildRevision assembles the revision document for ev without writing it.
// identityField is removed from the snapshot when non-empty, and
// revisionDate is stored as given.
func (r *Recorder) BuildRevision(ev UpdateEvent, identityField string, revisionDate any) map[string]any {
	doc := make(map[string]any, len(ev.Previous)+4)
	for k, v := range ev.Previous {
		doc[k] = v
	}
	if identityField != "" {
		delete(doc, identityField)
	}

	doc[r.cfg.OwnerIDField] = ev.OwnerID
	doc[r.cfg.OwnerModelField] = ev.Model
	doc[r.cfg.RevisionDateField] = revisionDate
	doc[r.cfg.RevisionUserField] = ev.User
	return doc
}

// RevisionTime converts t to the precision revisions are stored with:
// UTC, truncated to whole milliseconds.
func RevisionTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
