package surrealrevision_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealrevision"
	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store/memstore"
)

var fixedNow = time.Date(2024, 3, 14, 15, 9, 26, 535897932, time.FixedZone("JST", 9*60*60))

func fixedClock() time.Time { return fixedNow }

func newRecorder(t *testing.T, cfg *surrealrevision.Config) *surrealrevision.Recorder {
	t.Helper()
	rec, err := surrealrevision.NewRecorder(cfg, surrealrevision.WithClock(fixedClock))
	require.NoError(t, err)
	return rec
}

func TestCaptureRevision(t *testing.T) {
	ctx := context.Background()

	t.Run("SnapshotWithoutUser", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField("_id"))
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		err = newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  42,
			Previous: map[string]any{"name": "Alice", "age": 30},
		})
		require.NoError(t, err)

		docs := mem.Documents("revision")
		require.Len(t, docs, 1)
		delete(docs[0], "_id")
		assert.Equal(t, map[string]any{
			"name":         "Alice",
			"age":          30,
			"ownerId":      42,
			"ownerModel":   "User",
			"revisionDate": time.Date(2024, 3, 14, 6, 9, 26, 535000000, time.UTC),
			"revisionUser": nil,
		}, docs[0])
	})

	t.Run("StripsReservedIdentity", func(t *testing.T) {
		coll := &capturingCollection{identityField: "_id"}

		err := newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  42,
			Previous: map[string]any{"_id": 42, "name": "Bob"},
			User:     "admin",
		})
		require.NoError(t, err)

		require.Len(t, coll.docs, 1)
		assert.Equal(t, map[string]any{
			"name":         "Bob",
			"ownerId":      42,
			"ownerModel":   "User",
			"revisionDate": "2024-03-14T06:09:26.535Z",
			"revisionUser": "admin",
		}, coll.docs[0])
	})

	t.Run("EmptySnapshot", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField(""))
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		err = newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:   "User",
			OwnerID: 7,
		})
		require.NoError(t, err)

		docs := mem.Documents("revision")
		require.Len(t, docs, 1)
		assert.Len(t, docs[0], 4)
		for _, field := range []string{"ownerId", "ownerModel", "revisionDate", "revisionUser"} {
			assert.Contains(t, docs[0], field)
		}
	})

	t.Run("CustomFieldNames", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField(""))
		coll, err := mem.Collection("history")
		require.NoError(t, err)

		rec := newRecorder(t, &surrealrevision.Config{
			Collection:        "history",
			OwnerIDField:      "record",
			OwnerModelField:   "kind",
			RevisionDateField: "at",
			RevisionUserField: "by",
		})
		err = rec.CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "Invoice",
			OwnerID:  []any{"acme", 1001},
			Previous: map[string]any{"total": 12.5},
			User:     99,
		})
		require.NoError(t, err)

		docs := mem.Documents("history")
		require.Len(t, docs, 1)
		assert.Equal(t, map[string]any{
			"total":  12.5,
			"record": []any{"acme", 1001},
			"kind":   "Invoice",
			"at":     time.Date(2024, 3, 14, 6, 9, 26, 535000000, time.UTC),
			"by":     99,
		}, docs[0])
	})

	t.Run("DoesNotMutateInput", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField("_id"))
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		previous := map[string]any{"_id": 1, "name": "Carol"}
		err = newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  1,
			Previous: previous,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"_id": 1, "name": "Carol"}, previous)
	})

	t.Run("SequentialCallsAccumulate", func(t *testing.T) {
		mem := memstore.New()
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		rec := newRecorder(t, nil)
		for _, name := range []string{"v1", "v2"} {
			require.NoError(t, rec.CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
				Model:    "User",
				OwnerID:  42,
				Previous: map[string]any{"name": name},
			}))
		}

		docs := mem.Documents("revision")
		require.Len(t, docs, 2)
		assert.Equal(t, "v1", docs[0]["name"])
		assert.Equal(t, "v2", docs[1]["name"])
		assert.NotEqual(t, docs[0]["id"], docs[1]["id"])
	})

	t.Run("EnrichmentOverridesSnapshot", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField(""))
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		err = newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  42,
			Previous: map[string]any{"ownerModel": "stale"},
		})
		require.NoError(t, err)
		assert.Equal(t, "User", mem.Documents("revision")[0]["ownerModel"])
	})
}

func TestCaptureRevisionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("NilCollection", func(t *testing.T) {
		err := newRecorder(t, nil).CaptureRevision(ctx, nil, surrealrevision.UpdateEvent{Model: "User"})

		var cerr *surrealrevision.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "User", cerr.Model)
		assert.ErrorIs(t, err, constants.ErrNoCollection)
	})

	t.Run("EnrichmentFieldIsStoreIdentity", func(t *testing.T) {
		mem := memstore.New()
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		rec := newRecorder(t, &surrealrevision.Config{OwnerIDField: "id"})
		err = rec.CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  42,
			Previous: map[string]any{"name": "A"},
		})

		var cerr *surrealrevision.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "User", cerr.Model)
		assert.ErrorIs(t, err, constants.ErrReservedField)
		assert.ErrorContains(t, err, "ownerIdField")
		assert.Equal(t, 0, mem.Len("revision"))
	})

	t.Run("EnrichmentFieldAllowedWithoutStoreIdentity", func(t *testing.T) {
		mem := memstore.New(memstore.WithIdentityField(""))
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		rec := newRecorder(t, &surrealrevision.Config{RevisionUserField: "id"})
		require.NoError(t, rec.CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:   "User",
			OwnerID: 42,
			User:    "editor",
		}))

		docs := mem.Documents("revision")
		require.Len(t, docs, 1)
		assert.Equal(t, "editor", docs[0]["id"])
		assert.Equal(t, 42, docs[0]["ownerId"])
	})

	t.Run("InsertFails", func(t *testing.T) {
		mem := memstore.New()
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		boom := errors.New("store unreachable")
		mem.FailWith(boom)

		err = newRecorder(t, nil).CaptureRevision(ctx, coll, surrealrevision.UpdateEvent{
			Model:    "User",
			OwnerID:  42,
			Previous: map[string]any{"name": "Alice"},
		})

		var werr *surrealrevision.StoreWriteError
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, "User", werr.Model)
		assert.Equal(t, "revision", werr.Collection)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, mem.Len("revision"))
	})
}

func TestNewRecorder(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		rec, err := surrealrevision.NewRecorder(nil)
		require.NoError(t, err)
		assert.Equal(t, *surrealrevision.NewConfig(), rec.Config())
	})

	t.Run("PartialConfigInheritsDefaults", func(t *testing.T) {
		rec, err := surrealrevision.NewRecorder(&surrealrevision.Config{Collection: "user_revision"})
		require.NoError(t, err)

		cfg := rec.Config()
		assert.Equal(t, "user_revision", cfg.Collection)
		assert.Equal(t, "surrealdb", cfg.Connection)
		assert.Equal(t, "ownerId", cfg.OwnerIDField)
	})

	t.Run("DuplicateFields", func(t *testing.T) {
		_, err := surrealrevision.NewRecorder(&surrealrevision.Config{
			OwnerIDField:    "owner",
			OwnerModelField: "owner",
		})

		var cerr *surrealrevision.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.ErrorIs(t, err, constants.ErrDuplicateField)
	})
}

func TestRevisionTime(t *testing.T) {
	t.Run("TruncatesToMilliseconds", func(t *testing.T) {
		in := time.Date(2024, 1, 1, 0, 0, 0, 999999999, time.UTC)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 999000000, time.UTC), surrealrevision.RevisionTime(in))
	})

	t.Run("ConvertsToUTC", func(t *testing.T) {
		got := surrealrevision.RevisionTime(fixedNow)
		assert.Equal(t, time.UTC, got.Location())
		assert.True(t, got.Equal(fixedNow.Truncate(time.Millisecond)))
	})

	t.Run("WallClockWithinTolerance", func(t *testing.T) {
		mem := memstore.New()
		coll, err := mem.Collection("revision")
		require.NoError(t, err)

		rec, err := surrealrevision.NewRecorder(nil)
		require.NoError(t, err)

		before := time.Now()
		require.NoError(t, rec.CaptureRevision(context.Background(), coll, surrealrevision.UpdateEvent{Model: "User", OwnerID: 1}))

		got, ok := mem.Documents("revision")[0]["revisionDate"].(time.Time)
		require.True(t, ok)
		assert.Equal(t, time.UTC, got.Location())
		assert.WithinDuration(t, before, got, 2*time.Second)
	})
}

func TestBuildRevision(t *testing.T) {
	rec := newRecorder(t, nil)

	doc := rec.BuildRevision(surrealrevision.UpdateEvent{
		Model:    "User",
		OwnerID:  "user:42",
		Previous: map[string]any{"id": "user:42", "name": "Dave"},
		User:     "admin",
	}, "id", "2024-03-14T06:09:26.535Z")

	assert.Equal(t, map[string]any{
		"name":         "Dave",
		"ownerId":      "user:42",
		"ownerModel":   "User",
		"revisionDate": "2024-03-14T06:09:26.535Z",
		"revisionUser": "admin",
	}, doc)
}

// capturingCollection keeps inserted documents as they were handed over and
// renders datetimes as strings, like a store with a textual datetime type.
type capturingCollection struct {
	mu            sync.Mutex
	identityField string
	docs          []map[string]any
}

func (c *capturingCollection) Insert(_ context.Context, doc map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
	return nil
}

func (c *capturingCollection) IdentityField() string {
	return c.identityField
}

func (c *capturingCollection) Datetime(t time.Time) any {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}
