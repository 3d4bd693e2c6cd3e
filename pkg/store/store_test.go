package store_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealrevision/pkg/constants"
	"github.com/surrealdb/surrealrevision/pkg/store"
	"github.com/surrealdb/surrealrevision/pkg/store/memstore"
)

func TestRegistry(t *testing.T) {
	t.Run("ResolveRegistered", func(t *testing.T) {
		reg := store.NewRegistry()
		mem := memstore.New()
		reg.Register("primary", mem)

		conn, err := reg.Resolve("primary")
		require.NoError(t, err)
		assert.Same(t, mem, conn)
	})

	t.Run("ResolveUnknown", func(t *testing.T) {
		reg := store.NewRegistry()

		_, err := reg.Resolve("missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, constants.ErrConnectionNotFound))
		assert.Contains(t, err.Error(), `"missing"`)
	})

	t.Run("RegisterReplaces", func(t *testing.T) {
		reg := store.NewRegistry()
		first, second := memstore.New(), memstore.New()
		reg.Register("primary", first)
		reg.Register("primary", second)

		conn, err := reg.Resolve("primary")
		require.NoError(t, err)
		assert.Same(t, second, conn)
	})

	t.Run("ZeroValueIsUsable", func(t *testing.T) {
		var reg store.Registry
		reg.Register("primary", memstore.New())
		assert.Equal(t, []string{"primary"}, reg.Names())
	})

	t.Run("Names", func(t *testing.T) {
		reg := store.NewRegistry()
		reg.Register("b", memstore.New())
		reg.Register("a", memstore.New())
		assert.Equal(t, []string{"a", "b"}, reg.Names())
	})
}

func TestConnectionFunc(t *testing.T) {
	mem := memstore.New()
	conn := store.ConnectionFunc(func(name string) (store.Collection, error) {
		if name != "revision" {
			return nil, constants.ErrCollectionNotFound
		}
		return mem.Collection(name)
	})

	coll, err := conn.Collection("revision")
	require.NoError(t, err)
	assert.NotNil(t, coll)

	_, err = conn.Collection("other")
	assert.ErrorIs(t, err, constants.ErrCollectionNotFound)
}
