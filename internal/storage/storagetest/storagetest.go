// Package storagetest provides a conformance suite shared by the storage
// backends' tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/client-go/internal/storage"
)

// Run exercises the storage.Store contract against the store returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, storage.KeyToken)
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

		v, err := storage.GetOptional(ctx, s, storage.KeyToken)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, storage.KeyToken, "abc"))
		v, err := s.Get(ctx, storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, storage.KeyAPIBaseURL, "http://a"))
		require.NoError(t, s.Set(ctx, storage.KeyAPIBaseURL, "http://b"))
		v, err := s.Get(ctx, storage.KeyAPIBaseURL)
		require.NoError(t, err)
		assert.Equal(t, "http://b", v)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, storage.KeyRefreshToken, "r1"))
		require.NoError(t, s.Delete(ctx, storage.KeyRefreshToken))
		_, err := s.Get(ctx, storage.KeyRefreshToken)
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("delete missing key", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.Delete(ctx, "never-set"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, storage.KeyToken, "t"))
		require.NoError(t, s.Set(ctx, storage.KeyCurrentUser, `{"id":"u1"}`))
		v, err := s.Get(ctx, storage.KeyCurrentUser)
		require.NoError(t, err)
		assert.Equal(t, `{"id":"u1"}`, v)
		v, err = s.Get(ctx, storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "t", v)
	})
}
