package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/client-go/internal/storage"
	"github.com/hearthside/client-go/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(filepath.Join(t.TempDir(), "state.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, storage.KeyAPIBaseURL, "https://api.example.com/api"))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, storage.KeyAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", v)
}
