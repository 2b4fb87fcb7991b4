package redis

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthside/client-go/internal/storage"
	"github.com/hearthside/client-go/internal/storage/storagetest"
)

// Set HEARTHSIDE_TEST_REDIS=host:port to run against a live server.
func TestStore(t *testing.T) {
	addr := os.Getenv("HEARTHSIDE_TEST_REDIS")
	if addr == "" {
		t.Skip("HEARTHSIDE_TEST_REDIS not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Dial(context.Background(), addr, "", 0, WithPrefix("hearthside-test:"+t.Name()+":"))
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx := context.Background()
			for _, k := range []string{storage.KeyToken, storage.KeyRefreshToken, storage.KeyCurrentUser, storage.KeyAPIBaseURL} {
				_ = s.Delete(ctx, k)
			}
			s.Close()
		})
		return s
	})
}

func TestStore_KeyPrefix(t *testing.T) {
	s := New(nil, WithPrefix("app:"))
	if got := s.key("token"); got != "app:token" {
		t.Errorf("key = %q, want app:token", got)
	}
}
