package hearthside

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.etcd.io/bbolt"

	"github.com/hearthside/client-go/internal/storage"
	boltstore "github.com/hearthside/client-go/internal/storage/bbolt"
	"github.com/hearthside/client-go/internal/storage/file"
	"github.com/hearthside/client-go/internal/storage/memory"
	redisstore "github.com/hearthside/client-go/internal/storage/redis"
)

// Store is where the client persists the session and the resolved base URL.
// Implementations must be safe for concurrent use and return an error
// matching ErrKeyNotFound from Get for missing keys.
type Store = storage.Store

// ErrKeyNotFound is returned by Store.Get for a missing key.
var ErrKeyNotFound = storage.ErrNotFound

// ErrWrongPassphrase is returned when an encrypted file store cannot be
// opened with the given passphrase.
var ErrWrongPassphrase = file.ErrWrongPassphrase

// NewMemoryStore returns a store that lives as long as the process.
func NewMemoryStore() Store {
	return memory.New()
}

// OpenBoltStore opens, or creates, a bbolt database file at path.
func OpenBoltStore(path string) (Store, error) {
	s, err := boltstore.Open(path, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenFileStore opens, or creates on first write, a JSON store at path.
// With a non-empty passphrase the values are encrypted at rest.
func OpenFileStore(path, passphrase string) (Store, error) {
	var opts []file.Option
	if passphrase != "" {
		opts = append(opts, file.WithPassphrase(passphrase))
	}
	s, err := file.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewRedisStore keeps values in Redis under prefix, so that several hosts
// can share sessions. An empty prefix uses "hearthside:". A zero ttl keeps
// values forever.
func NewRedisStore(client goredis.UniversalClient, prefix string, ttl time.Duration) Store {
	var opts []redisstore.Option
	if prefix != "" {
		opts = append(opts, redisstore.WithPrefix(prefix))
	}
	if ttl > 0 {
		opts = append(opts, redisstore.WithTTL(ttl))
	}
	return redisstore.New(client, opts...)
}

// DialRedisStore connects to a Redis server and returns a store on it.
func DialRedisStore(ctx context.Context, addr, password string, db int) (Store, error) {
	s, err := redisstore.Dial(ctx, addr, password, db)
	if err != nil {
		return nil, err
	}
	return s, nil
}
