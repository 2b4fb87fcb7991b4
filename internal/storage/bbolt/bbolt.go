// Package bbolt provides a BBolt-backed storage.Store.
package bbolt

import (
	"context"
	"fmt"

	"github.com/hearthside/client-go/internal/storage"
	"go.etcd.io/bbolt"
)

// DefaultBucket is the bucket used when none is given.
const DefaultBucket = "hearthside"

// Store implements storage.Store backed by a single BBolt bucket.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ storage.Store = (*Store)(nil)

// New returns a Store backed by the given BBolt database. The bucket is
// created if it does not exist.
func New(db *bbolt.DB, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	s := &Store{db: db, bucket: []byte(bucket)}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket %q: %w", bucket, err)
	}
	return s, nil
}

// Open opens a BBolt database at the given path and returns a new Store.
func Open(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db, DefaultBucket)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
