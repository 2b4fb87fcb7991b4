// Package file provides a storage.Store kept in a single JSON document on
// disk. Values may be encrypted at rest with a passphrase.
package file

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hearthside/client-go/internal/storage"
)

const (
	formatVersion = 1
	saltSize      = 16
)

// ErrWrongPassphrase is returned when an encrypted value cannot be opened.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted store")

// KDFParams are the argon2id parameters used to derive the sealing key.
type KDFParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams returns the argon2id parameters used for new stores.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
	}
}

type document struct {
	Version   int               `json:"version"`
	Encrypted bool              `json:"encrypted"`
	Salt      string            `json:"salt,omitempty"`
	KDF       *KDFParams        `json:"kdf,omitempty"`
	Values    map[string]string `json:"values"`
}

// Store implements storage.Store in a JSON file with 0600 permissions.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
	aead cipher.AEAD
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*options)

type options struct {
	passphrase string
	kdf        KDFParams
}

// WithPassphrase encrypts values at rest with a key derived from passphrase.
func WithPassphrase(passphrase string) Option {
	return func(o *options) {
		o.passphrase = passphrase
	}
}

// WithKDFParams overrides the argon2id parameters for newly created stores.
func WithKDFParams(p KDFParams) Option {
	return func(o *options) {
		o.kdf = p
	}
}

// Open loads the store at path, creating it on first write.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{kdf: DefaultKDFParams()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		path: path,
		doc:  document{Version: formatVersion, Values: make(map[string]string)},
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if o.passphrase != "" {
			salt := make([]byte, saltSize)
			if _, err := rand.Read(salt); err != nil {
				return nil, fmt.Errorf("generate salt: %w", err)
			}
			kdf := o.kdf
			s.doc.Encrypted = true
			s.doc.Salt = base64.StdEncoding.EncodeToString(salt)
			s.doc.KDF = &kdf
		}
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	default:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("parse store: %w", err)
		}
		if s.doc.Values == nil {
			s.doc.Values = make(map[string]string)
		}
	}

	if s.doc.Encrypted {
		if o.passphrase == "" {
			return nil, fmt.Errorf("store %s is encrypted: passphrase required", path)
		}
		if err := s.initCipher(o.passphrase); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) initCipher(passphrase string) error {
	salt, err := base64.StdEncoding.DecodeString(s.doc.Salt)
	if err != nil || len(salt) != saltSize {
		return fmt.Errorf("invalid salt in store")
	}
	kdf := DefaultKDFParams()
	if s.doc.KDF != nil {
		kdf = *s.doc.KDF
	}
	key := argon2.IDKey([]byte(passphrase), salt, kdf.Time, kdf.MemoryKiB, kdf.Parallelism, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	s.aead = aead
	return nil
}

func (s *Store) seal(key, value string) (string, error) {
	if s.aead == nil {
		return value, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(key, stored string) (string, error) {
	if s.aead == nil {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", ErrWrongPassphrase
	}
	n := s.aead.NonceSize()
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(key))
	if err != nil {
		return "", ErrWrongPassphrase
	}
	return string(plain), nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.doc.Values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return s.open(key, stored)
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	prev, had := s.doc.Values[key]
	s.doc.Values[key] = sealed
	if err := s.flush(); err != nil {
		if had {
			s.doc.Values[key] = prev
		} else {
			delete(s.doc.Values, key)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Values[key]; !ok {
		return nil
	}
	delete(s.doc.Values, key)
	return s.flush()
}

// Close is a no-op; every write is flushed immediately.
func (s *Store) Close() error {
	return nil
}

// flush writes the document atomically: temp file then rename.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err) //coverage:ignore
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hearthside-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}
