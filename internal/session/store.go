package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/jneless/bkp-drive/internal/constants"
)

// Store is a small string key-value store.
type Store interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Delete(keys ...string) error
	Close() error
}

// MemoryStore keeps values in memory only.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// BoltStore keeps values in one bucket of a bbolt file.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

// OpenBoltStore opens (creating if needed) the bbolt file at path and
// ensures bucket exists.
func OpenBoltStore(path, bucket string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: constants.StoreOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists([]byte(bucket))
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init state store %s: %w", path, err)
	}
	return &BoltStore{db: db, bucket: []byte(bucket)}, nil
}

func (b *BoltStore) Get(key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			val, found = string(v), true
		}
		return nil
	})
	return val, found, err
}

func (b *BoltStore) Put(key, value string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), []byte(value))
	})
}

func (b *BoltStore) Delete(keys ...string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		for _, k := range keys {
			if err := bk.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Stores pairs the session-scoped store with the persistent one.
type Stores struct {
	// Session lives as long as the shell session that created it.
	Session Store
	// Persistent survives across sessions ("remember me").
	Persistent Store
}

// Close closes both stores.
func (s Stores) Close() error {
	var first error
	for _, st := range []Store{s.Session, s.Persistent} {
		if st == nil {
			continue
		}
		if err := st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemoryStores returns two independent in-memory stores.
func MemoryStores() Stores {
	return Stores{Session: NewMemoryStore(), Persistent: NewMemoryStore()}
}

// persistentBucket holds remembered logins.
const persistentBucket = "persistent"

// SessionID identifies the shell session: BKP_DRIVE_SESSION when set,
// otherwise the parent process id, so each terminal gets its own scope.
func SessionID() string {
	if id := os.Getenv("BKP_DRIVE_SESSION"); id != "" {
		return id
	}
	return fmt.Sprintf("ppid-%d", os.Getppid())
}

// OpenStores opens the bbolt-backed stores under dir. Each session id gets
// its own bucket in the session file.
func OpenStores(dir, sessionID string) (Stores, error) {
	persistent, err := OpenBoltStore(filepath.Join(dir, constants.PersistentStoreFile), persistentBucket)
	if err != nil {
		return Stores{}, err
	}
	sess, err := OpenBoltStore(filepath.Join(dir, constants.SessionStoreFile), "session:"+sessionID)
	if err != nil {
		persistent.Close()
		return Stores{}, err
	}
	return Stores{Session: sess, Persistent: persistent}, nil
}
