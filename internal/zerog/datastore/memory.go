package datastore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

// MemoryStore is an in-process Store, used by tests and the development
// config. All data is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	locks map[string]memoryLock
}

type memoryItem struct {
	value []byte
	cas   uint64
}

type memoryLock struct {
	token   string
	expires time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		locks: make(map[string]memoryLock),
	}
}

func (m *MemoryStore) Create(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; exists {
		return zgerrors.Wrap(zgerrors.KindExists, "key exists: "+key, nil)
	}
	m.items[key] = memoryItem{value: append([]byte(nil), value...), cas: 1}
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (m *MemoryStore) ReadWithCAS(ctx context.Context, key string) ([]byte, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, 0, false, nil
	}
	return append([]byte(nil), item.value...), item.cas, true, nil
}

func (m *MemoryStore) SetWithCAS(ctx context.Context, key string, value []byte, cas uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, held := m.locks[key]; held && time.Now().Before(lock.expires) {
		return 0, zgerrors.Wrap(zgerrors.KindLocked, "key locked: "+key, nil)
	}

	item, exists := m.items[key]
	if !exists {
		if cas != 0 {
			return 0, zgerrors.Wrap(zgerrors.KindCASMismatch, "key missing, nonzero cas: "+key, nil)
		}
		m.items[key] = memoryItem{value: append([]byte(nil), value...), cas: 1}
		return 1, nil
	}

	if item.cas != cas {
		return 0, zgerrors.Wrap(zgerrors.KindCASMismatch, "cas mismatch for key: "+key, nil)
	}

	newCas := item.cas + 1
	m.items[key] = memoryItem{value: append([]byte(nil), value...), cas: newCas}
	return newCas, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	delete(m.locks, key)
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, key string, ttl int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, held := m.locks[key]; held && time.Now().Before(lock.expires) {
		return "", zgerrors.Wrap(zgerrors.KindLocked, "key already locked: "+key, nil)
	}

	token := randomToken()
	m.locks[key] = memoryLock{token: token, expires: time.Now().Add(time.Duration(ttl) * time.Second)}
	return token, nil
}

func (m *MemoryStore) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, held := m.locks[key]
	if !held || lock.token != token {
		return zgerrors.Wrap(zgerrors.KindLocked, "unlock token mismatch for key: "+key, nil)
	}
	delete(m.locks, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
