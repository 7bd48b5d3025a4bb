package runtime

import (
	"sync"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// MemStore is an in-memory committed store. It backs tests and zero-setup
// deployments; durable deployments use the SQLite store instead.
type MemStore struct {
	mu      sync.RWMutex
	records map[ledger.Address][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[ledger.Address][]byte)}
}

// Get returns the record bytes at addr.
func (m *MemStore) Get(addr ledger.Address) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[addr]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// ApplyBatch commits creates and updates atomically under one lock.
// Conflicts are checked before any write so a failed batch changes
// nothing.
func (m *MemStore) ApplyBatch(creates, updates map[ledger.Address][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for addr := range creates {
		if _, ok := m.records[addr]; ok {
			return ledger.ErrRecordExists
		}
	}
	for addr := range updates {
		if _, ok := m.records[addr]; !ok {
			return ledger.ErrRecordNotFound
		}
	}

	for addr, data := range creates {
		m.records[addr] = append([]byte(nil), data...)
	}
	for addr, data := range updates {
		m.records[addr] = append([]byte(nil), data...)
	}
	return nil
}

// Len returns the number of stored records.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
