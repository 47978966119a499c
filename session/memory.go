package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the credential set in process memory. It does not survive
// a restart and exists for tests and for embedders that persist elsewhere.
type MemoryStore struct {
	mu   sync.Mutex
	sess *Session

	saves  int
	clears int
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sess.Complete() {
		return nil, nil
	}
	return m.sess.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	if err := validateForSave(sess); err != nil {
		return err
	}
	c := sess.Clone()
	c.SavedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = c
	m.saves++
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	m.clears++
	return nil
}

// Counts returns how many times Save and Clear succeeded.
func (m *MemoryStore) Counts() (saves, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.clears
}
