package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage slots. One token slot, one user slot; the store is not
// multi-account.
const (
	SlotToken = "auth_token"
	SlotUser  = "user_data"
)

var ErrSlotEmpty = errors.New("slot empty")

// Store is a scoped secure store with named slots. Platform builds back this
// with keychain-grade storage; FileStore is the fallback and carries weaker
// guarantees (file permissions only).
type Store interface {
	Get(slot string) ([]byte, error)
	Set(slot string, value []byte) error
	Delete(slot string) error
}

// FileStore keeps each slot as a 0600 file under a private directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(slot string) ([]byte, error) {
	data, err := os.ReadFile(s.path(slot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %q: %w", slot, err)
	}
	return data, nil
}

func (s *FileStore) Set(slot string, value []byte) error {
	if err := os.WriteFile(s.path(slot), value, 0o600); err != nil {
		return fmt.Errorf("writing slot %q: %w", slot, err)
	}
	return nil
}

func (s *FileStore) Delete(slot string) error {
	err := os.Remove(s.path(slot))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting slot %q: %w", slot, err)
	}
	return nil
}

func (s *FileStore) path(slot string) string {
	return filepath.Join(s.dir, slot)
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte

	// FailSetSlot, when non-empty, makes Set fail for that slot.
	FailSetSlot string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (s *MemoryStore) Get(slot string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.slots[slot]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return v, nil
}

func (s *MemoryStore) Set(slot string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetSlot == slot {
		return fmt.Errorf("writing slot %q: store unavailable", slot)
	}
	s.slots[slot] = value
	return nil
}

func (s *MemoryStore) Delete(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
	return nil
}
