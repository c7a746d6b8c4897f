package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotride/internal/models"
)

type storedUser struct {
	User      *models.Account `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Manager owns the client session. Establish and Clear are mutually
// exclusive; Restore runs once at startup before any route decision.
// A session is never half-present: if the user snapshot cannot be persisted
// after the token was, the token is rolled back and the session is treated
// as not established.
type Manager struct {
	store Store

	mu      sync.Mutex
	current *Session
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Establish(sess *Session) error {
	if sess == nil || sess.Token == "" || sess.User == nil {
		return fmt.Errorf("establish: incomplete session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(SlotToken, []byte(sess.Token)); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}

	userData, err := json.Marshal(storedUser{User: sess.User, ExpiresAt: sess.ExpiresAt})
	if err == nil {
		err = m.store.Set(SlotUser, userData)
	}
	if err != nil {
		// Roll the token back rather than leave a half-written session.
		_ = m.store.Delete(SlotToken)
		return fmt.Errorf("persisting user snapshot: %w", err)
	}

	m.current = sess
	return nil
}

// Restore loads the persisted session, if any. A slot pair with only one
// side present is treated as no session and cleaned up.
func (m *Manager) Restore() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, err := m.store.Get(SlotToken)
	if errors.Is(err, ErrSlotEmpty) {
		_ = m.store.Delete(SlotUser)
		m.current = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	userData, err := m.store.Get(SlotUser)
	if errors.Is(err, ErrSlotEmpty) {
		_ = m.store.Delete(SlotToken)
		m.current = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stored storedUser
	if err := json.Unmarshal(userData, &stored); err != nil {
		return nil, fmt.Errorf("decoding user snapshot: %w", err)
	}

	m.current = &Session{
		Token:     string(token),
		ExpiresAt: stored.ExpiresAt,
		User:      stored.User,
	}
	return m.current, nil
}

// Clear removes both slots. Both must be gone before it returns.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenErr := m.store.Delete(SlotToken)
	userErr := m.store.Delete(SlotUser)
	m.current = nil

	if tokenErr != nil {
		return tokenErr
	}
	return userErr
}

func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) IsAuthenticated() bool {
	return m.Current() != nil
}
