package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
)

// MemoryUsers is an in-process credential store with the same uniqueness
// rules as the Postgres one. Used with STORE_DRIVER=memory and in tests.
type MemoryUsers struct {
	mu      sync.RWMutex
	nextID  uint
	byID    map[uint]models.User
	byEmail map[string]uint
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:    make(map[uint]models.User),
		byEmail: make(map[string]uint),
	}
}

func (m *MemoryUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := m.byEmail[key]; exists {
		return ErrDuplicateEmail
	}

	m.nextID++
	now := time.Now().UTC()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.byID[user.ID] = *user
	m.byEmail[key] = user.ID
	return nil
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	user := m.byID[id]
	return &user, nil
}

func (m *MemoryUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// Delete removes a user; true if it existed.
func (m *MemoryUsers) Delete(_ context.Context, id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	delete(m.byEmail, strings.ToLower(user.Email))
	return true
}

// MemoryTokens is an in-process token ledger.
type MemoryTokens struct {
	mu      sync.Mutex
	entries map[string]uint
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{entries: make(map[string]uint)}
}

func (m *MemoryTokens) Store(_ context.Context, token string, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hashToken(token)] = userID
	return nil
}

func (m *MemoryTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := hashToken(token)
	userID, ok := m.entries[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.RefreshToken{UserID: userID, TokenHash: hash}, nil
}

func (m *MemoryTokens) Delete(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := hashToken(token)
	if _, ok := m.entries[hash]; !ok {
		return 0, nil
	}
	delete(m.entries, hash)
	return 1, nil
}

// Len reports the number of live sessions.
func (m *MemoryTokens) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
