package auth

import (
	"context"
	"sync"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

// In-memory реализации Accounts/Sessions для режима без БД.

type MemAccounts struct {
	mu      sync.RWMutex
	byName  map[string]*models.Account
	byToken map[string]*models.Account
	nextID  uint
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{
		byName:  make(map[string]*models.Account),
		byToken: make(map[string]*models.Account),
	}
}

func (m *MemAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[a.Username]; ok {
		return ErrAccountExists
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now().UTC()
	cp := *a
	m.byName[a.Username] = &cp
	m.byToken[a.AgentToken] = &cp
	return nil
}

func (m *MemAccounts) GetByID(_ context.Context, id uint) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byName {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrUnknownAccount
}

func (m *MemAccounts) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byName[username]
	if !ok {
		return nil, ErrUnknownAccount
	}
	cp := *a
	return &cp, nil
}

func (m *MemAccounts) GetByAgentToken(_ context.Context, token string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byToken[token]
	if !ok {
		return nil, ErrUnknownAccount
	}
	cp := *a
	return &cp, nil
}

// MemSessions — TTL-мапа с ленивым GC на каждом обращении.
type MemSessions struct {
	mu   sync.Mutex
	byTk map[string]models.Session
}

func NewMemSessions() *MemSessions {
	return &MemSessions{byTk: make(map[string]models.Session)}
}

func (m *MemSessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gcLocked()
	m.byTk[s.Token] = *s
	return nil
}

func (m *MemSessions) Get(_ context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gcLocked()
	s, ok := m.byTk[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	cp := s
	return &cp, nil
}

func (m *MemSessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTk, token)
	return nil
}

func (m *MemSessions) gcLocked() {
	now := time.Now().UTC()
	for tk, s := range m.byTk {
		if now.After(s.ExpiresAt) {
			delete(m.byTk, tk)
		}
	}
}
