package otpAuth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryUserProvider is a process-local UserProvider. New users get
// DefaultRole.
type MemoryUserProvider struct {
	DefaultRole Role

	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryUserProvider returns an empty provider. An invalid defaultRole
// falls back to RoleBuyer.
func NewMemoryUserProvider(defaultRole Role) *MemoryUserProvider {
	if !defaultRole.Valid() {
		defaultRole = RoleBuyer
	}
	return &MemoryUserProvider{
		DefaultRole: defaultRole,
		byID:        make(map[string]User),
		byEmail:     make(map[string]string),
	}
}

func (p *MemoryUserProvider) FindOrCreateByEmail(_ context.Context, email string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byEmail[email]; ok {
		return p.byID[id], nil
	}

	u := User{ID: uuid.NewString(), Email: email, Role: p.DefaultRole}
	p.byID[u.ID] = u
	p.byEmail[email] = u.ID
	return u, nil
}

func (p *MemoryUserProvider) UserByID(_ context.Context, id string) (User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// SetRole changes a user's role. It returns ErrUserNotFound for unknown ids.
func (p *MemoryUserProvider) SetRole(id string, role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = role
	p.byID[id] = u
	return nil
}
