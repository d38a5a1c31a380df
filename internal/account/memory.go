package account

import (
	"context"
	"sync"
)

// MemoryRepo 内存账号存储：开发/测试用，无持久化。
type MemoryRepo struct {
	mu       sync.RWMutex
	byID     map[string]Account
	byEmail  map[string]string // email -> id
	grants   map[string]AdminGrant
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
		grants:  make(map[string]AdminGrant),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = *a
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	a := r.byID[id]
	return &a, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *MemoryRepo) CreateAdminGrant(ctx context.Context, g *AdminGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[g.AccountID] = *g
	return nil
}

func (r *MemoryRepo) FindAdminGrant(ctx context.Context, accountID string) (*AdminGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}
