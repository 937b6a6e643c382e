package account

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type repoMem struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]Account
	byName map[string]uuid.UUID
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[uuid.UUID]Account), byName: make(map[string]uuid.UUID)}
}

func (r *repoMem) Create(ctx context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(a.Username)
	if _, taken := r.byName[key]; taken {
		return fmt.Errorf("account %s already exists: %w", a.Username, apperr.ErrConflict)
	}
	now := time.Now().UTC()
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = now, now
	r.items[a.ID] = *a
	r.byName[key] = a.ID
	id := a.ID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		delete(r.items, id)
		delete(r.byName, key)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, apperr.ErrNotFound)
	}
	return &a, nil
}

func (r *repoMem) GetByUsername(_ context.Context, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", username, apperr.ErrNotFound)
	}
	a := r.items[id]
	return &a, nil
}
