package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type repoMem struct {
	mu      sync.RWMutex
	current *Settings
}

func NewRepoMem() Repository {
	return &repoMem{}
}

func (r *repoMem) Get(_ context.Context) (*Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, fmt.Errorf("settings: %w", apperr.ErrNotFound)
	}
	s := *r.current
	return &s, nil
}

func (r *repoMem) Save(ctx context.Context, s *Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current
	s.UpdatedAt = time.Now().UTC()
	saved := *s
	r.current = &saved
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.current = prev
		r.mu.Unlock()
	})
	return nil
}
