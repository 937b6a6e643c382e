package formulary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/pkg/pagination"
)

type repoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Drug
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[uuid.UUID]Drug)}
}

func (r *repoMem) nameTaken(id uuid.UUID, name string) bool {
	for other, existing := range r.items {
		if other != id && strings.EqualFold(existing.Name, name) {
			return true
		}
	}
	return false
}

func (r *repoMem) Create(ctx context.Context, d *Drug) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(uuid.Nil, d.Name) {
		return fmt.Errorf("drug %s already exists: %w", d.Name, apperr.ErrConflict)
	}
	now := time.Now().UTC()
	d.ID = uuid.New()
	d.CreatedAt, d.UpdatedAt = now, now
	r.items[d.ID] = *d
	id := d.ID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		delete(r.items, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Drug, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("drug %s: %w", id, apperr.ErrNotFound)
	}
	return &d, nil
}

// GetForUpdate is a plain read; the memory transactor already serializes
// transactions.
func (r *repoMem) GetForUpdate(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return r.GetByID(ctx, id)
}

func (r *repoMem) Update(ctx context.Context, d *Drug) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[d.ID]
	if !ok {
		return fmt.Errorf("drug %s: %w", d.ID, apperr.ErrNotFound)
	}
	if r.nameTaken(d.ID, d.Name) {
		return fmt.Errorf("drug %s already exists: %w", d.Name, apperr.ErrConflict)
	}
	d.CreatedAt = old.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	r.items[d.ID] = *d
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return fmt.Errorf("drug %s: %w", id, apperr.ErrNotFound)
	}
	delete(r.items, id)
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[id] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Drug, int, error) {
	r.mu.RLock()
	var matched []*Drug
	for _, d := range r.items {
		if p, ok := params["name"]; ok && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(p)) {
			continue
		}
		if p, ok := params["status"]; ok && d.Status != p {
			continue
		}
		d := d
		matched = append(matched, &d)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}
