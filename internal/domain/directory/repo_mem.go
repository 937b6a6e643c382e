package directory

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

// =========== Department Repository ===========

type departmentRepoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Department
}

func NewDepartmentRepoMem() DepartmentRepository {
	return &departmentRepoMem{items: make(map[uuid.UUID]Department)}
}

func (r *departmentRepoMem) Create(ctx context.Context, d *Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Name, d.Name) {
			return fmt.Errorf("department %s already exists: %w", d.Name, apperr.ErrConflict)
		}
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

func (r *departmentRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("department %s: %w", id, apperr.ErrNotFound)
	}
	return &d, nil
}

func (r *departmentRepoMem) Update(ctx context.Context, d *Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[d.ID]
	if !ok {
		return fmt.Errorf("department %s: %w", d.ID, apperr.ErrNotFound)
	}
	for id, existing := range r.items {
		if id != d.ID && strings.EqualFold(existing.Name, d.Name) {
			return fmt.Errorf("department %s already exists: %w", d.Name, apperr.ErrConflict)
		}
	}
	d.UpdatedAt = time.Now().UTC()
	r.items[d.ID] = *d
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *departmentRepoMem) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return fmt.Errorf("department %s: %w", id, apperr.ErrNotFound)
	}
	delete(r.items, id)
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[id] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *departmentRepoMem) List(_ context.Context, status string, limit, offset int) ([]*Department, int, error) {
	r.mu.RLock()
	var matched []*Department
	for _, d := range r.items {
		if status != "" && d.Status != status {
			continue
		}
		d := d
		matched = append(matched, &d)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}

// =========== Doctor Repository ===========

type doctorRepoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Doctor
}

func NewDoctorRepoMem() DoctorRepository {
	return &doctorRepoMem{items: make(map[uuid.UUID]Doctor)}
}

func (r *doctorRepoMem) Create(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *doctorRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("doctor %s: %w", id, apperr.ErrNotFound)
	}
	return &d, nil
}

func (r *doctorRepoMem) Update(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[d.ID]
	if !ok {
		return fmt.Errorf("doctor %s: %w", d.ID, apperr.ErrNotFound)
	}
	d.UpdatedAt = time.Now().UTC()
	r.items[d.ID] = *d
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *doctorRepoMem) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return fmt.Errorf("doctor %s: %w", id, apperr.ErrNotFound)
	}
	delete(r.items, id)
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[id] = old
		r.mu.Unlock()
	})
	return nil
}

func sortDoctors(items []*Doctor) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

func (r *doctorRepoMem) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Doctor
	if len(ids) == 0 {
		for _, d := range r.items {
			d := d
			items = append(items, &d)
		}
	} else {
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			if d, ok := r.items[id]; ok && !seen[id] {
				seen[id] = true
				items = append(items, &d)
			}
		}
	}
	sortDoctors(items)
	return items, nil
}

func (r *doctorRepoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	r.mu.RLock()
	var matched []*Doctor
	for _, d := range r.items {
		if p, ok := params["department_id"]; ok && d.DepartmentID.String() != p {
			continue
		}
		if p, ok := params["name"]; ok && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(p)) {
			continue
		}
		d := d
		matched = append(matched, &d)
	}
	r.mu.RUnlock()

	sortDoctors(matched)
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}

func (r *doctorRepoMem) CountByDepartment(_ context.Context, departmentID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.items {
		if d.DepartmentID == departmentID {
			n++
		}
	}
	return n, nil
}
