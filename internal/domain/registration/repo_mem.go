package registration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/pkg/pagination"
)

type repoMem struct {
	mu    sync.RWMutex
	items map[string]Registration
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[string]Registration)}
}

func (r *repoMem) Create(ctx context.Context, g *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[g.ID]; exists {
		return fmt.Errorf("registration %s already exists: %w", g.ID, apperr.ErrConflict)
	}
	g.UpdatedAt = time.Now().UTC()
	r.items[g.ID] = *g
	id := g.ID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		delete(r.items, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", id, apperr.ErrNotFound)
	}
	return &g, nil
}

// GetForUpdate is a plain read; the in-memory transactor already
// serialises units of work.
func (r *repoMem) GetForUpdate(ctx context.Context, id string) (*Registration, error) {
	return r.GetByID(ctx, id)
}

func (r *repoMem) Update(ctx context.Context, g *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[g.ID]
	if !ok {
		return fmt.Errorf("registration %s: %w", g.ID, apperr.ErrNotFound)
	}
	updated := old
	updated.Status = g.Status
	updated.ConfirmTime = g.ConfirmTime
	updated.CancelTime = g.CancelTime
	updated.HasPrescription = g.HasPrescription
	updated.UpdatedAt = time.Now().UTC()
	r.items[g.ID] = updated
	*g = updated
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Registration, int, error) {
	r.mu.RLock()
	var matched []*Registration
	for _, g := range r.items {
		if p, ok := params["patient_id"]; ok && g.PatientID != p {
			continue
		}
		if p, ok := params["doctor_id"]; ok && g.DoctorID.String() != p {
			continue
		}
		if p, ok := params["department_id"]; ok && g.DepartmentID.String() != p {
			continue
		}
		if p, ok := params["schedule_id"]; ok && g.ScheduleID.String() != p {
			continue
		}
		if p, ok := params["status"]; ok && g.Status != p {
			continue
		}
		if p, ok := params["date"]; ok && g.ScheduleDate != p {
			continue
		}
		g := g
		matched = append(matched, &g)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreateTime.Equal(matched[j].CreateTime) {
			return matched[i].CreateTime.After(matched[j].CreateTime)
		}
		return matched[i].ID > matched[j].ID
	})
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}

func (r *repoMem) CountActiveBySchedule(_ context.Context, scheduleID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, g := range r.items {
		if g.ScheduleID == scheduleID && g.Active() {
			n++
		}
	}
	return n, nil
}
