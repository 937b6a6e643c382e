package prescription

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
	items map[uuid.UUID]Prescription
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[uuid.UUID]Prescription)}
}

func (r *repoMem) Create(ctx context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.UpdatedAt = time.Now().UTC()
	r.items[p.ID] = *p
	id := p.ID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		delete(r.items, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, apperr.ErrNotFound)
	}
	return &p, nil
}

func (r *repoMem) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, apperr.ErrNotFound)
	}
	p := old
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[id] = old
		r.mu.Unlock()
	})
	return &p, nil
}

func (r *repoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	r.mu.RLock()
	var matched []*Prescription
	for _, p := range r.items {
		if v, ok := params["registration_id"]; ok && p.RegistrationID != v {
			continue
		}
		if v, ok := params["patient_id"]; ok && p.PatientID != v {
			continue
		}
		if v, ok := params["doctor_id"]; ok && p.DoctorID.String() != v {
			continue
		}
		if v, ok := params["status"]; ok && p.Status != v {
			continue
		}
		p := p
		matched = append(matched, &p)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PrescribedAt.Equal(matched[j].PrescribedAt) {
			return matched[i].PrescribedAt.After(matched[j].PrescribedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}
