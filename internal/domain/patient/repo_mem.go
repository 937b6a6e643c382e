package patient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type repoMem struct {
	mu    sync.RWMutex
	items map[string]Profile
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[string]Profile)}
}

func (r *repoMem) Get(_ context.Context, patientID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[patientID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", patientID, apperr.ErrNotFound)
	}
	return &p, nil
}

func (r *repoMem) Save(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, existed := r.items[p.PatientID]
	p.UpdatedAt = time.Now().UTC()
	r.items[p.PatientID] = *p
	id := p.PatientID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		if existed {
			r.items[id] = old
		} else {
			delete(r.items, id)
		}
		r.mu.Unlock()
	})
	return nil
}
