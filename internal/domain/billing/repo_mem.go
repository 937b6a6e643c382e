package billing

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
	items map[uuid.UUID]Payment
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[uuid.UUID]Payment)}
}

// openFor assumes r.mu is held.
func (r *repoMem) openFor(registrationID string) (Payment, bool) {
	for _, p := range r.items {
		if p.RegistrationID == registrationID && p.Status != StatusRefunded {
			return p, true
		}
	}
	return Payment{}, false
}

func (r *repoMem) Create(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.openFor(p.RegistrationID); exists {
		return fmt.Errorf("registration %s already has a payment: %w", p.RegistrationID, apperr.ErrDuplicatePayment)
	}
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

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, apperr.ErrNotFound)
	}
	return &p, nil
}

func (r *repoMem) GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *repoMem) Update(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[p.ID]
	if !ok {
		return fmt.Errorf("payment %s: %w", p.ID, apperr.ErrNotFound)
	}
	updated := old
	updated.Status = p.Status
	updated.RefundTime = p.RefundTime
	updated.RefundReason = p.RefundReason
	updated.UpdatedAt = time.Now().UTC()
	r.items[p.ID] = updated
	*p = updated
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMem) FindOpenByRegistration(_ context.Context, registrationID string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.openFor(registrationID)
	if !ok {
		return nil, fmt.Errorf("open payment for registration %s: %w", registrationID, apperr.ErrNotFound)
	}
	return &p, nil
}

func (r *repoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	r.mu.RLock()
	var matched []*Payment
	for _, p := range r.items {
		if v, ok := params["registration_id"]; ok && p.RegistrationID != v {
			continue
		}
		if v, ok := params["status"]; ok && p.Status != v {
			continue
		}
		if v, ok := params["payment_method"]; ok && p.PaymentMethod != v {
			continue
		}
		if v, ok := params["patient_name"]; ok && !strings.Contains(strings.ToLower(p.PatientName), strings.ToLower(v)) {
			continue
		}
		p := p
		matched = append(matched, &p)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreateTime.Equal(matched[j].CreateTime) {
			return matched[i].CreateTime.After(matched[j].CreateTime)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}
