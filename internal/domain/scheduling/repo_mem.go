package scheduling

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

type slotKey struct {
	doctorID uuid.UUID
	date     string
	timeSlot string
}

func keyOf(s *Schedule) slotKey {
	return slotKey{doctorID: s.DoctorID, date: s.Date, timeSlot: s.TimeSlot}
}

type scheduleRepoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Schedule
	slots map[slotKey]uuid.UUID
}

func NewScheduleRepoMem() ScheduleRepository {
	return &scheduleRepoMem{
		items: make(map[uuid.UUID]Schedule),
		slots: make(map[slotKey]uuid.UUID),
	}
}

// insert assumes r.mu is held and the slot is free.
func (r *scheduleRepoMem) insert(ctx context.Context, s *Schedule) {
	now := time.Now().UTC()
	s.ID = uuid.New()
	s.CreatedAt, s.UpdatedAt = now, now
	r.items[s.ID] = *s
	k := keyOf(s)
	r.slots[k] = s.ID
	id := s.ID
	db.Compensate(ctx, func() {
		r.mu.Lock()
		delete(r.items, id)
		delete(r.slots, k)
		r.mu.Unlock()
	})
}

func (r *scheduleRepoMem) Create(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.slots[keyOf(s)]; taken {
		return fmt.Errorf("schedule %s %s for doctor %s already exists: %w", s.Date, s.TimeSlot, s.DoctorID, apperr.ErrConflict)
	}
	r.insert(ctx, s)
	return nil
}

func (r *scheduleRepoMem) CreateIfAbsent(ctx context.Context, s *Schedule) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.slots[keyOf(s)]; taken {
		return false, nil
	}
	r.insert(ctx, s)
	return true, nil
}

func (r *scheduleRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	return &s, nil
}

// restore registers an undo step putting old back in place.
func (r *scheduleRepoMem) restore(ctx context.Context, old Schedule) {
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.mu.Unlock()
	})
}

// undoBooked registers an undo step shifting booked by delta.
func (r *scheduleRepoMem) undoBooked(ctx context.Context, id uuid.UUID, delta int) {
	db.Compensate(ctx, func() {
		r.mu.Lock()
		if s, ok := r.items[id]; ok {
			s.Booked += delta
			r.items[id] = s
		}
		r.mu.Unlock()
	})
}

func (r *scheduleRepoMem) Update(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[s.ID]
	if !ok {
		return fmt.Errorf("schedule %s: %w", s.ID, apperr.ErrNotFound)
	}
	if s.MaxPatients < old.Booked {
		return fmt.Errorf("schedule %s: max_patients %d below booked %d: %w", s.ID, s.MaxPatients, old.Booked, apperr.ErrInvalidState)
	}
	updated := old
	updated.MaxPatients = s.MaxPatients
	updated.Amount = s.Amount
	updated.Status = s.Status
	updated.UpdatedAt = time.Now().UTC()
	r.items[s.ID] = updated
	r.restore(ctx, old)
	*s = updated
	return nil
}

func (r *scheduleRepoMem) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	if old.Booked > 0 {
		return fmt.Errorf("schedule %s still has active registrations: %w", id, apperr.ErrInvalidState)
	}
	delete(r.items, id)
	k := keyOf(&old)
	delete(r.slots, k)
	db.Compensate(ctx, func() {
		r.mu.Lock()
		r.items[old.ID] = old
		r.slots[k] = old.ID
		r.mu.Unlock()
	})
	return nil
}

func sortSchedules(items []*Schedule) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if ra, rb := slotRank(a.TimeSlot), slotRank(b.TimeSlot); ra != rb {
			return ra < rb
		}
		if a.DoctorID != b.DoctorID {
			return a.DoctorID.String() < b.DoctorID.String()
		}
		return a.ID.String() < b.ID.String()
	})
}

func (r *scheduleRepoMem) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Schedule, int, error) {
	r.mu.RLock()
	var matched []*Schedule
	for _, s := range r.items {
		if p, ok := params["doctor_id"]; ok && s.DoctorID.String() != p {
			continue
		}
		if p, ok := params["department_id"]; ok && s.DepartmentID.String() != p {
			continue
		}
		if p, ok := params["date"]; ok && s.Date != p {
			continue
		}
		if p, ok := params["status"]; ok && s.Status != p {
			continue
		}
		s := s
		matched = append(matched, &s)
	}
	r.mu.RUnlock()

	sortSchedules(matched)
	start, end := pagination.Normalize(limit, offset).Window(len(matched))
	return matched[start:end], len(matched), nil
}

func (r *scheduleRepoMem) Reserve(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	if old.Status != StatusEnabled {
		return nil, fmt.Errorf("schedule %s is disabled: %w", id, apperr.ErrCapacityExceeded)
	}
	if old.Booked >= old.MaxPatients {
		return nil, fmt.Errorf("schedule %s is full (%d/%d): %w", id, old.Booked, old.MaxPatients, apperr.ErrCapacityExceeded)
	}
	s := old
	s.Booked++
	s.UpdatedAt = time.Now().UTC()
	r.items[id] = s
	r.undoBooked(ctx, id, -1)
	return &s, nil
}

func (r *scheduleRepoMem) Release(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	s := old
	if s.Booked > 0 {
		s.Booked--
		r.undoBooked(ctx, id, 1)
	}
	s.UpdatedAt = time.Now().UTC()
	r.items[id] = s
	return &s, nil
}

func (r *scheduleRepoMem) CountByDoctor(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.items {
		if s.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}
