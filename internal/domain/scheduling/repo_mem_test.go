package scheduling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

func newMemSchedule(t *testing.T, repo ScheduleRepository, max int) *Schedule {
	t.Helper()
	s := &Schedule{
		DepartmentID: uuid.New(),
		DoctorID:     uuid.New(),
		Date:         "2024-03-01",
		TimeSlot:     TimeSlotMorning,
		MaxPatients:  max,
		Status:       StatusEnabled,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestScheduleRepoMem_CreateDuplicateSlot(t *testing.T) {
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, 5)

	dup := &Schedule{DoctorID: s.DoctorID, Date: s.Date, TimeSlot: s.TimeSlot, Status: StatusEnabled}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	created, err := repo.CreateIfAbsent(context.Background(), dup)
	if err != nil || created {
		t.Errorf("CreateIfAbsent on existing slot = %v, %v", created, err)
	}
}

func TestScheduleRepoMem_ConcurrentReserve(t *testing.T) {
	const capacity, attempts = 10, 50
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, capacity)

	var ok, full int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(context.Background(), s.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, apperr.ErrCapacityExceeded):
				atomic.AddInt32(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != capacity {
		t.Errorf("expected %d successful reservations, got %d", capacity, ok)
	}
	if full != attempts-capacity {
		t.Errorf("expected %d capacity errors, got %d", attempts-capacity, full)
	}
	got, _ := repo.GetByID(context.Background(), s.ID)
	if got.Booked != capacity {
		t.Errorf("expected booked %d, got %d", capacity, got.Booked)
	}
}

func TestScheduleRepoMem_ReleaseFloorsAtZero(t *testing.T) {
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, 2)

	got, err := repo.Release(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got.Booked != 0 {
		t.Errorf("expected booked 0, got %d", got.Booked)
	}
	if _, err := repo.Release(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestScheduleRepoMem_ReserveRolledBack(t *testing.T) {
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, 2)
	tx := db.NewMemTransactor()
	boom := errors.New("boom")

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := repo.Reserve(ctx, s.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := repo.GetByID(context.Background(), s.ID)
	if got.Booked != 0 {
		t.Errorf("expected reservation to be undone, booked = %d", got.Booked)
	}
}

func TestScheduleRepoMem_UpdateKeepsBooked(t *testing.T) {
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, 5)
	repo.Reserve(context.Background(), s.ID)
	repo.Reserve(context.Background(), s.ID)

	upd := &Schedule{ID: s.ID, MaxPatients: 4, Status: StatusEnabled, Booked: 0}
	if err := repo.Update(context.Background(), upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Booked != 2 {
		t.Errorf("booked must be preserved, got %d", upd.Booked)
	}

	upd.MaxPatients = 1
	if err := repo.Update(context.Background(), upd); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestScheduleRepoMem_DeleteFreesSlot(t *testing.T) {
	repo := NewScheduleRepoMem()
	s := newMemSchedule(t, repo, 5)
	if err := repo.Delete(context.Background(), s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	again := &Schedule{DoctorID: s.DoctorID, Date: s.Date, TimeSlot: s.TimeSlot, Status: StatusEnabled}
	if err := repo.Create(context.Background(), again); err != nil {
		t.Errorf("slot should be free after delete: %v", err)
	}
}

func TestScheduleRepoMem_SearchOrder(t *testing.T) {
	repo := NewScheduleRepoMem()
	doc := uuid.New()
	for _, slot := range []string{TimeSlotEvening, TimeSlotMorning, TimeSlotAfternoon} {
		repo.Create(context.Background(), &Schedule{DoctorID: doc, Date: "2024-03-02", TimeSlot: slot, Status: StatusEnabled})
	}
	repo.Create(context.Background(), &Schedule{DoctorID: doc, Date: "2024-03-01", TimeSlot: TimeSlotEvening, Status: StatusEnabled})

	items, total, err := repo.Search(context.Background(), map[string]string{"doctor_id": doc.String()}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 schedules, got %d", total)
	}
	want := []string{"2024-03-01/evening", "2024-03-02/morning", "2024-03-02/afternoon", "2024-03-02/evening"}
	for i, s := range items {
		if got := s.Date + "/" + s.TimeSlot; got != want[i] {
			t.Errorf("item %d = %s, want %s", i, got, want[i])
		}
	}

	page, _, _ := repo.Search(context.Background(), map[string]string{"date": "2024-03-02"}, 2, 2)
	if len(page) != 1 || page[0].TimeSlot != TimeSlotEvening {
		t.Errorf("unexpected page %v", page)
	}
}
