package scheduling

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/domain/directory"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/internal/platform/events"
)

// Doctors is the directory lookup the scheduler needs.
type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	ListDoctors(ctx context.Context, ids []uuid.UUID) ([]*directory.Doctor, error)
}

type Service struct {
	schedules ScheduleRepository
	doctors   Doctors
	tx        db.Transactor
	events    events.Publisher
	logger    zerolog.Logger
}

func NewService(repo ScheduleRepository, doctors Doctors, tx db.Transactor, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{schedules: repo, doctors: doctors, tx: tx, events: pub, logger: logger}
}

var validStatuses = map[string]bool{
	StatusEnabled: true, StatusDisabled: true,
}

// -- Capacity --

// ReserveSlot takes one unit of capacity from the schedule. It fails with
// apperr.ErrCapacityExceeded when the schedule is full or disabled.
func (s *Service) ReserveSlot(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	var out *Schedule
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.Reserve(ctx, id)
		out = sched
		return err
	})
	return out, err
}

// ReleaseSlot gives one unit of capacity back. Callers release at most once
// per registration.
func (s *Service) ReleaseSlot(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	var out *Schedule
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.Release(ctx, id)
		out = sched
		return err
	})
	return out, err
}

// GenerateSlots creates the standard morning, afternoon and evening
// schedules on date for each doctor, or for every doctor when doctorIDs is
// empty. Slots that already exist are left alone; only new schedules are
// returned.
func (s *Service) GenerateSlots(ctx context.Context, date string, doctorIDs []uuid.UUID) ([]*Schedule, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}

	var created []*Schedule
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created = nil
		doctors, err := s.doctors.ListDoctors(ctx, doctorIDs)
		if err != nil {
			return err
		}
		for _, doc := range doctors {
			perSlot := doc.MaxAppointments / len(StandardTimeSlots)
			for _, slot := range StandardTimeSlots {
				sched := &Schedule{
					DepartmentID: doc.DepartmentID,
					DoctorID:     doc.ID,
					Date:         date,
					TimeSlot:     slot,
					MaxPatients:  perSlot,
					Amount:       doc.Fee,
					Status:       StatusEnabled,
				}
				ok, err := s.schedules.CreateIfAbsent(ctx, sched)
				if err != nil {
					return err
				}
				if ok {
					created = append(created, sched)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("date", date).Int("created", len(created)).Msg("schedules generated")
	if len(created) > 0 {
		events.Emit(ctx, s.events, s.logger, events.New(events.SchedulesGenerated, map[string]interface{}{
			"date":      date,
			"schedules": created,
		}))
	}
	return created, nil
}

// -- Admin CRUD --

func validateSchedule(sched *Schedule) error {
	if sched.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required: %w", apperr.ErrValidation)
	}
	if _, err := ParseDate(sched.Date); err != nil {
		return err
	}
	sched.TimeSlot = strings.TrimSpace(sched.TimeSlot)
	if sched.TimeSlot == "" {
		return fmt.Errorf("time_slot is required: %w", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(sched.TimeSlot) > MaxTimeSlotLen {
		return fmt.Errorf("time_slot exceeds %d characters: %w", MaxTimeSlotLen, apperr.ErrValidation)
	}
	if sched.MaxPatients < 0 {
		return fmt.Errorf("max_patients must not be negative: %w", apperr.ErrValidation)
	}
	if sched.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %w", apperr.ErrValidation)
	}
	if !validStatuses[sched.Status] {
		return fmt.Errorf("invalid schedule status %q: %w", sched.Status, apperr.ErrValidation)
	}
	return nil
}

// CreateSchedule adds a schedule by hand. The department is taken from the
// doctor and booked always starts at zero.
func (s *Service) CreateSchedule(ctx context.Context, sched *Schedule) error {
	if sched.Status == "" {
		sched.Status = StatusEnabled
	}
	sched.Booked = 0
	if err := validateSchedule(sched); err != nil {
		return err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.doctors.GetDoctor(ctx, sched.DoctorID)
		if err != nil {
			return err
		}
		sched.DepartmentID = doc.DepartmentID
		return s.schedules.Create(ctx, sched)
	})
	if err != nil {
		return err
	}
	events.Emit(ctx, s.events, s.logger, events.New(events.ScheduleCreated, sched))
	return nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) SearchSchedules(ctx context.Context, params map[string]string, limit, offset int) ([]*Schedule, int, error) {
	for _, k := range []string{"doctor_id", "department_id"} {
		if p, ok := params[k]; ok {
			if _, err := uuid.Parse(p); err != nil {
				return nil, 0, fmt.Errorf("invalid %s: %w", k, apperr.ErrValidation)
			}
		}
	}
	if p, ok := params["date"]; ok {
		if _, err := ParseDate(p); err != nil {
			return nil, 0, err
		}
	}
	if p, ok := params["status"]; ok && !validStatuses[p] {
		return nil, 0, fmt.Errorf("invalid schedule status %q: %w", p, apperr.ErrValidation)
	}
	return s.schedules.Search(ctx, params, limit, offset)
}

// ScheduleUpdate carries the fields an administrator may change; nil means
// unchanged. Booked is not settable.
type ScheduleUpdate struct {
	MaxPatients *int             `json:"max_patients" validate:"omitempty,gte=0"`
	Amount      *decimal.Decimal `json:"amount"`
	Status      *string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, u ScheduleUpdate) (*Schedule, error) {
	var out *Schedule
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.MaxPatients != nil {
			sched.MaxPatients = *u.MaxPatients
		}
		if u.Amount != nil {
			sched.Amount = *u.Amount
		}
		if u.Status != nil {
			sched.Status = *u.Status
		}
		if err := validateSchedule(sched); err != nil {
			return err
		}
		if sched.MaxPatients < sched.Booked {
			return fmt.Errorf("schedule %s: max_patients %d below booked %d: %w",
				id, sched.MaxPatients, sched.Booked, apperr.ErrInvalidState)
		}
		if err := s.schedules.Update(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, s.logger, events.New(events.ScheduleUpdated, out))
	return out, nil
}

// DeleteSchedule removes a schedule that no active registration holds.
func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.schedules.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	events.Emit(ctx, s.events, s.logger, events.New(events.ScheduleDeleted, map[string]string{"id": id.String()}))
	return nil
}

// CountByDoctor lets the directory refuse to delete doctors with schedules.
func (s *Service) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return s.schedules.CountByDoctor(ctx, doctorID)
}
