package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/outpatient/ledger/internal/domain/scheduling"
	"github.com/outpatient/ledger/internal/domain/settings"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/internal/platform/events"
)

// Scheduler is the capacity side of a booking.
type Scheduler interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*scheduling.Schedule, error)
	ReserveSlot(ctx context.Context, id uuid.UUID) (*scheduling.Schedule, error)
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*scheduling.Schedule, error)
}

// Settings supplies the booking rules in force.
type Settings interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Numberer hands out registration numbers.
type Numberer interface {
	Next(ctx context.Context) (string, error)
}

type Service struct {
	repo     Repository
	sched    Scheduler
	settings Settings
	numbers  Numberer
	tx       db.Transactor
	events   events.Publisher
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, sched Scheduler, cfg Settings, numbers Numberer, tx db.Transactor, pub events.Publisher, logger zerolog.Logger, loc *time.Location) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo: repo, sched: sched, settings: cfg, numbers: numbers,
		tx: tx, events: pub, logger: logger, loc: loc, now: time.Now,
	}
}

// publish emits evts unless the call joined a caller's transaction, in
// which case the caller publishes once it commits.
func (s *Service) publish(ctx context.Context, joined bool, evts ...events.Event) {
	if joined {
		return
	}
	events.Emit(ctx, s.events, s.logger, evts...)
}

// NewRegistration is the input to CreateRegistration.
type NewRegistration struct {
	ScheduleID  uuid.UUID
	PatientID   string
	PatientName string
}

// CreateRegistration books one unit of the schedule for the patient. The
// schedule must be enabled, have room and fall inside the booking window.
func (s *Service) CreateRegistration(ctx context.Context, in NewRegistration) (*Registration, error) {
	in.PatientName = strings.TrimSpace(in.PatientName)
	if in.ScheduleID == uuid.Nil {
		return nil, fmt.Errorf("schedule_id is required: %w", apperr.ErrValidation)
	}
	if in.PatientName == "" {
		return nil, fmt.Errorf("patient_name is required: %w", apperr.ErrValidation)
	}

	joined := db.InTx(ctx)
	var reg *Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sched, err := s.sched.GetSchedule(ctx, in.ScheduleID)
		if err != nil {
			return err
		}
		day, err := sched.Day()
		if err != nil {
			return err
		}
		rules, err := s.settings.Get(ctx)
		if err != nil {
			return err
		}
		now := s.now().In(s.loc)
		if !rules.InWindow(day, now) {
			return fmt.Errorf("schedule date %s is outside the %d-day booking window: %w",
				sched.Date, rules.AppointmentRangeDays, apperr.ErrOutsideBookingWindow)
		}

		if _, err := s.sched.ReserveSlot(ctx, sched.ID); err != nil {
			return err
		}
		id, err := s.numbers.Next(ctx)
		if err != nil {
			return err
		}

		reg = &Registration{
			ID:           id,
			ScheduleID:   sched.ID,
			PatientID:    in.PatientID,
			PatientName:  in.PatientName,
			DepartmentID: sched.DepartmentID,
			DoctorID:     sched.DoctorID,
			ScheduleDate: sched.Date,
			TimeSlot:     sched.TimeSlot,
			Status:       StatusPending,
			CreateTime:   now.UTC(),
		}
		if !rules.RequireConfirmation {
			reg.Status = StatusConfirmed
			confirmed := reg.CreateTime
			reg.ConfirmTime = &confirmed
		}
		return s.repo.Create(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("registration_id", reg.ID).Str("schedule_id", reg.ScheduleID.String()).
		Str("status", reg.Status).Msg("registration created")
	s.publish(ctx, joined, events.New(events.RegistrationCreated, reg))
	return reg, nil
}

// ConfirmRegistration moves a pending registration to confirmed. Confirming
// a confirmed registration is a no-op.
func (s *Service) ConfirmRegistration(ctx context.Context, id string) (*Registration, error) {
	joined := db.InTx(ctx)
	var reg *Registration
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		reg = r
		switch r.Status {
		case StatusConfirmed:
			return nil
		case StatusPending:
		default:
			return fmt.Errorf("registration %s is %s and cannot be confirmed: %w", id, r.Status, apperr.ErrInvalidState)
		}
		now := s.now().UTC()
		r.Status = StatusConfirmed
		r.ConfirmTime = &now
		changed = true
		return s.repo.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, joined, events.New(events.RegistrationConfirmed, reg))
	}
	return reg, nil
}

// CancelRegistration cancels an active registration and returns its unit of
// capacity. Cancelling a cancelled registration is a no-op.
func (s *Service) CancelRegistration(ctx context.Context, id string) (*Registration, error) {
	joined := db.InTx(ctx)
	var reg *Registration
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		reg = r
		switch r.Status {
		case StatusCancelled:
			return nil
		case StatusRefunded:
			return fmt.Errorf("registration %s is refunded and cannot be cancelled: %w", id, apperr.ErrInvalidState)
		}
		now := s.now().UTC()
		r.Status = StatusCancelled
		r.CancelTime = &now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		changed = true
		_, err = s.sched.ReleaseSlot(ctx, r.ScheduleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().Str("registration_id", id).Msg("registration cancelled")
		s.publish(ctx, joined, events.New(events.RegistrationCancelled, reg))
	}
	return reg, nil
}

// MarkRefunded records that the registration's payment was refunded. An
// active registration becomes refunded and its capacity is released; a
// cancelled one already gave its capacity back and is left unchanged.
// The returned flag reports whether the registration changed. Events are
// left to the caller, which owns the refund transaction.
func (s *Service) MarkRefunded(ctx context.Context, id string) (*Registration, bool, error) {
	var reg *Registration
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		reg = r
		switch r.Status {
		case StatusCancelled:
			return nil
		case StatusRefunded:
			return fmt.Errorf("registration %s is already refunded: %w", id, apperr.ErrInvalidState)
		}
		now := s.now().UTC()
		r.Status = StatusRefunded
		r.CancelTime = &now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		changed = true
		_, err = s.sched.ReleaseSlot(ctx, r.ScheduleID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return reg, changed, nil
}

// MarkPrescribed flags a confirmed registration as having a prescription.
func (s *Service) MarkPrescribed(ctx context.Context, id string) (*Registration, error) {
	var reg *Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != StatusConfirmed {
			return fmt.Errorf("registration %s is %s, prescriptions need a confirmed registration: %w",
				id, r.Status, apperr.ErrInvalidState)
		}
		reg = r
		if r.HasPrescription {
			return nil
		}
		r.HasPrescription = true
		return s.repo.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) GetRegistration(ctx context.Context, id string) (*Registration, error) {
	return s.repo.GetByID(ctx, id)
}

// LockRegistration reads the registration and holds its row lock until the
// caller's transaction ends, so a concurrent cancel or refund waits.
func (s *Service) LockRegistration(ctx context.Context, id string) (*Registration, error) {
	if !db.InTx(ctx) {
		return nil, fmt.Errorf("lock registration %s outside a transaction", id)
	}
	return s.repo.GetForUpdate(ctx, id)
}

func (s *Service) SearchRegistrations(ctx context.Context, params map[string]string, limit, offset int) ([]*Registration, int, error) {
	for _, k := range []string{"doctor_id", "department_id", "schedule_id"} {
		if p, ok := params[k]; ok {
			if _, err := uuid.Parse(p); err != nil {
				return nil, 0, fmt.Errorf("invalid %s: %w", k, apperr.ErrValidation)
			}
		}
	}
	if p, ok := params["date"]; ok {
		if _, err := scheduling.ParseDate(p); err != nil {
			return nil, 0, err
		}
	}
	if p, ok := params["status"]; ok && !validStatuses[p] {
		return nil, 0, fmt.Errorf("invalid registration status %q: %w", p, apperr.ErrValidation)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// CountActive returns how many registrations hold capacity on the schedule.
func (s *Service) CountActive(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	return s.repo.CountActiveBySchedule(ctx, scheduleID)
}
