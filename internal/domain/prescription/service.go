package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/internal/platform/events"
)

// Registrations is the registration side of issuing a prescription.
type Registrations interface {
	GetRegistration(ctx context.Context, id string) (*registration.Registration, error)
	MarkPrescribed(ctx context.Context, id string) (*registration.Registration, error)
}

type Service struct {
	repo   Repository
	regs   Registrations
	tx     db.Transactor
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, regs Registrations, tx db.Transactor, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{repo: repo, regs: regs, tx: tx, events: pub, logger: logger, now: time.Now}
}

// NewPrescription is the input to Issue. DoctorID, when set, must be the
// doctor the registration was booked with.
type NewPrescription struct {
	RegistrationID string
	DoctorID       uuid.UUID
	Symptoms       string
	Diagnosis      string
	Remark         *string
}

// Issue writes a prescription for a confirmed registration and flags the
// registration in the same transaction.
func (s *Service) Issue(ctx context.Context, in NewPrescription) (*Prescription, error) {
	in.RegistrationID = strings.TrimSpace(in.RegistrationID)
	in.Symptoms = strings.TrimSpace(in.Symptoms)
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	if in.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", apperr.ErrValidation)
	}
	if in.Diagnosis == "" {
		return nil, fmt.Errorf("diagnosis is required: %w", apperr.ErrValidation)
	}

	var p *Prescription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.regs.GetRegistration(ctx, in.RegistrationID)
		if err != nil {
			return err
		}
		if in.DoctorID != uuid.Nil && reg.DoctorID != in.DoctorID {
			return fmt.Errorf("registration %s is booked with another doctor: %w", reg.ID, apperr.ErrValidation)
		}
		reg, err = s.regs.MarkPrescribed(ctx, reg.ID)
		if err != nil {
			return err
		}
		p = &Prescription{
			RegistrationID: reg.ID,
			PatientID:      reg.PatientID,
			DoctorID:       reg.DoctorID,
			Status:         StatusActive,
			Symptoms:       in.Symptoms,
			Diagnosis:      in.Diagnosis,
			Remark:         in.Remark,
			PrescribedAt:   s.now().UTC(),
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("registration_id", p.RegistrationID).
		Msg("prescription issued")
	events.Emit(ctx, s.events, s.logger, events.New(events.PrescriptionIssued, p))
	return p, nil
}

// UpdateStatus moves an active prescription to void or archived. Setting
// the current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid prescription status %q: %w", status, apperr.ErrValidation)
	}
	var out *Prescription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == status {
			out = p
			return nil
		}
		if p.Status != StatusActive || status == StatusActive {
			return fmt.Errorf("prescription %s cannot move from %s to %s: %w", id, p.Status, status, apperr.ErrInvalidState)
		}
		out, err = s.repo.UpdateStatus(ctx, id, status)
		return err
	})
	return out, err
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SearchPrescriptions(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	if p, ok := params["doctor_id"]; ok {
		if _, err := uuid.Parse(p); err != nil {
			return nil, 0, fmt.Errorf("invalid doctor_id: %w", apperr.ErrValidation)
		}
	}
	if p, ok := params["status"]; ok && !validStatuses[p] {
		return nil, 0, fmt.Errorf("invalid prescription status %q: %w", p, apperr.ErrValidation)
	}
	return s.repo.Search(ctx, params, limit, offset)
}
