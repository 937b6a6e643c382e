package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/outpatient/ledger/internal/domain/prescription"
	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/pkg/pagination"
)

// Registrations is the booking side of a patient's history and queue.
type Registrations interface {
	SearchRegistrations(ctx context.Context, params map[string]string, limit, offset int) ([]*registration.Registration, int, error)
}

// Prescriptions supplies the diagnoses shown in a patient's history.
type Prescriptions interface {
	SearchPrescriptions(ctx context.Context, params map[string]string, limit, offset int) ([]*prescription.Prescription, int, error)
}

type Service struct {
	repo   Repository
	regs   Registrations
	rx     Prescriptions
	tx     db.Transactor
	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewService(repo Repository, regs Registrations, rx Prescriptions, tx db.Transactor, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, regs: regs, rx: rx, tx: tx, logger: logger, loc: loc, now: time.Now}
}

// GetProfile returns the stored profile, or an empty one when the patient
// never saved theirs.
func (s *Service) GetProfile(ctx context.Context, patientID string) (*Profile, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("patient_id is required: %w", apperr.ErrValidation)
	}
	p, err := s.repo.Get(ctx, patientID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &Profile{PatientID: patientID, Gender: GenderUnknown}, nil
	}
	return p, err
}

// ProfileUpdate carries the fields a caller may change; nil means unchanged.
// An empty BirthDate clears it.
type ProfileUpdate struct {
	Name           *string `json:"name" validate:"omitempty,max=64"`
	Gender         *string `json:"gender" validate:"omitempty,oneof=male female unknown"`
	BirthDate      *string `json:"birth_date"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Insured        *bool   `json:"insured"`
	Allergies      *string `json:"allergies" validate:"omitempty,max=2000"`
	MedicalHistory *string `json:"medical_history" validate:"omitempty,max=4000"`
}

func (s *Service) applyUpdate(p *Profile, u ProfileUpdate) error {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Gender != nil {
		if !validGenders[*u.Gender] {
			return fmt.Errorf("invalid gender %q: %w", *u.Gender, apperr.ErrValidation)
		}
		p.Gender = *u.Gender
	}
	if u.BirthDate != nil {
		v := strings.TrimSpace(*u.BirthDate)
		if v == "" {
			p.BirthDate = nil
		} else {
			born, err := time.Parse(dateLayout, v)
			if err != nil {
				return fmt.Errorf("birth_date must be YYYY-MM-DD: %w", apperr.ErrValidation)
			}
			today := s.now().In(s.loc).Format(dateLayout)
			if born.Format(dateLayout) > today {
				return fmt.Errorf("birth_date %s is in the future: %w", v, apperr.ErrValidation)
			}
			p.BirthDate = &v
		}
	}
	if u.Phone != nil {
		p.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Insured != nil {
		p.Insured = *u.Insured
	}
	if u.Allergies != nil {
		p.Allergies = strings.TrimSpace(*u.Allergies)
	}
	if u.MedicalHistory != nil {
		p.MedicalHistory = strings.TrimSpace(*u.MedicalHistory)
	}
	return nil
}

// SaveProfile applies u to the patient's profile, creating it on first save.
func (s *Service) SaveProfile(ctx context.Context, patientID string, u ProfileUpdate) (*Profile, error) {
	var out *Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.GetProfile(ctx, patientID)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(p, u); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", patientID).Msg("patient profile saved")
	return out, nil
}

// History lists the patient's registrations, newest first, each with the
// prescriptions written against it.
func (s *Service) History(ctx context.Context, patientID string, limit, offset int) ([]*Visit, int, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, 0, fmt.Errorf("patient_id is required: %w", apperr.ErrValidation)
	}
	regs, total, err := s.regs.SearchRegistrations(ctx, map[string]string{"patient_id": patientID}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	visits := make([]*Visit, 0, len(regs))
	for _, reg := range regs {
		v := &Visit{
			RegistrationID: reg.ID,
			Date:           reg.ScheduleDate,
			TimeSlot:       reg.TimeSlot,
			DepartmentID:   reg.DepartmentID,
			DoctorID:       reg.DoctorID,
			Status:         reg.Status,
			Prescriptions:  []VisitDiagnosis{},
		}
		if reg.HasPrescription {
			rxs, _, err := s.rx.SearchPrescriptions(ctx, map[string]string{"registration_id": reg.ID}, pagination.MaxLimit, 0)
			if err != nil {
				return nil, 0, err
			}
			for _, p := range rxs {
				v.Prescriptions = append(v.Prescriptions, VisitDiagnosis{
					PrescriptionID: p.ID,
					Symptoms:       p.Symptoms,
					Diagnosis:      p.Diagnosis,
					Status:         p.Status,
					PrescribedAt:   p.PrescribedAt,
				})
			}
		}
		visits = append(visits, v)
	}
	return visits, total, nil
}

// Queue returns the doctor's active registrations on date in booking order.
// An empty date means today in the ledger's time zone.
func (s *Service) Queue(ctx context.Context, doctorID uuid.UUID, date string) ([]*QueueEntry, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required: %w", apperr.ErrValidation)
	}
	now := s.now().In(s.loc)
	if date == "" {
		date = now.Format(dateLayout)
	}
	params := map[string]string{"doctor_id": doctorID.String(), "date": date}

	var active []*registration.Registration
	for offset := 0; ; offset += pagination.MaxLimit {
		page, total, err := s.regs.SearchRegistrations(ctx, params, pagination.MaxLimit, offset)
		if err != nil {
			return nil, err
		}
		for _, reg := range page {
			if reg.Active() {
				active = append(active, reg)
			}
		}
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreateTime.Equal(active[j].CreateTime) {
			return active[i].CreateTime.Before(active[j].CreateTime)
		}
		return active[i].ID < active[j].ID
	})

	ages := map[string]*int{}
	entries := make([]*QueueEntry, 0, len(active))
	for i, reg := range active {
		age, seen := ages[reg.PatientID]
		if !seen {
			p, err := s.repo.Get(ctx, reg.PatientID)
			switch {
			case err == nil:
				if n, ok := p.Age(now); ok {
					age = &n
				}
			case !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
			ages[reg.PatientID] = age
		}
		stage := StageWaiting
		if reg.HasPrescription {
			stage = StageCompleted
		}
		entries = append(entries, &QueueEntry{
			Position:       i + 1,
			RegistrationID: reg.ID,
			PatientID:      reg.PatientID,
			PatientName:    reg.PatientName,
			Age:            age,
			TimeSlot:       reg.TimeSlot,
			Status:         reg.Status,
			Stage:          stage,
			CreateTime:     reg.CreateTime,
		})
	}
	return entries, nil
}
