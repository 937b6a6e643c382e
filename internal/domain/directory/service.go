package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

// ScheduleCounter reports how many schedules reference a doctor. It lets
// the directory refuse to delete doctors that still own slots.
type ScheduleCounter interface {
	CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type Service struct {
	departments DepartmentRepository
	doctors     DoctorRepository
	schedules   ScheduleCounter
	tx          db.Transactor
}

func NewService(depts DepartmentRepository, docs DoctorRepository, tx db.Transactor) *Service {
	return &Service{departments: depts, doctors: docs, tx: tx}
}

// SetScheduleCounter wires the schedule lookup used by DeleteDoctor.
func (s *Service) SetScheduleCounter(c ScheduleCounter) {
	s.schedules = c
}

var validDepartmentStatuses = map[string]bool{
	StatusEnabled: true, StatusDisabled: true,
}

// -- Department --

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrValidation)
	}
	if d.Status == "" {
		d.Status = StatusEnabled
	}
	if !validDepartmentStatuses[d.Status] {
		return fmt.Errorf("invalid department status %q: %w", d.Status, apperr.ErrValidation)
	}
	return s.departments.Create(ctx, d)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.departments.GetByID(ctx, id)
}

// DepartmentUpdate carries the fields a caller may change; nil means unchanged.
type DepartmentUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (s *Service) UpdateDepartment(ctx context.Context, id uuid.UUID, u DepartmentUpdate) (*Department, error) {
	var out *Department
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := s.departments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return fmt.Errorf("name must not be empty: %w", apperr.ErrValidation)
			}
			d.Name = name
		}
		if u.Description != nil {
			d.Description = u.Description
		}
		if u.Status != nil {
			if !validDepartmentStatuses[*u.Status] {
				return fmt.Errorf("invalid department status %q: %w", *u.Status, apperr.ErrValidation)
			}
			d.Status = *u.Status
		}
		if err := s.departments.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (s *Service) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.departments.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := s.doctors.CountByDepartment(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("department %s still has %d doctors: %w", id, n, apperr.ErrInvalidState)
		}
		return s.departments.Delete(ctx, id)
	})
}

func (s *Service) ListDepartments(ctx context.Context, status string, limit, offset int) ([]*Department, int, error) {
	if status != "" && !validDepartmentStatuses[status] {
		return nil, 0, fmt.Errorf("invalid department status %q: %w", status, apperr.ErrValidation)
	}
	return s.departments.List(ctx, status, limit, offset)
}

// -- Doctor --

func validateDoctor(d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrValidation)
	}
	if d.DepartmentID == uuid.Nil {
		return fmt.Errorf("department_id is required: %w", apperr.ErrValidation)
	}
	if d.MaxAppointments < 0 {
		return fmt.Errorf("max_appointments must not be negative: %w", apperr.ErrValidation)
	}
	if d.Fee.IsNegative() {
		return fmt.Errorf("fee must not be negative: %w", apperr.ErrValidation)
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.departments.GetByID(ctx, d.DepartmentID); err != nil {
			return err
		}
		return s.doctors.Create(ctx, d)
	})
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// UpdateDoctor replaces the mutable fields of an existing doctor.
func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.doctors.GetByID(ctx, d.ID)
		if err != nil {
			return err
		}
		if _, err := s.departments.GetByID(ctx, d.DepartmentID); err != nil {
			return err
		}
		d.CreatedAt = existing.CreatedAt
		return s.doctors.Update(ctx, d)
	})
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.doctors.GetByID(ctx, id); err != nil {
			return err
		}
		if s.schedules != nil {
			n, err := s.schedules.CountByDoctor(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("doctor %s still owns %d schedules: %w", id, n, apperr.ErrInvalidState)
			}
		}
		return s.doctors.Delete(ctx, id)
	})
}

func (s *Service) SearchDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	if p, ok := params["department_id"]; ok {
		if _, err := uuid.Parse(p); err != nil {
			return nil, 0, fmt.Errorf("invalid department_id: %w", apperr.ErrValidation)
		}
	}
	return s.doctors.Search(ctx, params, limit, offset)
}

// ListDoctors returns the requested doctors, or all doctors when ids is
// empty. Unknown ids yield ErrNotFound.
func (s *Service) ListDoctors(ctx context.Context, ids []uuid.UUID) ([]*Doctor, error) {
	docs, err := s.doctors.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		found := make(map[uuid.UUID]bool, len(docs))
		for _, d := range docs {
			found[d.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, fmt.Errorf("doctor %s: %w", id, apperr.ErrNotFound)
			}
		}
	}
	return docs, nil
}
