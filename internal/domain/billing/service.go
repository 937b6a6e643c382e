package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/domain/scheduling"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/blobstore"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/internal/platform/events"
)

// Registrations is the registration lifecycle as seen from billing.
type Registrations interface {
	GetRegistration(ctx context.Context, id string) (*registration.Registration, error)
	LockRegistration(ctx context.Context, id string) (*registration.Registration, error)
	CreateRegistration(ctx context.Context, in registration.NewRegistration) (*registration.Registration, error)
	MarkRefunded(ctx context.Context, id string) (*registration.Registration, bool, error)
}

// Schedules resolves the price of a registration's schedule.
type Schedules interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*scheduling.Schedule, error)
}

type Service struct {
	repo      Repository
	regs      Registrations
	schedules Schedules
	receipts  blobstore.BlobStore
	tx        db.Transactor
	events    events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, regs Registrations, schedules Schedules, receipts blobstore.BlobStore, tx db.Transactor, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo: repo, regs: regs, schedules: schedules, receipts: receipts,
		tx: tx, events: pub, logger: logger, now: time.Now,
	}
}

// NewPayment is the input to CreatePayment. A nil Amount charges the
// schedule's price.
type NewPayment struct {
	RegistrationID string
	Amount         *decimal.Decimal
	PaymentMethod  string
}

func validatePayment(in NewPayment) error {
	if strings.TrimSpace(in.RegistrationID) == "" {
		return fmt.Errorf("registration_id is required: %w", apperr.ErrValidation)
	}
	if !validMethods[in.PaymentMethod] {
		return fmt.Errorf("invalid payment method %q: %w", in.PaymentMethod, apperr.ErrValidation)
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %w", apperr.ErrValidation)
	}
	return nil
}

// CreatePayment records a paid settlement for an active registration.
func (s *Service) CreatePayment(ctx context.Context, in NewPayment) (*Payment, error) {
	if err := validatePayment(in); err != nil {
		return nil, err
	}
	var p *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.createPayment(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("payment_id", p.ID.String()).Str("registration_id", p.RegistrationID).
		Str("amount", p.Amount.StringFixed(2)).Msg("payment recorded")
	events.Emit(ctx, s.events, s.logger, events.New(events.PaymentCreated, p))
	return p, nil
}

// createPayment must run inside a transaction. The registration row stays
// locked until commit so it cannot be cancelled under the new payment.
func (s *Service) createPayment(ctx context.Context, in NewPayment) (*Payment, error) {
	reg, err := s.regs.LockRegistration(ctx, in.RegistrationID)
	if err != nil {
		return nil, err
	}
	if !reg.Active() {
		return nil, fmt.Errorf("registration %s is %s and cannot be paid: %w", reg.ID, reg.Status, apperr.ErrInvalidState)
	}
	if _, err := s.repo.FindOpenByRegistration(ctx, reg.ID); err == nil {
		return nil, fmt.Errorf("registration %s already has a payment: %w", reg.ID, apperr.ErrDuplicatePayment)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	var amount decimal.Decimal
	if in.Amount != nil {
		amount = *in.Amount
	} else {
		sched, err := s.schedules.GetSchedule(ctx, reg.ScheduleID)
		if err != nil {
			return nil, err
		}
		amount = sched.Amount
	}

	p := &Payment{
		RegistrationID: reg.ID,
		PatientName:    reg.PatientName,
		Amount:         amount,
		PaymentMethod:  in.PaymentMethod,
		Status:         StatusPaid,
		CreateTime:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RefundPayment refunds the payment, marks its registration refunded and
// releases the schedule capacity in one transaction.
func (s *Service) RefundPayment(ctx context.Context, id uuid.UUID, reason string) (*Payment, error) {
	var (
		p       *Payment
		reg     *registration.Registration
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusRefunded {
			return fmt.Errorf("payment %s: %w", id, apperr.ErrAlreadyRefunded)
		}
		now := s.now().UTC()
		p.Status = StatusRefunded
		p.RefundTime = &now
		if reason = strings.TrimSpace(reason); reason != "" {
			p.RefundReason = &reason
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		reg, changed, err = s.regs.MarkRefunded(ctx, p.RegistrationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("payment_id", id.String()).Str("registration_id", p.RegistrationID).Msg("payment refunded")
	evts := []events.Event{events.New(events.PaymentRefunded, p)}
	if changed {
		evts = append(evts, events.New(events.RegistrationRefunded, reg))
	}
	events.Emit(ctx, s.events, s.logger, evts...)
	return p, nil
}

// Checkout books a slot and pays for it in one step. Either both records
// are written or neither is.
type Checkout struct {
	ScheduleID    uuid.UUID
	PatientID     string
	PatientName   string
	PaymentMethod string
}

func (s *Service) Checkout(ctx context.Context, in Checkout) (*registration.Registration, *Payment, error) {
	if !validMethods[in.PaymentMethod] {
		return nil, nil, fmt.Errorf("invalid payment method %q: %w", in.PaymentMethod, apperr.ErrValidation)
	}
	var (
		reg *registration.Registration
		p   *Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.regs.CreateRegistration(ctx, registration.NewRegistration{
			ScheduleID:  in.ScheduleID,
			PatientID:   in.PatientID,
			PatientName: in.PatientName,
		})
		if err != nil {
			return err
		}
		p, err = s.createPayment(ctx, NewPayment{RegistrationID: reg.ID, PaymentMethod: in.PaymentMethod})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	events.Emit(ctx, s.events, s.logger,
		events.New(events.RegistrationCreated, reg),
		events.New(events.PaymentCreated, p))
	return reg, p, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SearchPayments(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	if p, ok := params["status"]; ok && !validStatuses[p] {
		return nil, 0, fmt.Errorf("invalid payment status %q: %w", p, apperr.ErrValidation)
	}
	if p, ok := params["payment_method"]; ok && !validMethods[p] {
		return nil, 0, fmt.Errorf("invalid payment method %q: %w", p, apperr.ErrValidation)
	}
	return s.repo.Search(ctx, params, limit, offset)
}
