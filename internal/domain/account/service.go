package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/outpatient/ledger/internal/domain/directory"
	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/db"
)

// MinPasswordLength is enforced on every new account.
const MinPasswordLength = 8

// Doctors resolves the directory entry a doctor account is bound to.
type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

type Service struct {
	repo    Repository
	doctors Doctors
	tokens  TokenIssuer
	tx      db.Transactor
	logger  zerolog.Logger
	cost    int
}

func NewService(repo Repository, doctors Doctors, tokens TokenIssuer, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, doctors: doctors, tokens: tokens, tx: tx, logger: logger, cost: bcrypt.DefaultCost}
}

// NewAccount is the input to CreateAccount.
type NewAccount struct {
	Username    string
	Password    string
	Role        string
	DisplayName string
	DoctorID    *uuid.UUID
}

func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("username is required: %w", apperr.ErrValidation)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, apperr.ErrValidation)
	}
	if Home(in.Role) == "" {
		return nil, fmt.Errorf("invalid role %q: %w", in.Role, apperr.ErrValidation)
	}
	if in.Role == auth.RoleDoctor && in.DoctorID == nil {
		return nil, fmt.Errorf("doctor accounts need a doctor_id: %w", apperr.ErrValidation)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &Account{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		DisplayName:  in.DisplayName,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if in.Role == auth.RoleDoctor {
			doc, err := s.doctors.GetDoctor(ctx, *in.DoctorID)
			if err != nil {
				return err
			}
			a.DoctorID = &doc.ID
			a.DepartmentID = &doc.DepartmentID
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", a.Role).Msg("account created")
	return a, nil
}

// LoginResult is returned on a successful login. Home is the landing area
// the client should route the user to.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Home      string    `json:"home"`
}

var errBadCredentials = fmt.Errorf("invalid username or password: %w", apperr.ErrUnauthorized)

// Login checks the password and issues a token carrying the account's role.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	a, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", a.Username).Msg("failed login attempt")
		return nil, errBadCredentials
	}

	id := auth.Identity{Subject: a.ID.String(), Roles: []string{a.Role}, Name: a.DisplayName}
	if a.DoctorID != nil {
		id.DoctorID = a.DoctorID.String()
	}
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Role: a.Role, Name: a.DisplayName, Home: Home(a.Role)}, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}
