package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/outpatient/ledger/internal/config"
	"github.com/outpatient/ledger/internal/domain/account"
	"github.com/outpatient/ledger/internal/domain/billing"
	"github.com/outpatient/ledger/internal/domain/directory"
	"github.com/outpatient/ledger/internal/domain/formulary"
	"github.com/outpatient/ledger/internal/domain/patient"
	"github.com/outpatient/ledger/internal/domain/prescription"
	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/domain/scheduling"
	"github.com/outpatient/ledger/internal/domain/settings"
	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/blobstore"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/internal/platform/events"
	"github.com/outpatient/ledger/internal/platform/middleware"
	"github.com/outpatient/ledger/internal/platform/sequence"
	"github.com/outpatient/ledger/internal/platform/validate"
)

const version = "0.1.0"

// app holds the wired services of one ledger process.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	pool       *pgxpool.Pool
	signingKey []byte

	directory     *directory.Service
	scheduling    *scheduling.Service
	settings      *settings.Service
	registrations *registration.Service
	billing       *billing.Service
	accounts      *account.Service
	prescriptions *prescription.Service
	formulary     *formulary.Service
	patients      *patient.Service

	closers []func()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveSigningKey returns the token signing key from AUTH_SIGNING_KEY or
// generates a random 32-byte key. The second return value is true when a
// random key was generated.
func resolveSigningKey(value string) ([]byte, bool, error) {
	if value != "" {
		if decoded, err := hex.DecodeString(value); err == nil && len(decoded) >= 32 {
			return decoded, false, nil
		}
		return []byte(value), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

type repositories struct {
	departments   directory.DepartmentRepository
	doctors       directory.DoctorRepository
	schedules     scheduling.ScheduleRepository
	settings      settings.Repository
	registrations registration.Repository
	payments      billing.Repository
	accounts      account.Repository
	prescriptions prescription.Repository
	drugs         formulary.Repository
	profiles      patient.Repository
	counter       sequence.Counter
	tx            db.Transactor
}

func memoryRepositories() repositories {
	return repositories{
		departments:   directory.NewDepartmentRepoMem(),
		doctors:       directory.NewDoctorRepoMem(),
		schedules:     scheduling.NewScheduleRepoMem(),
		settings:      settings.NewRepoMem(),
		registrations: registration.NewRepoMem(),
		payments:      billing.NewRepoMem(),
		accounts:      account.NewRepoMem(),
		prescriptions: prescription.NewRepoMem(),
		drugs:         formulary.NewRepoMem(),
		profiles:      patient.NewRepoMem(),
		counter:       sequence.NewMemoryCounter(),
		tx:            db.NewMemTransactor(),
	}
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		departments:   directory.NewDepartmentRepoPG(pool),
		doctors:       directory.NewDoctorRepoPG(pool),
		schedules:     scheduling.NewScheduleRepoPG(pool),
		settings:      settings.NewRepoPG(pool),
		registrations: registration.NewRepoPG(pool),
		payments:      billing.NewRepoPG(pool),
		accounts:      account.NewRepoPG(pool),
		prescriptions: prescription.NewRepoPG(pool),
		drugs:         formulary.NewRepoPG(pool),
		profiles:      patient.NewRepoPG(pool),
		counter:       sequence.NewPgCounter(pool),
		tx:            db.NewPgTransactor(pool),
	}
}

// buildApp connects the configured backends and wires the domain services.
// Optional backends (Redis, RabbitMQ, MinIO) are used only when configured.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	key, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random key, tokens will not survive a restart")
	}
	a.signingKey = key

	var repos repositories
	switch cfg.StorageDriver {
	case config.StorageMemory:
		repos = memoryRepositories()
		logger.Warn().Msg("using in-memory storage; data is lost on exit")
	default:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		repos = postgresRepositories(pool)
		logger.Info().Msg("connected to database")
	}

	if cfg.RedisURL != "" {
		client, err := sequence.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		repos.counter = sequence.NewRedisCounter(client, "")
		logger.Info().Msg("registration numbers issued from redis")
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		pub = p
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing ledger events to rabbitmq")
	}

	var receipts blobstore.BlobStore = blobstore.NewInMemoryBlobStore()
	if cfg.MinioEnabled() {
		store, err := blobstore.NewMinioBlobStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		receipts = store
		logger.Info().Str("bucket", cfg.MinioBucket).Msg("archiving receipts in object storage")
	}

	defaults := settings.Settings{
		RequireConfirmation:  cfg.RequireConfirmation,
		AppointmentRangeDays: cfg.AppointmentRangeDays,
	}

	a.directory = directory.NewService(repos.departments, repos.doctors, repos.tx)
	a.scheduling = scheduling.NewService(repos.schedules, a.directory, repos.tx, pub, logger)
	a.directory.SetScheduleCounter(a.scheduling)
	a.settings = settings.NewService(repos.settings, repos.tx, defaults)
	a.registrations = registration.NewService(repos.registrations, a.scheduling, a.settings,
		sequence.NewNumberer(repos.counter, loc), repos.tx, pub, logger, loc)
	a.billing = billing.NewService(repos.payments, a.registrations, a.scheduling, receipts, repos.tx, pub, logger)
	a.accounts = account.NewService(repos.accounts, a.directory,
		auth.NewIssuer(cfg.AuthIssuer, key, cfg.AuthTokenTTL), repos.tx, logger)
	a.prescriptions = prescription.NewService(repos.prescriptions, a.registrations, repos.tx, pub, logger)
	a.formulary = formulary.NewService(repos.drugs, repos.tx, logger)
	a.patients = patient.NewService(repos.profiles, a.registrations, a.prescriptions, repos.tx, logger, loc)

	return a, nil
}

// Close releases backend connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newServer builds the echo instance with the middleware chain and routes.
func (a *app) newServer() *echo.Echo {
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: a.signingKey,
		Skipper:    auth.AuthSkipper,
	}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth is active: requests without a token run as admin")
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}))

	directory.NewHandler(a.directory).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1)
	settings.NewHandler(a.settings).RegisterRoutes(apiV1)
	registration.NewHandler(a.registrations).RegisterRoutes(apiV1)
	billing.NewHandler(a.billing).RegisterRoutes(apiV1)
	account.NewHandler(a.accounts).RegisterRoutes(apiV1)
	prescription.NewHandler(a.prescriptions).RegisterRoutes(apiV1)
	formulary.NewHandler(a.formulary).RegisterRoutes(apiV1)
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)

	return e
}
