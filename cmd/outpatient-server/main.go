package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/outpatient/ledger/internal/config"
	"github.com/outpatient/ledger/internal/domain/account"
	"github.com/outpatient/ledger/internal/platform/db"
	"github.com/outpatient/ledger/migrations"
)

func main() {
	root := &cobra.Command{
		Use:          "outpatient-server",
		Short:        "Outpatient registration and billing ledger",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), slotsCmd(), accountCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp runs fn against a fully wired app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := buildApp(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ledger API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

// withMigrator opens a short-lived pool for the migrate subcommands. It
// does not build the app, so a broken schema cannot block a fix.
func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func migrateCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect ledger schema migrations",
	}
	cmd.PersistentFlags().StringVar(&schema, "schema", db.DefaultSchema, "Target schema")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", schema, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migration(s) applied\n", schema, n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
				for _, s := range statuses {
					state, at := "pending", ""
					if s.Applied {
						state = "applied"
						if s.AppliedAt != nil {
							at = s.AppliedAt.Format(time.DateTime)
						}
					}
					if s.Modified {
						state = "modified"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, state, at)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage schedule slots",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Create the standard morning/afternoon/evening slots for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			raw, _ := cmd.Flags().GetStringSlice("doctor")
			if date == "" {
				return fmt.Errorf("--date is required")
			}
			ids := make([]uuid.UUID, 0, len(raw))
			for _, r := range raw {
				id, err := uuid.Parse(r)
				if err != nil {
					return fmt.Errorf("invalid doctor id %q: %w", r, err)
				}
				ids = append(ids, id)
			}

			return withApp(func(ctx context.Context, a *app) error {
				created, err := a.scheduling.GenerateSlots(ctx, date, ids)
				if err != nil {
					return err
				}
				fmt.Printf("Created %d schedule(s) for %s.\n", len(created), date)
				for _, s := range created {
					fmt.Printf("  %s  doctor=%s  %-9s  capacity=%d  amount=%s\n",
						s.ID, s.DoctorID, s.TimeSlot, s.MaxPatients, s.Amount.StringFixed(2))
				}
				return nil
			})
		},
	}
	generateCmd.Flags().String("date", "", "Schedule date (YYYY-MM-DD)")
	generateCmd.Flags().StringSlice("doctor", nil, "Doctor id; repeat to select several (default: all doctors)")
	cmd.AddCommand(generateCmd)

	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage login accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a login account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			name, _ := cmd.Flags().GetString("name")
			doctor, _ := cmd.Flags().GetString("doctor")
			if password == "" {
				password = os.Getenv("ACCOUNT_PASSWORD")
			}

			in := account.NewAccount{Username: username, Password: password, Role: role, DisplayName: name}
			if doctor != "" {
				id, err := uuid.Parse(doctor)
				if err != nil {
					return fmt.Errorf("invalid doctor id %q: %w", doctor, err)
				}
				in.DoctorID = &id
			}

			return withApp(func(ctx context.Context, a *app) error {
				acc, err := a.accounts.CreateAccount(ctx, in)
				if err != nil {
					return err
				}
				fmt.Printf("Account %s created (id=%s, role=%s).\n", acc.Username, acc.ID, acc.Role)
				return nil
			})
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password (or set ACCOUNT_PASSWORD)")
	createCmd.Flags().String("role", "patient", "admin, doctor or patient")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("doctor", "", "Doctor id, required for doctor accounts")
	cmd.AddCommand(createCmd)

	return cmd
}

const shutdownGrace = 10 * time.Second

func runServer(migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialise ledger: %w", err)
	}
	defer a.Close()

	if migrate && a.pool != nil {
		n, err := db.NewMigrator(a.pool, migrations.FS).Up(ctx, db.DefaultSchema)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("schema up to date")
	}

	e := a.newServer()
	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Str("auth", cfg.ResolvedAuthMode()).Msg("ledger listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
