package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one versioned SQL file, e.g. 001_ledger.sql.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
	// Modified is set when the file no longer matches what was applied.
	Modified bool
}

// DefaultSchema is where the ledger tables live unless configured otherwise.
const DefaultSchema = "public"

// migrationLockID keys the advisory lock that serialises concurrent
// migrators, e.g. several replicas started with serve --migrate.
const migrationLockID int64 = 0x6c6564676572 // "ledger"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Migrator applies the embedded schema files to a Postgres schema and
// tracks them in <schema>._migrations.
type Migrator struct {
	pool *pgxpool.Pool
	src  fs.FS
}

// NewMigrator reads migration files from the root of src.
func NewMigrator(pool *pgxpool.Pool, src fs.FS) *Migrator {
	return &Migrator{pool: pool, src: src}
}

func checkSchema(schema string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return nil
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// parseVersion extracts the numeric prefix of name, reporting false for
// files that are not migrations.
func parseVersion(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// LoadMigrations returns the migrations in src ordered by version. Files
// without a numeric prefix are skipped; two files with the same version
// are an error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, ok := parseVersion(entry.Name())
		if !ok {
			continue
		}
		content, err := fs.ReadFile(m.src, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{
			Version:  version,
			Name:     entry.Name(),
			SQL:      string(content),
			Checksum: checksum(string(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s",
				out[i].Version, out[i-1].Name, out[i].Name)
		}
	}
	return out, nil
}

type appliedMigration struct {
	checksum  string
	appliedAt time.Time
}

func ensureTable(ctx context.Context, q Querier, schema string) error {
	_, err := q.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s._migrations (
			version    INTEGER PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			checksum   CHAR(64) NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, schema))
	if err != nil {
		return fmt.Errorf("create _migrations table in %s: %w", schema, err)
	}
	return nil
}

func loadApplied(ctx context.Context, q Querier, schema string) (map[int]appliedMigration, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT version, checksum, applied_at FROM %s._migrations`, schema))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations in %s: %w", schema, err)
	}
	defer rows.Close()

	applied := make(map[int]appliedMigration)
	for rows.Next() {
		var v int
		var a appliedMigration
		if err := rows.Scan(&v, &a.checksum, &a.appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[v] = a
	}
	return applied, rows.Err()
}

// pending returns the migrations not yet applied. An applied migration
// whose file changed since is an error: the schema would silently diverge.
func pending(migrations []Migration, applied map[int]appliedMigration) ([]Migration, error) {
	var out []Migration
	for _, mig := range migrations {
		a, ok := applied[mig.Version]
		if !ok {
			out = append(out, mig)
			continue
		}
		if a.checksum != "" && a.checksum != mig.Checksum {
			return nil, fmt.Errorf("migration %s was modified after it was applied", mig.Name)
		}
	}
	return out, nil
}

// Up applies every pending migration in one transaction holding an
// advisory lock, and returns how many were applied.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	if err := checkSchema(schema); err != nil {
		return 0, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	err = pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
		if err := ensureTable(ctx, tx, schema); err != nil {
			return err
		}
		applied, err := loadApplied(ctx, tx, schema)
		if err != nil {
			return err
		}
		todo, err := pending(migrations, applied)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %s`, schema)); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		for _, mig := range todo {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s._migrations (version, name, checksum) VALUES ($1, $2, $3)`, schema),
				mig.Version, mig.Name, mig.Checksum,
			); err != nil {
				return fmt.Errorf("record migration %s: %w", mig.Name, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Status lists every known migration with whether and when it was applied.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	if err := ensureTable(ctx, m.pool, schema); err != nil {
		return nil, err
	}
	applied, err := loadApplied(ctx, m.pool, schema)
	if err != nil {
		return nil, err
	}
	return statusOf(migrations, applied), nil
}

func statusOf(migrations []Migration, applied map[int]appliedMigration) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if a, ok := applied[mig.Version]; ok {
			at := a.appliedAt
			st.Applied = true
			st.AppliedAt = &at
			st.Modified = a.checksum != "" && a.checksum != mig.Checksum
		}
		out = append(out, st)
	}
	return out
}
