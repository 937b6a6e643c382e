package migrations

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/outpatient/ledger/internal/domain/scheduling"
)

func ledgerSQL(t *testing.T) string {
	t.Helper()
	raw, err := fs.ReadFile(FS, "001_ledger.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	return string(raw)
}

var timeSlotColumn = regexp.MustCompile(`(?m)^\s*time_slot\s+(.*)$`)

// The service accepts any label up to scheduling.MaxTimeSlotLen characters;
// the schedule and registration columns must store the same labels.
func TestLedgerSchema_TimeSlotColumns(t *testing.T) {
	cols := timeSlotColumn.FindAllStringSubmatch(ledgerSQL(t), -1)
	if len(cols) != 2 {
		t.Fatalf("expected time_slot on schedule and registration, found %d columns", len(cols))
	}
	want := fmt.Sprintf("VARCHAR(%d)", scheduling.MaxTimeSlotLen)
	for _, col := range cols {
		def := col[1]
		if !strings.HasPrefix(def, want) {
			t.Errorf("time_slot %q: expected %s", def, want)
		}
		if strings.Contains(strings.ToUpper(def), "CHECK") {
			t.Errorf("time_slot %q must not restrict labels", def)
		}
	}
}

func TestFS_HasMigrations(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 {
		t.Fatal("no embedded migrations")
	}
}

func TestFS_MigrationsOrdered(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"001_ledger.sql", "002_patient_records.sql"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, names)
	}
}
