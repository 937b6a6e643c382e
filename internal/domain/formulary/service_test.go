package formulary

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

func newTestService() *Service {
	return NewService(NewRepoMem(), db.NewMemTransactor(), zerolog.Nop())
}

func seedDrug(t *testing.T, svc *Service, name string, stock int) *Drug {
	t.Helper()
	d := &Drug{Name: name, Price: decimal.RequireFromString("12.50"), Unit: "box", Stock: stock}
	if err := svc.CreateDrug(context.Background(), d); err != nil {
		t.Fatalf("CreateDrug: %v", err)
	}
	return d
}

func TestService_CreateDrug_Defaults(t *testing.T) {
	svc := newTestService()
	d := seedDrug(t, svc, "  Amoxicillin ", 50)
	if d.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if d.Name != "Amoxicillin" {
		t.Errorf("expected trimmed name, got %q", d.Name)
	}
	if d.Status != StatusEnabled {
		t.Errorf("expected enabled, got %s", d.Status)
	}
}

func TestService_CreateDrug_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tests := []struct {
		name string
		drug Drug
	}{
		{"no name", Drug{Unit: "box"}},
		{"no unit", Drug{Name: "Ibuprofen"}},
		{"negative price", Drug{Name: "Ibuprofen", Unit: "box", Price: decimal.NewFromInt(-1)}},
		{"negative stock", Drug{Name: "Ibuprofen", Unit: "box", Stock: -1}},
		{"bad status", Drug{Name: "Ibuprofen", Unit: "box", Status: "retired"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.drug
			if err := svc.CreateDrug(ctx, &d); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateDrug_DuplicateName(t *testing.T) {
	svc := newTestService()
	seedDrug(t, svc, "Ibuprofen", 10)
	d := &Drug{Name: "IBUPROFEN", Unit: "box"}
	if err := svc.CreateDrug(context.Background(), d); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestService_UpdateDrug(t *testing.T) {
	svc := newTestService()
	d := seedDrug(t, svc, "Cefixime", 30)
	price := decimal.RequireFromString("25")
	disabled := StatusDisabled

	got, err := svc.UpdateDrug(context.Background(), d.ID, DrugUpdate{Price: &price, Status: &disabled})
	if err != nil {
		t.Fatalf("UpdateDrug: %v", err)
	}
	if !got.Price.Equal(price) || got.Status != StatusDisabled || got.Stock != 30 {
		t.Errorf("unexpected drug %+v", got)
	}

	empty := "  "
	if _, err := svc.UpdateDrug(context.Background(), d.ID, DrugUpdate{Name: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateDrug(context.Background(), uuid.New(), DrugUpdate{Price: &price}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_AdjustStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d := seedDrug(t, svc, "Ibuprofen", 5)

	got, err := svc.AdjustStock(ctx, d.ID, -5)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if got.Stock != 0 {
		t.Errorf("expected stock 0, got %d", got.Stock)
	}
	if _, err := svc.AdjustStock(ctx, d.ID, -1); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state below zero, got %v", err)
	}
	if _, err := svc.AdjustStock(ctx, d.ID, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for zero delta, got %v", err)
	}

	got, err = svc.AdjustStock(ctx, d.ID, 20)
	if err != nil || got.Stock != 20 {
		t.Fatalf("restock: %v, %+v", err, got)
	}
}

func TestService_AdjustStock_DisabledDrug(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d := seedDrug(t, svc, "Cefixime", 30)
	disabled := StatusDisabled
	if _, err := svc.UpdateDrug(ctx, d.ID, DrugUpdate{Status: &disabled}); err != nil {
		t.Fatalf("UpdateDrug: %v", err)
	}

	if _, err := svc.AdjustStock(ctx, d.ID, -1); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
	got, err := svc.AdjustStock(ctx, d.ID, 10)
	if err != nil {
		t.Fatalf("restocking a disabled drug: %v", err)
	}
	if got.Stock != 40 {
		t.Errorf("expected stock 40, got %d", got.Stock)
	}
}

func TestService_SearchDrugs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	seedDrug(t, svc, "Amoxicillin", 50)
	seedDrug(t, svc, "Ibuprofen", 100)
	c := seedDrug(t, svc, "Cefixime", 30)
	disabled := StatusDisabled
	svc.UpdateDrug(ctx, c.ID, DrugUpdate{Status: &disabled})

	items, total, err := svc.SearchDrugs(ctx, map[string]string{"status": StatusEnabled}, 10, 0)
	if err != nil {
		t.Fatalf("SearchDrugs: %v", err)
	}
	if total != 2 || items[0].Name != "Amoxicillin" || items[1].Name != "Ibuprofen" {
		t.Errorf("unexpected result %d %v", total, items)
	}

	_, total, _ = svc.SearchDrugs(ctx, map[string]string{"name": "PROF"}, 10, 0)
	if total != 1 {
		t.Errorf("expected 1 match, got %d", total)
	}

	if _, _, err := svc.SearchDrugs(ctx, map[string]string{"status": "gone"}, 10, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_DeleteDrug(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d := seedDrug(t, svc, "Ibuprofen", 1)
	if err := svc.DeleteDrug(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDrug: %v", err)
	}
	if _, err := svc.GetDrug(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := svc.DeleteDrug(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}
