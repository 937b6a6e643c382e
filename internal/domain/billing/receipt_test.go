package billing

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/domain/registration"
)

func TestReceiptKey_ChangesWithStatus(t *testing.T) {
	p := &Payment{ID: uuid.New(), Status: StatusPaid}
	paid := receiptKey(p)
	p.Status = StatusRefunded
	refunded := receiptKey(p)

	if paid == refunded {
		t.Fatalf("expected distinct keys, both %s", paid)
	}
	want := "receipts/" + p.ID.String() + "/refunded.pdf"
	if refunded != want {
		t.Errorf("expected %s, got %s", want, refunded)
	}
}

func TestRenderReceipt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	reason := "doctor unavailable"
	p := &Payment{
		ID:             uuid.New(),
		RegistrationID: "GH20240301000001",
		PatientName:    "Li Lei",
		Amount:         decimal.RequireFromString("50.00"),
		PaymentMethod:  MethodCash,
		Status:         StatusRefunded,
		CreateTime:     now,
		RefundTime:     &now,
		RefundReason:   &reason,
	}
	reg := &registration.Registration{
		ID:           "GH20240301000001",
		PatientName:  "Li Lei",
		ScheduleDate: "2024-03-01",
		TimeSlot:     "morning",
		Status:       registration.StatusRefunded,
	}

	data, err := renderReceipt(p, reg)
	if err != nil {
		t.Fatalf("renderReceipt: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("expected a PDF document, got prefix %q", data[:8])
	}
}
