package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/platform/blobstore"
)

const receiptContentType = "application/pdf"

// receiptKey names the archived receipt. A refund changes the key, so the
// paid and refunded receipts are kept side by side.
func receiptKey(p *Payment) string {
	return fmt.Sprintf("receipts/%s/%s.pdf", p.ID, p.Status)
}

// Receipt returns the PDF receipt for the payment, rendering and archiving
// it on first request.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) ([]byte, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key := receiptKey(p)

	if s.receipts != nil {
		data, _, err := s.receipts.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("receipt archive lookup failed")
		}
	}

	reg, err := s.regs.GetRegistration(ctx, p.RegistrationID)
	if err != nil {
		return nil, err
	}
	data, err := renderReceipt(p, reg)
	if err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", id, err)
	}

	if s.receipts != nil {
		tags := map[string]string{
			"payment_id":      p.ID.String(),
			"registration_id": p.RegistrationID,
			"status":          p.Status,
		}
		if _, err := s.receipts.Put(ctx, key, receiptContentType, data, tags); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to archive receipt")
		}
	}
	return data, nil
}

func renderReceipt(p *Payment, reg *registration.Registration) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(p.CreateTime)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Outpatient Registration Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, "Receipt No. "+p.ID.String(), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addRow(pdf, "Registration", reg.ID)
	addRow(pdf, "Patient", p.PatientName)
	addRow(pdf, "Visit date", reg.ScheduleDate+" "+reg.TimeSlot)
	addRow(pdf, "Payment method", p.PaymentMethod)
	addRow(pdf, "Paid at", p.CreateTime.Format("2006-01-02 15:04:05"))
	addRow(pdf, "Amount", p.Amount.StringFixed(2))
	addRow(pdf, "Status", p.Status)
	if p.RefundTime != nil {
		addRow(pdf, "Refunded at", p.RefundTime.Format("2006-01-02 15:04:05"))
	}
	if p.RefundReason != nil {
		addRow(pdf, "Refund reason", *p.RefundReason)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 10, "This is a computer generated receipt", "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 9, label, "1", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 9, value, "1", 1, "", false, 0, "")
}
