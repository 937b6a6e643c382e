package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusRefunded = "refunded"
)

const (
	MethodCash   = "cash"
	MethodCard   = "card"
	MethodWechat = "wechat"
	MethodAlipay = "alipay"
)

var validMethods = map[string]bool{
	MethodCash: true, MethodCard: true, MethodWechat: true, MethodAlipay: true,
}

var validStatuses = map[string]bool{
	StatusPending: true, StatusPaid: true, StatusRefunded: true,
}

// Payment settles one registration. A registration has at most one payment
// that is not refunded.
type Payment struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	RegistrationID string          `db:"registration_id" json:"registration_id"`
	PatientName    string          `db:"patient_name" json:"patient_name"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	Status         string          `db:"status" json:"status"`
	CreateTime     time.Time       `db:"create_time" json:"create_time"`
	RefundTime     *time.Time      `db:"refund_time" json:"refund_time,omitempty"`
	RefundReason   *string         `db:"refund_reason" json:"refund_reason,omitempty"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
