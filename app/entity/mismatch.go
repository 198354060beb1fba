package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMismatch is a charge the processor accepted but the backend failed to record.
type PaymentMismatch struct {
	ID uint64

	TabID           string
	ClientName      string
	PaymentIntentID string
	PaymentMethodID string

	Amount      decimal.Decimal
	Tier        *string
	PartnerCode *string

	Message  string
	Resolved bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
