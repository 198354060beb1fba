package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaxType string

const (
	TaxTypeGST TaxType = "GST"
	TaxTypeVAT TaxType = "VAT"
)

type PaymentRecordStatus string

const (
	PaymentRecordSucceeded PaymentRecordStatus = "succeeded"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordPending   PaymentRecordStatus = "pending"
)

// PaymentIntent is the server-computed price breakdown for one checkout attempt.
// It only lives in memory for the duration of that attempt.
type PaymentIntent struct {
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Discount     decimal.Decimal `json:"discount"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	TaxType      TaxType         `json:"tax_type"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

type PaymentRecord struct {
	PaymentID     string              `json:"payment_id"`
	ClientName    string              `json:"client_name"`
	Amount        decimal.Decimal     `json:"amount"`
	Discount      decimal.Decimal     `json:"discount"`
	FinalAmount   decimal.Decimal     `json:"final_amount"`
	TaxAmount     decimal.Decimal     `json:"tax_amount"`
	TaxType       TaxType             `json:"tax_type"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PartnerCode   *string             `json:"partner_code,omitempty"`
	PaymentStatus PaymentRecordStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
	SessionID     *string             `json:"session_id,omitempty"`
	PaymentType   *string             `json:"payment_type,omitempty"`
	Tier          *string             `json:"tier,omitempty"`
}

type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type PaymentStatus struct {
	PaymentStatus     string `json:"payment_status"`
	SubscriptionLevel string `json:"subscription_level"`
	CanRunProfiling   bool   `json:"can_run_profiling"`
}

type SuccessResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
