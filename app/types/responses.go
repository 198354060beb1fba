package types

import (
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// IntentSummary is the price breakdown shown before card entry. The client secret
// stays server-side.
type IntentSummary struct {
	Amount      decimal.Decimal `json:"amount"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TaxType     string          `json:"tax_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type CheckoutFormView struct {
	Amount      decimal.Decimal `json:"amount"`
	Tier        *string         `json:"tier,omitempty"`
	ClientName  string          `json:"client_name"`
	PartnerCode *string         `json:"partner_code,omitempty"`
}

type CheckoutError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type CheckoutResponse struct {
	State      string                `json:"state"`
	Busy       bool                  `json:"busy"`
	Form       *CheckoutFormView     `json:"form,omitempty"`
	Intent     *IntentSummary        `json:"intent,omitempty"`
	Payment    *entity.PaymentRecord `json:"payment,omitempty"`
	Error      *CheckoutError        `json:"error,omitempty"`
	RedirectTo string                `json:"redirect_to,omitempty"`
}

type SuccessResponse struct {
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

type InvoicesResponse struct {
	Invoices []*entity.PaymentRecord `json:"invoices"`
}

type PaymentCompletedResponse struct {
	PaymentCompleted bool `json:"payment_completed"`
}
