package processor

import (
	"context"
	"strings"
)

// CardDetails is what the payment-collection widget hands over once the card is
// captured: a processor-side tokenized payment method.
type CardDetails struct {
	PaymentMethodID string
}

func (c CardDetails) Captured() bool {
	return strings.TrimSpace(c.PaymentMethodID) != ""
}

const StatusSucceeded = "succeeded"

type Confirmation struct {
	PaymentIntentID string
	PaymentMethodID string
	Status          string
}

func (c *Confirmation) Succeeded() bool {
	return c != nil && c.Status == StatusSucceeded
}

// Processor confirms a charge with the external payment processor.
type Processor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card CardDetails) (*Confirmation, error)
}
