package billingapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
)

const (
	msgCreateIntent    = "Failed to create payment intent"
	msgCheckoutSession = "Failed to create checkout session"
	msgProcessPayment  = "Failed to process payment"
	msgPaymentStatus   = "Failed to load payment status"
	msgInvoices        = "Failed to load invoices"
	msgPaymentSuccess  = "Failed to verify payment"

	msgAmountTooLow = "Amount must be at least 1"
)

var minAmount = decimal.NewFromInt(1)

func init() {
	// the backend reads money fields as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type backend interface {
	Do(ctx context.Context, req apiclient.Request, out any) *apiclient.Error
}

type IntentParams struct {
	Amount      decimal.Decimal
	ClientName  string
	PartnerCode *string
}

type CheckoutSessionParams struct {
	Amount      decimal.Decimal
	ClientName  string
	Tier        *string
	PartnerCode *string
	PaymentType string
}

type ProcessPaymentParams struct {
	PaymentMethodID string
	Amount          decimal.Decimal
	ClientName      string
	PartnerCode     *string
	Tier            *string
}

// API exposes the billing backend's payment endpoints as typed operations.
type API struct {
	backend backend
	cache   *viewCache
	logger  logrus.FieldLogger
}

func New(b backend, cacheTTL time.Duration) *API {
	return &API{
		backend: b,
		cache:   newViewCache(cacheTTL),
		logger:  factory.NewModuleLogger("billing-api"),
	}
}

func (a *API) CreatePaymentIntent(ctx context.Context, p IntentParams) apiclient.Result[*entity.PaymentIntent] {
	if p.Amount.LessThan(minAmount) {
		return apiclient.Fail[*entity.PaymentIntent](apiclient.NewValidationError(msgAmountTooLow))
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return apiclient.Fail[*entity.PaymentIntent](apiclient.NewValidationError("client_name is required"))
	}

	body := struct {
		Amount      decimal.Decimal `json:"amount"`
		ClientName  string          `json:"client_name"`
		PartnerCode *string         `json:"partner_code,omitempty"`
	}{p.Amount, strings.TrimSpace(p.ClientName), normalizeOptional(p.PartnerCode)}

	var out entity.PaymentIntent
	if err := a.backend.Do(ctx, apiclient.Request{
		Method:         http.MethodPost,
		Path:           "/payments/create-intent",
		Body:           body,
		Operation:      "create_intent",
		DefaultMessage: msgCreateIntent,
	}, &out); err != nil {
		return apiclient.Fail[*entity.PaymentIntent](err)
	}
	return apiclient.Ok(&out)
}

func (a *API) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) apiclient.Result[*entity.CheckoutSession] {
	if p.Amount.LessThan(minAmount) {
		return apiclient.Fail[*entity.CheckoutSession](apiclient.NewValidationError(msgAmountTooLow))
	}

	body := struct {
		Amount      decimal.Decimal `json:"amount"`
		ClientName  string          `json:"client_name"`
		Tier        *string         `json:"tier,omitempty"`
		PartnerCode *string         `json:"partner_code,omitempty"`
		PaymentType string          `json:"payment_type"`
	}{p.Amount, strings.TrimSpace(p.ClientName), normalizeOptional(p.Tier), normalizeOptional(p.PartnerCode), strings.TrimSpace(p.PaymentType)}

	var out entity.CheckoutSession
	if err := a.backend.Do(ctx, apiclient.Request{
		Method:         http.MethodPost,
		Path:           "/payments/create-checkout-session",
		Body:           body,
		Operation:      "create_checkout_session",
		DefaultMessage: msgCheckoutSession,
	}, &out); err != nil {
		return apiclient.Fail[*entity.CheckoutSession](err)
	}
	return apiclient.Ok(&out)
}

// ProcessPayment asks the backend to persist a processor-confirmed payment and drops
// the client's cached status, invoice and subscription views.
func (a *API) ProcessPayment(ctx context.Context, p ProcessPaymentParams) apiclient.Result[*entity.PaymentRecord] {
	if strings.TrimSpace(p.PaymentMethodID) == "" {
		return apiclient.Fail[*entity.PaymentRecord](apiclient.NewValidationError("payment_method_id is required"))
	}

	clientName := strings.TrimSpace(p.ClientName)
	body := struct {
		PaymentMethodID string          `json:"payment_method_id"`
		Amount          decimal.Decimal `json:"amount"`
		ClientName      string          `json:"client_name"`
		PartnerCode     *string         `json:"partner_code,omitempty"`
		Tier            *string         `json:"tier,omitempty"`
	}{strings.TrimSpace(p.PaymentMethodID), p.Amount, clientName, normalizeOptional(p.PartnerCode), normalizeOptional(p.Tier)}

	var out entity.PaymentRecord
	if err := a.backend.Do(ctx, apiclient.Request{
		Method:         http.MethodPost,
		Path:           "/payments/process",
		Body:           body,
		Operation:      "process_payment",
		DefaultMessage: msgProcessPayment,
	}, &out); err != nil {
		return apiclient.Fail[*entity.PaymentRecord](err)
	}

	a.Invalidate(clientName, TagPaymentStatus, TagInvoice, TagSubscription)
	return apiclient.Ok(&out)
}

func (a *API) GetPaymentStatus(ctx context.Context, clientName string) apiclient.Result[*entity.PaymentStatus] {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return apiclient.Fail[*entity.PaymentStatus](apiclient.NewValidationError("client_name is required"))
	}

	return cached(ctx, a.cache, TagPaymentStatus, clientName, func() apiclient.Result[*entity.PaymentStatus] {
		var out entity.PaymentStatus
		if err := a.backend.Do(ctx, apiclient.Request{
			Method:         http.MethodGet,
			Path:           "/payments/status/" + url.PathEscape(clientName),
			Operation:      "payment_status",
			DefaultMessage: msgPaymentStatus,
		}, &out); err != nil {
			return apiclient.Fail[*entity.PaymentStatus](err)
		}
		return apiclient.Ok(&out)
	})
}

func (a *API) GetInvoices(ctx context.Context, clientName string) apiclient.Result[[]*entity.PaymentRecord] {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return apiclient.Fail[[]*entity.PaymentRecord](apiclient.NewValidationError("client_name is required"))
	}

	return cached(ctx, a.cache, TagInvoice, clientName, func() apiclient.Result[[]*entity.PaymentRecord] {
		out := make([]*entity.PaymentRecord, 0)
		if err := a.backend.Do(ctx, apiclient.Request{
			Method:         http.MethodGet,
			Path:           "/payments/invoices/" + url.PathEscape(clientName),
			Operation:      "invoices",
			DefaultMessage: msgInvoices,
		}, &out); err != nil {
			return apiclient.Fail[[]*entity.PaymentRecord](err)
		}
		return apiclient.Ok(out)
	})
}

func (a *API) HandlePaymentSuccess(ctx context.Context, sessionID string) apiclient.Result[*entity.SuccessResult] {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return apiclient.Fail[*entity.SuccessResult](apiclient.NewValidationError("session_id is required"))
	}

	var out entity.SuccessResult
	if err := a.backend.Do(ctx, apiclient.Request{
		Method:         http.MethodGet,
		Path:           "/payments/success",
		Query:          url.Values{"session_id": []string{sessionID}},
		Operation:      "payment_success",
		DefaultMessage: msgPaymentSuccess,
	}, &out); err != nil {
		return apiclient.Fail[*entity.SuccessResult](err)
	}
	return apiclient.Ok(&out)
}

// Invalidate drops cached views for the given tags. An empty clientName drops the
// tags for every client.
func (a *API) Invalidate(clientName string, tags ...string) {
	clientName = strings.TrimSpace(clientName)
	for _, tag := range tags {
		if dropped := a.cache.invalidate(tag, clientName); dropped > 0 {
			a.logger.WithField("tag", tag).WithField("client_name", clientName).WithField("dropped", dropped).Debug("Invalidated cached views")
		}
	}
}

// SweepCache drops expired cached views.
func (a *API) SweepCache() int {
	return a.cache.sweep()
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
