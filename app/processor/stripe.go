package processor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
)

type StripeConfig struct {
	SecretKey   string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

type StripeProcessor struct {
	cfg StripeConfig
	api *client.API
}

func NewStripeProcessor(cfg StripeConfig) *StripeProcessor {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		backendCfg.URL = stripe.String(base)
	}

	return &StripeProcessor{
		cfg: cfg,
		api: client.New(cfg.SecretKey, &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}),
	}
}

func (p *StripeProcessor) ConfirmCardPayment(ctx context.Context, clientSecret string, card CardDetails) (*Confirmation, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, apiclient.NewProcessorError("", errors.New("stripe secret key is not configured"))
	}
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, apiclient.NewProcessorError("", err)
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(strings.TrimSpace(card.PaymentMethodID)),
	}
	params.Context = ctx

	intent, err := p.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, apiclient.NewProcessorError("", nativeStripeError(err))
	}

	result := &Confirmation{
		PaymentIntentID: intent.ID,
		PaymentMethodID: strings.TrimSpace(card.PaymentMethodID),
		Status:          string(intent.Status),
	}
	if intent.PaymentMethod != nil && intent.PaymentMethod.ID != "" {
		result.PaymentMethodID = intent.PaymentMethod.ID
	}
	return result, nil
}

// intentIDFromClientSecret extracts "pi_123" from "pi_123_secret_abc".
func intentIDFromClientSecret(clientSecret string) (string, error) {
	clientSecret = strings.TrimSpace(clientSecret)
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", errors.New("invalid payment intent client secret")
	}
	return clientSecret[:idx], nil
}

// stripe.Error renders as JSON; surface its human message instead.
func nativeStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && strings.TrimSpace(stripeErr.Msg) != "" {
		return errors.New(stripeErr.Msg)
	}
	return err
}
