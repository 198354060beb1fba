package service

import (
	"context"
	"sync"

	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/processor"
)

type fakePaymentAPI struct {
	mu sync.Mutex

	createIntentFn   func(ctx context.Context, p billingapi.IntentParams) apiclient.Result[*entity.PaymentIntent]
	processPaymentFn func(ctx context.Context, p billingapi.ProcessPaymentParams) apiclient.Result[*entity.PaymentRecord]
	successFn        func(ctx context.Context, sessionID string) apiclient.Result[*entity.SuccessResult]

	intentCalls     int
	processCalls    []billingapi.ProcessPaymentParams
	successCalls    int
	invalidatedTags []string
}

func (f *fakePaymentAPI) CreatePaymentIntent(ctx context.Context, p billingapi.IntentParams) apiclient.Result[*entity.PaymentIntent] {
	f.mu.Lock()
	f.intentCalls++
	f.mu.Unlock()
	return f.createIntentFn(ctx, p)
}

func (f *fakePaymentAPI) ProcessPayment(ctx context.Context, p billingapi.ProcessPaymentParams) apiclient.Result[*entity.PaymentRecord] {
	f.mu.Lock()
	f.processCalls = append(f.processCalls, p)
	f.mu.Unlock()
	return f.processPaymentFn(ctx, p)
}

func (f *fakePaymentAPI) HandlePaymentSuccess(ctx context.Context, sessionID string) apiclient.Result[*entity.SuccessResult] {
	f.mu.Lock()
	f.successCalls++
	f.mu.Unlock()
	return f.successFn(ctx, sessionID)
}

func (f *fakePaymentAPI) Invalidate(_ string, tags ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidatedTags = append(f.invalidatedTags, tags...)
}

func (f *fakePaymentAPI) successCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.successCalls
}

type fakeProcessor struct {
	confirmFn func(ctx context.Context, clientSecret string, card processor.CardDetails) (*processor.Confirmation, error)
	calls     int
}

func (f *fakeProcessor) ConfirmCardPayment(ctx context.Context, clientSecret string, card processor.CardDetails) (*processor.Confirmation, error) {
	f.calls++
	return f.confirmFn(ctx, clientSecret, card)
}

type fakeLedger struct {
	items []*entity.PaymentMismatch
	err   error
}

func (f *fakeLedger) Create(_ context.Context, mismatch *entity.PaymentMismatch) error {
	if f.err != nil {
		return f.err
	}
	copyItem := *mismatch
	f.items = append(f.items, &copyItem)
	return nil
}
