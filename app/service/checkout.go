package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
	"github.com/vibast-solutions/ms-go-billing-bff/app/metrics"
	"github.com/vibast-solutions/ms-go-billing-bff/app/processor"
	"github.com/vibast-solutions/ms-go-billing-bff/app/store"
)

type CheckoutState string

const (
	CheckoutIdle                CheckoutState = "idle"
	CheckoutIntentCreated       CheckoutState = "intent_created"
	CheckoutConfirming          CheckoutState = "confirming"
	CheckoutSucceeded           CheckoutState = "succeeded"
	CheckoutFailed              CheckoutState = "failed"
	CheckoutPersistenceMismatch CheckoutState = "persistence_mismatch"
)

const (
	DefaultSuccessRedirect = "/account?payment=success"

	msgIntentFailed      = "Failed to create payment intent"
	msgPaymentFailed     = "Payment failed. Please try again."
	msgPaymentIncomplete = "Payment was not completed"
	msgRecordFailed      = "Your payment was charged but could not be recorded. Please contact support."
	msgCardNotCaptured   = "Please enter your card details"
	msgNoActiveIntent    = "No active payment. Please enter an amount first."
)

type CheckoutForm struct {
	Amount      decimal.Decimal
	Tier        *string
	ClientName  string
	PartnerCode *string
}

// CheckoutSnapshot is a read-only view of a flow at one point in time.
type CheckoutSnapshot struct {
	TabID        string
	State        CheckoutState
	Busy         bool
	Form         *CheckoutForm
	Intent       *entity.PaymentIntent
	Payment      *entity.PaymentRecord
	ErrorKind    apiclient.ErrorKind
	ErrorMessage string
	RedirectTo   string
}

type paymentAPI interface {
	CreatePaymentIntent(ctx context.Context, p billingapi.IntentParams) apiclient.Result[*entity.PaymentIntent]
	ProcessPayment(ctx context.Context, p billingapi.ProcessPaymentParams) apiclient.Result[*entity.PaymentRecord]
}

type cardProcessor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card processor.CardDetails) (*processor.Confirmation, error)
}

type mismatchLedger interface {
	Create(ctx context.Context, mismatch *entity.PaymentMismatch) error
}

// CheckoutService owns one CheckoutFlow per browser tab.
type CheckoutService struct {
	api             paymentAPI
	processor       cardProcessor
	ledger          mismatchLedger
	successRedirect string
	logger          logrus.FieldLogger
	now             func() time.Time

	mu    sync.Mutex
	flows map[string]*CheckoutFlow
}

// NewCheckoutService wires the checkout flows. ledger may be nil, in which case
// mismatches are only logged.
func NewCheckoutService(api paymentAPI, proc cardProcessor, ledger mismatchLedger, successRedirect string) *CheckoutService {
	successRedirect = strings.TrimSpace(successRedirect)
	if successRedirect == "" {
		successRedirect = DefaultSuccessRedirect
	}

	return &CheckoutService{
		api:             api,
		processor:       proc,
		ledger:          ledger,
		successRedirect: successRedirect,
		logger:          factory.NewModuleLogger("checkout"),
		now:             time.Now,
		flows:           make(map[string]*CheckoutFlow),
	}
}

// Flow returns the tab's flow, starting a fresh one in Idle if none is open.
func (s *CheckoutService) Flow(tabID string) (*CheckoutFlow, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return nil, ErrTabRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[tabID]
	if !ok {
		flow = &CheckoutFlow{
			tabID:  tabID,
			svc:    s,
			store:  store.NewIntentStore(),
			logger: s.logger.WithField("tab_id", tabID),
			state:  CheckoutIdle,
		}
		s.flows[tabID] = flow
	}
	flow.touch(s.now())
	return flow, nil
}

// Close tears down the tab's flow. Closing a tab without a flow is a no-op.
func (s *CheckoutService) Close(tabID string) error {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return ErrTabRequired
	}

	s.mu.Lock()
	flow, ok := s.flows[tabID]
	delete(s.flows, tabID)
	s.mu.Unlock()

	if ok {
		flow.Teardown()
	}
	return nil
}

// SweepIdle tears down flows untouched for longer than maxIdle, skipping busy ones.
func (s *CheckoutService) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	stale := make([]*CheckoutFlow, 0)
	for tabID, flow := range s.flows {
		if flow.idleSince(cutoff) {
			delete(s.flows, tabID)
			stale = append(stale, flow)
		}
	}
	s.mu.Unlock()

	for _, flow := range stale {
		flow.Teardown()
	}
	return len(stale)
}

func (s *CheckoutService) ActiveFlows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// CheckoutFlow is the state machine of a single checkout attempt:
// Idle -> IntentCreated -> Confirming -> Succeeded | Failed | PersistenceMismatch.
// Triggers are serialised; a trigger while another is in flight is rejected.
type CheckoutFlow struct {
	tabID  string
	svc    *CheckoutService
	store  *store.IntentStore
	logger logrus.FieldLogger

	mu         sync.Mutex
	state      CheckoutState
	form       *CheckoutForm
	payment    *entity.PaymentRecord
	errKind    apiclient.ErrorKind
	errMessage string
	redirectTo string
	busy       bool
	closed     bool
	lastSeen   time.Time
}

func (f *CheckoutFlow) Snapshot() CheckoutSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// SubmitAmount creates the payment intent. On failure the flow stays Idle.
func (f *CheckoutFlow) SubmitAmount(ctx context.Context, form CheckoutForm) (CheckoutSnapshot, error) {
	f.mu.Lock()
	if err := f.beginLocked(); err != nil {
		defer f.mu.Unlock()
		return f.snapshotLocked(), err
	}
	if f.state != CheckoutIdle {
		defer f.mu.Unlock()
		return f.snapshotLocked(), ErrInvalidTransition
	}
	f.busy = true
	f.clearErrorLocked()
	f.mu.Unlock()

	result := f.svc.api.CreatePaymentIntent(ctx, billingapi.IntentParams{
		Amount:      form.Amount,
		ClientName:  form.ClientName,
		PartnerCode: form.PartnerCode,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.closed {
		return f.snapshotLocked(), ErrFlowClosed
	}
	if !result.OK() {
		f.setErrorLocked(result.Err(), msgIntentFailed)
		return f.snapshotLocked(), result.Err()
	}

	f.store.Set(result.Value())
	formCopy := form
	f.form = &formCopy
	f.transitionLocked(CheckoutIntentCreated)
	return f.snapshotLocked(), nil
}

// SubmitCard confirms the charge with the processor and then records it with the
// backend. It is accepted from IntentCreated and, to retry a declined card, Failed.
func (f *CheckoutFlow) SubmitCard(ctx context.Context, card processor.CardDetails) (CheckoutSnapshot, error) {
	f.mu.Lock()
	if err := f.beginLocked(); err != nil {
		defer f.mu.Unlock()
		return f.snapshotLocked(), err
	}
	switch f.state {
	case CheckoutConfirming, CheckoutSucceeded, CheckoutPersistenceMismatch:
		defer f.mu.Unlock()
		return f.snapshotLocked(), ErrInvalidTransition
	}
	if !card.Captured() {
		defer f.mu.Unlock()
		f.setErrorLocked(apiclient.NewValidationError(msgCardNotCaptured), msgCardNotCaptured)
		return f.snapshotLocked(), ErrCardNotCaptured
	}
	clientSecret := f.store.ClientSecret()
	if clientSecret == "" || f.form == nil {
		defer f.mu.Unlock()
		f.setErrorLocked(apiclient.NewValidationError(msgNoActiveIntent), msgNoActiveIntent)
		return f.snapshotLocked(), ErrMissingClientSecret
	}
	form := *f.form
	f.busy = true
	f.clearErrorLocked()
	f.transitionLocked(CheckoutConfirming)
	f.mu.Unlock()

	confirmation, err := f.svc.processor.ConfirmCardPayment(ctx, clientSecret, card)
	if err == nil && !confirmation.Succeeded() {
		status := "unknown"
		if confirmation != nil && confirmation.Status != "" {
			status = confirmation.Status
		}
		err = apiclient.NewProcessorError(msgPaymentIncomplete+" (status: "+status+")", nil)
	}
	if err != nil {
		procErr := apiclient.AsError(err)
		if procErr == nil {
			procErr = apiclient.NewProcessorError("", err)
		}
		return f.finish(func() {
			f.setErrorLocked(procErr, msgPaymentFailed)
			f.transitionLocked(CheckoutFailed)
		}, procErr)
	}

	// The card is charged from here on; recording must outlive the caller.
	recordCtx := context.WithoutCancel(ctx)
	result := f.svc.api.ProcessPayment(recordCtx, billingapi.ProcessPaymentParams{
		PaymentMethodID: confirmation.PaymentMethodID,
		Amount:          form.Amount,
		ClientName:      form.ClientName,
		PartnerCode:     form.PartnerCode,
		Tier:            form.Tier,
	})
	if !result.OK() {
		mismatch := &apiclient.Error{
			Kind:       apiclient.KindPersistenceMismatch,
			StatusCode: result.Err().StatusCode,
			Message:    MessageFor(result.Err(), msgRecordFailed),
			Cause:      result.Err(),
		}
		f.recordMismatch(recordCtx, form, confirmation, mismatch.Message)
		return f.finish(func() {
			f.setErrorLocked(mismatch, msgRecordFailed)
			f.transitionLocked(CheckoutPersistenceMismatch)
		}, mismatch)
	}

	f.store.Clear()
	return f.finish(func() {
		f.payment = result.Value()
		f.redirectTo = f.svc.successRedirect
		f.transitionLocked(CheckoutSucceeded)
	}, nil)
}

// Teardown clears the intent store whatever the state; late results are dropped.
func (f *CheckoutFlow) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.store.Clear()
}

func (f *CheckoutFlow) finish(apply func(), err *apiclient.Error) (CheckoutSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.closed {
		f.logger.WithField("state", f.state).Debug("Dropping checkout result after teardown")
		return f.snapshotLocked(), ErrFlowClosed
	}
	apply()
	if err != nil {
		return f.snapshotLocked(), err
	}
	return f.snapshotLocked(), nil
}

func (f *CheckoutFlow) recordMismatch(ctx context.Context, form CheckoutForm, confirmation *processor.Confirmation, message string) {
	metrics.PaymentMismatches.Inc()

	logger := f.logger.WithFields(logrus.Fields{
		"client_name":       form.ClientName,
		"payment_intent_id": confirmation.PaymentIntentID,
		"payment_method_id": confirmation.PaymentMethodID,
		"amount":            form.Amount.String(),
	})
	logger.WithField("reason", message).Error("Payment charged but not recorded")

	if f.svc.ledger == nil {
		return
	}
	now := f.svc.now().UTC()
	err := f.svc.ledger.Create(ctx, &entity.PaymentMismatch{
		TabID:           f.tabID,
		ClientName:      form.ClientName,
		PaymentIntentID: confirmation.PaymentIntentID,
		PaymentMethodID: confirmation.PaymentMethodID,
		Amount:          form.Amount,
		Tier:            form.Tier,
		PartnerCode:     form.PartnerCode,
		Message:         message,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to write payment mismatch to ledger")
	}
}

func (f *CheckoutFlow) beginLocked() error {
	if f.closed {
		return ErrFlowClosed
	}
	if f.busy {
		return ErrOperationInFlight
	}
	return nil
}

func (f *CheckoutFlow) transitionLocked(to CheckoutState) {
	from := f.state
	f.state = to
	metrics.CheckoutTransitions.WithLabelValues(string(from), string(to)).Inc()
	f.logger.WithField("from", from).WithField("to", to).Debug("Checkout transition")
}

func (f *CheckoutFlow) setErrorLocked(err *apiclient.Error, fallback string) {
	f.errKind = err.Kind
	f.errMessage = MessageFor(err, fallback)
}

func (f *CheckoutFlow) clearErrorLocked() {
	f.errKind = 0
	f.errMessage = ""
}

func (f *CheckoutFlow) snapshotLocked() CheckoutSnapshot {
	snapshot := CheckoutSnapshot{
		TabID:        f.tabID,
		State:        f.state,
		Busy:         f.busy,
		Intent:       f.store.Get(),
		Payment:      f.payment,
		ErrorKind:    f.errKind,
		ErrorMessage: f.errMessage,
		RedirectTo:   f.redirectTo,
	}
	if f.form != nil {
		formCopy := *f.form
		snapshot.Form = &formCopy
	}
	return snapshot
}

func (f *CheckoutFlow) touch(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen = now
}

func (f *CheckoutFlow) idleSince(cutoff time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy && f.lastSeen.Before(cutoff)
}
