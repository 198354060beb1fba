package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
	"github.com/vibast-solutions/ms-go-billing-bff/app/metrics"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
)

const (
	msgNoSessionID     = "No session ID found in URL parameters"
	msgVerifyFailed    = "Failed to verify payment"
	msgPaymentVerified = "Payment successful"
	msgVerifying       = "Your payment is being verified"
)

// SuccessView is what the success page renders for a session.
type SuccessView struct {
	SessionID  string
	State      entity.MarkerState
	Message    string
	ErrorKind  apiclient.ErrorKind
	FromMarker bool
}

func (v SuccessView) Succeeded() bool {
	return v.State == entity.MarkerSucceeded
}

type successAPI interface {
	HandlePaymentSuccess(ctx context.Context, sessionID string) apiclient.Result[*entity.SuccessResult]
	Invalidate(clientName string, tags ...string)
}

// Reconciler verifies a redirect-based payment at most once per session per tab.
type Reconciler struct {
	api    successAPI
	tabs   tabstate.Store
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewReconciler(api successAPI, tabs tabstate.Store) *Reconciler {
	return &Reconciler{
		api:    api,
		tabs:   tabs,
		logger: factory.NewModuleLogger("reconcile"),
		now:    time.Now,
	}
}

// Reconcile renders the success page for sessionID. A session already marked in the
// tab is rendered from its marker without a backend call. Errors are only returned
// for tab state failures; verification failures are part of the view.
func (r *Reconciler) Reconcile(ctx context.Context, tabID, sessionID string) (SuccessView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		metrics.ReconcileOutcomes.WithLabelValues("missing_session").Inc()
		return SuccessView{
			State:     entity.MarkerFailed,
			Message:   msgNoSessionID,
			ErrorKind: apiclient.KindValidation,
		}, nil
	}
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return SuccessView{}, ErrTabRequired
	}
	logger := r.logger.WithField("tab_id", tabID).WithField("session_id", sessionID)

	if marker, err := r.tabs.GetMarker(ctx, tabID, sessionID); err != nil {
		return SuccessView{}, err
	} else if marker != nil {
		metrics.ReconcileOutcomes.WithLabelValues("cached").Inc()
		return viewFromMarker(marker), nil
	}

	won, err := r.tabs.ClaimMarker(ctx, tabID, sessionID)
	if err != nil {
		return SuccessView{}, err
	}
	if !won {
		marker, err := r.tabs.GetMarker(ctx, tabID, sessionID)
		if err != nil {
			return SuccessView{}, err
		}
		metrics.ReconcileOutcomes.WithLabelValues("cached").Inc()
		if marker == nil {
			return SuccessView{SessionID: sessionID, State: entity.MarkerProcessing, Message: msgVerifying, FromMarker: true}, nil
		}
		return viewFromMarker(marker), nil
	}

	// The marker is claimed; finish the call so it never stays in processing.
	callCtx := context.WithoutCancel(ctx)
	view := r.verify(callCtx, tabID, sessionID, logger)

	if err := r.tabs.SaveMarker(callCtx, tabID, &entity.SessionMarker{
		SessionID: sessionID,
		State:     view.State,
		Message:   view.Message,
		MarkedAt:  r.now().UTC(),
	}); err != nil {
		logger.WithError(err).Error("Failed to save session marker")
	}
	return view, nil
}

func (r *Reconciler) verify(ctx context.Context, tabID, sessionID string, logger logrus.FieldLogger) SuccessView {
	view := SuccessView{SessionID: sessionID}

	result := r.api.HandlePaymentSuccess(ctx, sessionID)
	if !result.OK() {
		view.State = entity.MarkerFailed
		view.ErrorKind = result.Err().Kind
		view.Message = MessageFor(result.Err(), msgVerifyFailed)
		metrics.ReconcileOutcomes.WithLabelValues("failed").Inc()
		logger.WithError(result.Err()).Warn("Payment verification failed")
		return view
	}

	outcome := result.Value()
	if outcome == nil || !outcome.Success {
		view.State = entity.MarkerFailed
		view.ErrorKind = apiclient.KindServer
		view.Message = msgVerifyFailed
		if outcome != nil && strings.TrimSpace(outcome.Message) != "" {
			view.Message = strings.TrimSpace(outcome.Message)
		}
		metrics.ReconcileOutcomes.WithLabelValues("failed").Inc()
		logger.WithField("reason", view.Message).Warn("Payment verification rejected")
		return view
	}

	view.State = entity.MarkerSucceeded
	view.Message = msgPaymentVerified
	if msg := strings.TrimSpace(outcome.Message); msg != "" {
		view.Message = msg
	}

	r.api.Invalidate("", billingapi.TagUser, billingapi.TagSubscription, billingapi.TagInvoice)
	if err := r.tabs.SetFlag(ctx, tabID, tabstate.FlagPaymentCompleted); err != nil {
		logger.WithError(err).Warn("Failed to set payment completed flag")
	}
	metrics.ReconcileOutcomes.WithLabelValues("verified").Inc()
	logger.Info("Payment verified")
	return view
}

// ConsumePaymentCompleted reports, once, that a payment was verified in the tab.
func (r *Reconciler) ConsumePaymentCompleted(ctx context.Context, tabID string) (bool, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return false, ErrTabRequired
	}
	return r.tabs.ConsumeFlag(ctx, tabID, tabstate.FlagPaymentCompleted)
}

// CloseTab forgets every marker and flag of the tab.
func (r *Reconciler) CloseTab(ctx context.Context, tabID string) error {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return ErrTabRequired
	}
	return r.tabs.CloseTab(ctx, tabID)
}

func viewFromMarker(marker *entity.SessionMarker) SuccessView {
	view := SuccessView{
		SessionID:  marker.SessionID,
		State:      marker.State,
		Message:    marker.Message,
		FromMarker: true,
	}
	if view.State == entity.MarkerProcessing && view.Message == "" {
		view.Message = msgVerifying
	}
	return view
}
