package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
	"github.com/vibast-solutions/ms-go-billing-bff/app/mapper"
	"github.com/vibast-solutions/ms-go-billing-bff/app/processor"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	reconciler      *service.Reconciler
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService, reconciler *service.Reconciler) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		reconciler:      reconciler,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

// tabFromRequest returns the validated X-Tab-ID header.
func tabFromRequest(ctx echo.Context) (string, error) {
	req := types.NewTabRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return "", err
	}
	return req.TabID, nil
}

func (c *CheckoutController) flow(ctx echo.Context) (*service.CheckoutFlow, error) {
	tabID, err := tabFromRequest(ctx)
	if err != nil {
		return nil, err
	}
	return c.checkoutService.Flow(tabID)
}

func (c *CheckoutController) GetCheckout(ctx echo.Context) error {
	flow, err := c.flow(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	return ctx.JSON(http.StatusOK, mapper.CheckoutToResponse(flow.Snapshot()))
}

func (c *CheckoutController) CreateIntent(ctx echo.Context) error {
	req, err := types.NewCheckoutFormRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	flow, err := c.flow(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	snapshot, err := flow.SubmitAmount(ctx.Request().Context(), mapper.FormFromRequest(req))
	return c.respond(ctx, snapshot, err, http.StatusCreated)
}

func (c *CheckoutController) ConfirmCard(ctx echo.Context) error {
	req, err := types.NewConfirmCardRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	flow, err := c.flow(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	snapshot, err := flow.SubmitCard(ctx.Request().Context(), processor.CardDetails{PaymentMethodID: req.PaymentMethodID})
	return c.respond(ctx, snapshot, err, http.StatusOK)
}

func (c *CheckoutController) CloseCheckout(ctx echo.Context) error {
	tabID, err := tabFromRequest(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if err := c.checkoutService.Close(tabID); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CloseTab drops everything the tab holds: its checkout flow, success markers and flags.
func (c *CheckoutController) CloseTab(ctx echo.Context) error {
	tabID, err := tabFromRequest(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if err := c.checkoutService.Close(tabID); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if err := c.reconciler.CloseTab(ctx.Request().Context(), tabID); err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Close tab failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// respond renders the flow snapshot; failures keep the snapshot body so the page can
// show the message next to the form.
func (c *CheckoutController) respond(ctx echo.Context, snapshot service.CheckoutSnapshot, err error, okStatus int) error {
	if err == nil {
		return ctx.JSON(okStatus, mapper.CheckoutToResponse(snapshot))
	}

	status := statusForError(err)
	logger := factory.LoggerWithContext(c.logger, ctx).WithField("state", snapshot.State)
	switch {
	case apiclient.KindOf(err) == apiclient.KindPersistenceMismatch:
		logger.WithError(err).Error("Checkout ended in persistence mismatch")
	case errors.Is(err, service.ErrFlowClosed):
		logger.Debug("Checkout result dropped after teardown")
	case status >= http.StatusInternalServerError:
		logger.WithError(err).Warn("Checkout step failed")
	}

	if errors.Is(err, service.ErrOperationInFlight) || errors.Is(err, service.ErrInvalidTransition) || errors.Is(err, service.ErrFlowClosed) {
		return writeError(ctx, status, err.Error())
	}
	return ctx.JSON(status, mapper.CheckoutToResponse(snapshot))
}
