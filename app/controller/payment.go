package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
	"github.com/vibast-solutions/ms-go-billing-bff/app/mapper"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
)

type PaymentController struct {
	api        *billingapi.API
	reconciler *service.Reconciler
	logger     logrus.FieldLogger
}

func NewPaymentController(api *billingapi.API, reconciler *service.Reconciler) *PaymentController {
	return &PaymentController{
		api:        api,
		reconciler: reconciler,
		logger:     factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreateCheckoutSession(ctx echo.Context) error {
	req, err := types.NewCheckoutSessionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.api.CreateCheckoutSession(ctx.Request().Context(), billingapi.CheckoutSessionParams{
		Amount:      req.Amount,
		ClientName:  req.ClientName,
		Tier:        req.Tier,
		PartnerCode: req.PartnerCode,
		PaymentType: req.PaymentType,
	}).Unpack()
	if err != nil {
		return writeAPIError(ctx, err, "Failed to create checkout session")
	}
	return ctx.JSON(http.StatusCreated, session)
}

func (c *PaymentController) GetPaymentStatus(ctx echo.Context) error {
	req := types.NewClientNameRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	status, err := c.api.GetPaymentStatus(ctx.Request().Context(), req.ClientName).Unpack()
	if err != nil {
		return writeAPIError(ctx, err, "Failed to load payment status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (c *PaymentController) GetInvoices(ctx echo.Context) error {
	req := types.NewClientNameRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.api.GetInvoices(ctx.Request().Context(), req.ClientName).Unpack()
	if err != nil {
		return writeAPIError(ctx, err, "Failed to load invoices")
	}
	return ctx.JSON(http.StatusOK, mapper.PaymentRecordsToInvoices(items))
}

// PaymentSuccess always renders a view; verification failures are part of it.
func (c *PaymentController) PaymentSuccess(ctx echo.Context) error {
	req := types.NewPaymentSuccessRequestFromContext(ctx)

	// a missing session renders the failed view whatever the tab header holds
	var tabID string
	if req.SessionID != "" {
		var err error
		if tabID, err = tabFromRequest(ctx); err != nil {
			return writeError(ctx, http.StatusBadRequest, err.Error())
		}
	}

	view, err := c.reconciler.Reconcile(ctx.Request().Context(), tabID, req.SessionID)
	if err != nil {
		if status := statusForError(err); status == http.StatusBadRequest {
			return writeError(ctx, status, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment success reconciliation failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, mapper.SuccessToResponse(view))
}

func (c *PaymentController) ConsumePaymentCompleted(ctx echo.Context) error {
	tabID, err := tabFromRequest(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	completed, err := c.reconciler.ConsumePaymentCompleted(ctx.Request().Context(), tabID)
	if err != nil {
		if status := statusForError(err); status == http.StatusBadRequest {
			return writeError(ctx, status, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Consume payment completed flag failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &types.PaymentCompletedResponse{PaymentCompleted: completed})
}
