package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
)

// statusForError maps service and backend failures onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrTabRequired), errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrCardNotCaptured), errors.Is(err, service.ErrMissingClientSecret),
		errors.Is(err, tabstate.ErrTabRequired), errors.Is(err, tabstate.ErrTabInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOperationInFlight), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrFlowClosed):
		return http.StatusGone
	}

	apiErr := apiclient.AsError(err)
	if apiErr == nil {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case apiclient.KindValidation:
		return http.StatusBadRequest
	case apiclient.KindProcessor:
		return http.StatusPaymentRequired
	case apiclient.KindServer:
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func writeAPIError(ctx echo.Context, err error, fallback string) error {
	resp := &types.ErrorResponse{Error: service.MessageFor(err, fallback)}
	if kind := apiclient.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	return ctx.JSON(statusForError(err), resp)
}
