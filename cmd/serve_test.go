package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
)

func TestForwardCredentialsCarriesBearerAndRequestID(t *testing.T) {
	e := echo.New()
	var bearer string
	e.Use(forwardCredentials())
	e.GET("/probe", func(ctx echo.Context) error {
		bearer = apiclient.BearerFromContext(ctx.Request().Context())
		return ctx.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer user-token")
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if bearer != "user-token" {
		t.Fatalf("expected forwarded bearer, got %q", bearer)
	}
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestForwardCredentialsGeneratesRequestID(t *testing.T) {
	e := echo.New()
	e.Use(forwardCredentials())
	e.GET("/probe", func(ctx echo.Context) error {
		return ctx.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected generated request id")
	}
}
