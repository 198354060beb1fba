package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/processor"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
)

type controllerBackend struct {
	mu        sync.Mutex
	responses map[string]any
	failures  map[string]*apiclient.Error
	calls     map[string]int
}

func newControllerBackend() *controllerBackend {
	return &controllerBackend{
		responses: map[string]any{},
		failures:  map[string]*apiclient.Error{},
		calls:     map[string]int{},
	}
}

func (b *controllerBackend) Do(_ context.Context, req apiclient.Request, out any) *apiclient.Error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[req.Operation]++
	if err, ok := b.failures[req.Operation]; ok {
		return err
	}
	payload, err := json.Marshal(b.responses[req.Operation])
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindServer, Cause: err}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &apiclient.Error{Kind: apiclient.KindServer, Cause: err}
	}
	return nil
}

func (b *controllerBackend) callCount(operation string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[operation]
}

type controllerProcessor struct {
	confirmFn func(ctx context.Context, clientSecret string, card processor.CardDetails) (*processor.Confirmation, error)
}

func (p *controllerProcessor) ConfirmCardPayment(ctx context.Context, clientSecret string, card processor.CardDetails) (*processor.Confirmation, error) {
	return p.confirmFn(ctx, clientSecret, card)
}

type testServer struct {
	echo    *echo.Echo
	backend *controllerBackend
}

func newTestServer(t *testing.T, proc *controllerProcessor) *testServer {
	t.Helper()
	backend := newControllerBackend()
	backend.responses["create_intent"] = map[string]any{
		"client_secret": "pi_1_secret_abc",
		"amount":        100,
		"discount":      0,
		"final_amount":  100,
		"tax_amount":    0,
		"tax_type":      "GST",
		"total_amount":  100,
	}
	backend.responses["process_payment"] = map[string]any{
		"payment_id":     "pay_1",
		"client_name":    "acme",
		"payment_status": "succeeded",
	}
	backend.responses["payment_success"] = map[string]any{"success": true, "message": "Payment recorded"}
	backend.responses["payment_status"] = map[string]any{"payment_status": "active", "subscription_level": "L1", "can_run_profiling": true}
	backend.responses["invoices"] = []map[string]any{{"payment_id": "pay_1", "client_name": "acme"}}
	backend.responses["create_checkout_session"] = map[string]any{"session_id": "cs_1", "checkout_url": "https://checkout.example/cs_1"}

	if proc == nil {
		proc = &controllerProcessor{confirmFn: func(_ context.Context, _ string, card processor.CardDetails) (*processor.Confirmation, error) {
			return &processor.Confirmation{PaymentIntentID: "pi_1", PaymentMethodID: card.PaymentMethodID, Status: processor.StatusSucceeded}, nil
		}}
	}

	api := billingapi.New(backend, time.Minute)
	checkoutService := service.NewCheckoutService(api, proc, nil, "")
	reconciler := service.NewReconciler(api, tabstate.NewMemoryStore(time.Hour))
	checkoutController := NewCheckoutController(checkoutService, reconciler)
	paymentController := NewPaymentController(api, reconciler)

	e := echo.New()
	e.GET("/health", paymentController.Health)
	e.GET("/checkout", checkoutController.GetCheckout)
	e.POST("/checkout/intent", checkoutController.CreateIntent)
	e.POST("/checkout/confirm", checkoutController.ConfirmCard)
	e.DELETE("/checkout", checkoutController.CloseCheckout)
	e.DELETE("/tab", checkoutController.CloseTab)
	e.POST("/payments/checkout-session", paymentController.CreateCheckoutSession)
	e.GET("/payments/status/:client_name", paymentController.GetPaymentStatus)
	e.GET("/payments/invoices/:client_name", paymentController.GetInvoices)
	e.GET("/payments/success", paymentController.PaymentSuccess)
	e.POST("/payments/completed/consume", paymentController.ConsumePaymentCompleted)

	return &testServer{echo: e, backend: backend}
}

func (s *testServer) do(method, target, tabID, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tabID != "" {
		req.Header.Set(types.HeaderTabID, tabID)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeCheckout(t *testing.T, rec *httptest.ResponseRecorder) types.CheckoutResponse {
	t.Helper()
	var resp types.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode checkout response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/checkout/intent", "tab-1", `{"amount":100,"tier":"L1","client_name":"acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutIntentCreated) || resp.Intent == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Fatal("client secret must not leave the server")
	}

	rec = srv.do(http.MethodPost, "/checkout/confirm", "tab-1", `{"payment_method_id":"pm_card_visa"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp = decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutSucceeded) || resp.Intent != nil || resp.RedirectTo != service.DefaultSuccessRedirect {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCheckoutRequiresTabID(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodPost, "/checkout/intent", "", `{"amount":100,"client_name":"acme"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutAmountBelowOneNeverReachesBackend(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/checkout/intent", "tab-1", `{"amount":0.5,"client_name":"acme"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutIdle) || resp.Error == nil || resp.Error.Kind != "validation" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if srv.backend.callCount("create_intent") != 0 {
		t.Fatal("expected no backend call")
	}
}

func TestCheckoutConfirmWithoutCard(t *testing.T) {
	srv := newTestServer(t, nil)
	_ = srv.do(http.MethodPost, "/checkout/intent", "tab-1", `{"amount":100,"client_name":"acme"}`)

	rec := srv.do(http.MethodPost, "/checkout/confirm", "tab-1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutIntentCreated) || resp.Error == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCheckoutPersistenceMismatchResponse(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.backend.failures["process_payment"] = &apiclient.Error{Kind: apiclient.KindServer, StatusCode: 409, Message: "duplicate"}

	_ = srv.do(http.MethodPost, "/checkout/intent", "tab-1", `{"amount":100,"client_name":"acme"}`)
	rec := srv.do(http.MethodPost, "/checkout/confirm", "tab-1", `{"payment_method_id":"pm_1"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	resp := decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutPersistenceMismatch) || resp.Error == nil || resp.Error.Message != "duplicate" || resp.Error.Kind != "persistence_mismatch" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = srv.do(http.MethodPost, "/checkout/confirm", "tab-1", `{"payment_method_id":"pm_1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on re-confirm, got %d", rec.Code)
	}
}

func TestCheckoutTeardownStartsFresh(t *testing.T) {
	srv := newTestServer(t, nil)
	_ = srv.do(http.MethodPost, "/checkout/intent", "tab-1", `{"amount":100,"client_name":"acme"}`)

	rec := srv.do(http.MethodDelete, "/checkout", "tab-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/checkout", "tab-1", "")
	resp := decodeCheckout(t, rec)
	if resp.State != string(service.CheckoutIdle) || resp.Intent != nil {
		t.Fatalf("expected fresh flow, got %+v", resp)
	}
}

func TestPaymentSuccessIsIdempotentPerTab(t *testing.T) {
	srv := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		rec := srv.do(http.MethodGet, "/payments/success?session_id=sess_1", "tab-1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp types.SuccessResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Success || resp.Message != "Payment recorded" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	}
	if srv.backend.callCount("payment_success") != 1 {
		t.Fatalf("expected one verification call, got %d", srv.backend.callCount("payment_success"))
	}

	rec := srv.do(http.MethodPost, "/payments/completed/consume", "tab-1", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"payment_completed":true`)) {
		t.Fatalf("unexpected consume response: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodDelete, "/tab", "tab-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	_ = srv.do(http.MethodGet, "/payments/success?session_id=sess_1", "tab-1", "")
	if srv.backend.callCount("payment_success") != 2 {
		t.Fatal("expected a closed tab to verify again")
	}
}

func TestCloseTabRejectsPatternTabIDs(t *testing.T) {
	srv := newTestServer(t, nil)

	_ = srv.do(http.MethodGet, "/payments/success?session_id=sess_1", "victim-tab", "")
	for _, tabID := range []string{"*", "victim*", "victim-?ab"} {
		rec := srv.do(http.MethodDelete, "/tab", tabID, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for tab id %q, got %d", tabID, rec.Code)
		}
	}

	rec := srv.do(http.MethodGet, "/payments/success?session_id=sess_1", "victim-tab", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if srv.backend.callCount("payment_success") != 1 {
		t.Fatalf("expected the other tab's marker to survive, got %d verification calls", srv.backend.callCount("payment_success"))
	}
}

func TestPaymentSuccessWithoutSessionID(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodGet, "/payments/success", "tab-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp types.SuccessResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success || resp.Message != "No session ID found in URL parameters" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if srv.backend.callCount("payment_success") != 0 {
		t.Fatal("expected zero network calls")
	}
}

func TestPaymentStatusAndInvoices(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodGet, "/payments/status/acme", "tab-1", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"subscription_level":"L1"`)) {
		t.Fatalf("unexpected status response: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodGet, "/payments/invoices/acme", "tab-1", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"invoices":[`)) {
		t.Fatalf("unexpected invoices response: %d %s", rec.Code, rec.Body.String())
	}

	srv.backend.failures["payment_status"] = &apiclient.Error{Kind: apiclient.KindServer, StatusCode: 404, Message: "Client not found"}
	rec = srv.do(http.MethodGet, "/payments/status/globex", "tab-1", "")
	if rec.Code != http.StatusNotFound || !bytes.Contains(rec.Body.Bytes(), []byte("Client not found")) {
		t.Fatalf("unexpected error response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/payments/checkout-session", "tab-1", `{"amount":100,"client_name":"acme","payment_type":"one_time"}`)
	if rec.Code != http.StatusCreated || !bytes.Contains(rec.Body.Bytes(), []byte(`"session_id":"cs_1"`)) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodPost, "/payments/checkout-session", "tab-1", `{"amount":100,"client_name":"acme"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without payment_type, got %d", rec.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrOperationInFlight, http.StatusConflict},
		{service.ErrFlowClosed, http.StatusGone},
		{service.ErrCardNotCaptured, http.StatusBadRequest},
		{apiclient.NewProcessorError("declined", nil), http.StatusPaymentRequired},
		{&apiclient.Error{Kind: apiclient.KindServer, StatusCode: 500}, http.StatusBadGateway},
		{&apiclient.Error{Kind: apiclient.KindNetwork}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
