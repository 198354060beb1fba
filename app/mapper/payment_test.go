package mapper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
)

func TestCheckoutToResponseHidesClientSecret(t *testing.T) {
	tier := "L1"
	resp := CheckoutToResponse(service.CheckoutSnapshot{
		State: service.CheckoutFailed,
		Form:  &service.CheckoutForm{Amount: decimal.NewFromInt(100), Tier: &tier, ClientName: "acme"},
		Intent: &entity.PaymentIntent{
			ClientSecret: "pi_1_secret_abc",
			Amount:       decimal.NewFromInt(100),
			FinalAmount:  decimal.NewFromInt(100),
			TaxType:      entity.TaxTypeVAT,
		},
		ErrorKind:    apiclient.KindProcessor,
		ErrorMessage: "declined",
	})

	if resp.State != "failed" || resp.Intent == nil || resp.Intent.TaxType != "VAT" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Error == nil || resp.Error.Kind != "processor" || resp.Error.Message != "declined" {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Form == nil || resp.Form.Tier == &tier || *resp.Form.Tier != "L1" {
		t.Fatalf("expected copied form, got %+v", resp.Form)
	}
}

func TestSuccessToResponse(t *testing.T) {
	resp := SuccessToResponse(service.SuccessView{SessionID: "sess_1", State: entity.MarkerSucceeded, Message: "ok"})
	if !resp.Success || resp.State != "succeeded" || resp.SessionID != "sess_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if got := PaymentRecordsToInvoices(nil); got.Invoices == nil {
		t.Fatal("expected empty invoice list, not null")
	}
}
