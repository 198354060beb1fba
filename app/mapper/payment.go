package mapper

import (
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
)

func IntentToSummary(item *entity.PaymentIntent) *types.IntentSummary {
	if item == nil {
		return nil
	}

	return &types.IntentSummary{
		Amount:      item.Amount,
		Discount:    item.Discount,
		FinalAmount: item.FinalAmount,
		TaxAmount:   item.TaxAmount,
		TaxType:     string(item.TaxType),
		TotalAmount: item.TotalAmount,
	}
}

func CheckoutToResponse(snapshot service.CheckoutSnapshot) *types.CheckoutResponse {
	resp := &types.CheckoutResponse{
		State:      string(snapshot.State),
		Busy:       snapshot.Busy,
		Intent:     IntentToSummary(snapshot.Intent),
		Payment:    snapshot.Payment,
		RedirectTo: snapshot.RedirectTo,
	}
	if snapshot.Form != nil {
		resp.Form = &types.CheckoutFormView{
			Amount:      snapshot.Form.Amount,
			Tier:        cloneString(snapshot.Form.Tier),
			ClientName:  snapshot.Form.ClientName,
			PartnerCode: cloneString(snapshot.Form.PartnerCode),
		}
	}
	if snapshot.ErrorMessage != "" {
		resp.Error = &types.CheckoutError{
			Kind:    snapshot.ErrorKind.String(),
			Message: snapshot.ErrorMessage,
		}
	}
	return resp
}

func FormFromRequest(req *types.CheckoutFormRequest) service.CheckoutForm {
	return service.CheckoutForm{
		Amount:      req.Amount,
		Tier:        cloneString(req.Tier),
		ClientName:  req.ClientName,
		PartnerCode: cloneString(req.PartnerCode),
	}
}

func SuccessToResponse(view service.SuccessView) *types.SuccessResponse {
	return &types.SuccessResponse{
		SessionID: view.SessionID,
		State:     string(view.State),
		Success:   view.Succeeded(),
		Message:   view.Message,
	}
}

func PaymentRecordsToInvoices(items []*entity.PaymentRecord) *types.InvoicesResponse {
	if items == nil {
		items = []*entity.PaymentRecord{}
	}
	return &types.InvoicesResponse{Invoices: items}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
