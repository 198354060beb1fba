package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
)

const HeaderTabID = "X-Tab-ID"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("tabid", func(fl validator.FieldLevel) bool {
		return tabstate.ValidTabID(fl.Field().String())
	})
	return v
}

// validationError turns the first failed rule into a short client-facing message.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "tabid":
		return fmt.Errorf("%s may only contain letters, digits, '-' and '_'", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// TabRequest carries the X-Tab-ID header every flow route is scoped by.
type TabRequest struct {
	TabID string `json:"tab_id" validate:"required,max=128,tabid"`
}

func NewTabRequestFromContext(ctx echo.Context) *TabRequest {
	return &TabRequest{TabID: strings.TrimSpace(ctx.Request().Header.Get(HeaderTabID))}
}

func (r *TabRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type CheckoutFormRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Tier        *string         `json:"tier,omitempty" validate:"omitempty,max=64"`
	ClientName  string          `json:"client_name" validate:"required,max=255"`
	PartnerCode *string         `json:"partner_code,omitempty" validate:"omitempty,max=64"`
}

func NewCheckoutFormRequestFromContext(ctx echo.Context) (*CheckoutFormRequest, error) {
	var body CheckoutFormRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.ClientName = strings.TrimSpace(body.ClientName)
	body.Tier = trimOptional(body.Tier)
	body.PartnerCode = trimOptional(body.PartnerCode)
	return &body, nil
}

// Validate checks shape only; the amount floor is enforced by the payment API.
func (r *CheckoutFormRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type ConfirmCardRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,max=255"`
}

func NewConfirmCardRequestFromContext(ctx echo.Context) (*ConfirmCardRequest, error) {
	var body ConfirmCardRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentMethodID = strings.TrimSpace(body.PaymentMethodID)
	return &body, nil
}

// Validate leaves an empty payment method to the checkout flow, which reports it.
func (r *ConfirmCardRequest) Validate() error {
	if len(r.PaymentMethodID) > 255 {
		return errors.New("payment_method_id must be at most 255 characters")
	}
	return nil
}

type CheckoutSessionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ClientName  string          `json:"client_name" validate:"required,max=255"`
	Tier        *string         `json:"tier,omitempty" validate:"omitempty,max=64"`
	PartnerCode *string         `json:"partner_code,omitempty" validate:"omitempty,max=64"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=one_time subscription"`
}

func NewCheckoutSessionRequestFromContext(ctx echo.Context) (*CheckoutSessionRequest, error) {
	var body CheckoutSessionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.ClientName = strings.TrimSpace(body.ClientName)
	body.Tier = trimOptional(body.Tier)
	body.PartnerCode = trimOptional(body.PartnerCode)
	body.PaymentType = strings.ToLower(strings.TrimSpace(body.PaymentType))
	return &body, nil
}

func (r *CheckoutSessionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type ClientNameRequest struct {
	ClientName string `validate:"required,max=255"`
}

func NewClientNameRequestFromContext(ctx echo.Context) *ClientNameRequest {
	return &ClientNameRequest{ClientName: strings.TrimSpace(ctx.Param("client_name"))}
}

func (r *ClientNameRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.New("client_name is required")
	}
	return nil
}

// An empty SessionID renders a failure view rather than a 400.
type PaymentSuccessRequest struct {
	SessionID string
}

func NewPaymentSuccessRequestFromContext(ctx echo.Context) *PaymentSuccessRequest {
	return &PaymentSuccessRequest{SessionID: strings.TrimSpace(ctx.QueryParam("session_id"))}
}
