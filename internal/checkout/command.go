package checkout

import (
	"context"
	"fmt"

	"github.com/utafrali/stylinx/internal/domain"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

// CommandType names a command accepted by Dispatch.
type CommandType string

const (
	CmdAddToCart                CommandType = "add_to_cart"
	CmdIncreaseQty              CommandType = "increase_qty"
	CmdDecreaseQty              CommandType = "decrease_qty"
	CmdRemoveFromCart           CommandType = "remove_from_cart"
	CmdSetShippingField         CommandType = "set_shipping_field"
	CmdSetShippingMethod        CommandType = "set_shipping_method"
	CmdSetPaymentMethod         CommandType = "set_payment_method"
	CmdSetPaymentField          CommandType = "set_payment_field"
	CmdSetTermsAgreed           CommandType = "set_terms_agreed"
	CmdSetCouponCode            CommandType = "set_coupon_code"
	CmdToggleCopyBillingAddress CommandType = "toggle_copy_billing_address"
	CmdApplyCoupon              CommandType = "apply_coupon"
	CmdAdvanceStep              CommandType = "advance_step"
	CmdGoToPreviousStep         CommandType = "go_to_previous_step"
	CmdResetCheckout            CommandType = "reset_checkout"
)

// Command is the serialisable form of every engine command. Only the fields
// used by Type need to be set.
type Command struct {
	Type   CommandType      `json:"type" validate:"required"`
	Line   *domain.CartLine `json:"line,omitempty"`
	LineID string           `json:"lineId,omitempty"`
	Field  string           `json:"field,omitempty"`
	Value  string           `json:"value,omitempty"`
	Method string           `json:"method,omitempty"`
	Agreed bool             `json:"agreed,omitempty"`
	Code   string           `json:"code,omitempty"`
}

// Mutates reports whether the command may change persisted session state.
func (c Command) Mutates() bool {
	return c.Type != CmdApplyCoupon
}

// Dispatch applies cmd and describes the result. Commands that do not
// navigate return an outcome carrying the current step.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) (*Outcome, error) {
	var err error
	switch cmd.Type {
	case CmdAddToCart:
		if cmd.Line == nil {
			return nil, apperrors.InvalidInput("line is required")
		}
		err = e.AddToCart(ctx, *cmd.Line)
	case CmdIncreaseQty:
		err = e.IncreaseQty(ctx, cmd.LineID)
	case CmdDecreaseQty:
		err = e.DecreaseQty(ctx, cmd.LineID)
	case CmdRemoveFromCart:
		err = e.RemoveFromCart(ctx, cmd.LineID)
	case CmdSetShippingField:
		f, perr := domain.ParseShippingField(cmd.Field)
		if perr != nil {
			return nil, apperrors.InvalidInput(perr.Error())
		}
		err = e.SetShippingField(ctx, f, cmd.Value)
	case CmdSetPaymentField:
		f, perr := domain.ParsePaymentField(cmd.Field)
		if perr != nil {
			return nil, apperrors.InvalidInput(perr.Error())
		}
		err = e.SetPaymentField(ctx, f, cmd.Value)
	case CmdSetShippingMethod:
		m, perr := domain.ParseShippingMethod(cmd.Method)
		if perr != nil {
			return nil, apperrors.InvalidInput(perr.Error())
		}
		err = e.SetShippingMethod(ctx, m)
	case CmdSetPaymentMethod:
		m, perr := domain.ParsePaymentMethod(cmd.Method)
		if perr != nil {
			return nil, apperrors.InvalidInput(perr.Error())
		}
		err = e.SetPaymentMethod(ctx, m)
	case CmdSetTermsAgreed:
		err = e.SetTermsAgreed(ctx, cmd.Agreed)
	case CmdSetCouponCode:
		err = e.SetCouponCode(ctx, cmd.Code)
	case CmdToggleCopyBillingAddress:
		err = e.ToggleCopyBillingAddress(ctx)
	case CmdApplyCoupon:
		msg, aerr := e.ApplyCoupon(ctx)
		if aerr != nil {
			return nil, aerr
		}
		return &Outcome{Step: e.CurrentStep(), Message: msg}, nil
	case CmdAdvanceStep:
		return e.AdvanceStep(ctx)
	case CmdGoToPreviousStep:
		return e.GoToPreviousStep(ctx)
	case CmdResetCheckout:
		e.ResetCheckout(ctx)
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown command type %q", cmd.Type))
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Step: e.CurrentStep()}, nil
}
