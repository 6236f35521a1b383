package domain

import (
	"fmt"
	"strings"
)

// Step is a position in the checkout flow.
type Step int

const (
	StepShipping  Step = 1
	StepPayment   Step = 2
	StepCompleted Step = 3
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepCompleted:
		return "completed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// IsTerminal reports whether no further step follows s.
func (s Step) IsTerminal() bool {
	return s == StepCompleted
}

// ShippingMethod selects the delivery option.
type ShippingMethod string

const (
	ShippingFree     ShippingMethod = "free"
	ShippingStandard ShippingMethod = "standard"
	ShippingFast     ShippingMethod = "fast"
)

// ShippingMethods returns every supported shipping method.
func ShippingMethods() []ShippingMethod {
	return []ShippingMethod{ShippingFree, ShippingStandard, ShippingFast}
}

// ParseShippingMethod converts s into a ShippingMethod.
func ParseShippingMethod(s string) (ShippingMethod, error) {
	m := ShippingMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ShippingMethods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown shipping method %q", s)
}

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

// ParsePaymentMethod converts s into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentCredit:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// FieldErrors maps a form field identifier to a human-readable message.
// An empty map means the form is valid.
type FieldErrors map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (fe FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// ErrorScope names the form a FieldErrors value belongs to.
type ErrorScope string

const (
	ScopeShipping ErrorScope = "shipping"
	ScopePayment  ErrorScope = "payment"
)
