package domain

import "time"

// SessionState is the persisted form of a checkout session. The CVV is never
// part of it and the processing flag is always false on restore.
type SessionState struct {
	ID                 string         `json:"id"`
	Lines              []CartLine     `json:"lines"`
	Shipping           Address        `json:"shipping"`
	Billing            Address        `json:"billing"`
	Payment            PaymentInfo    `json:"payment"`
	CopyBillingAddress bool           `json:"copyBillingAddress"`
	ShippingMethod     ShippingMethod `json:"shippingMethod"`
	PaymentMethod      PaymentMethod  `json:"paymentMethod"`
	TermsAgreed        bool           `json:"termsAgreed"`
	CouponCode         string         `json:"couponCode"`
	CurrentStep        Step           `json:"currentStep"`
	ShippingErrors     FieldErrors    `json:"shippingErrors,omitempty"`
	PaymentErrors      FieldErrors    `json:"paymentErrors,omitempty"`
	LastOrderID        string         `json:"lastOrderId,omitempty"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}
