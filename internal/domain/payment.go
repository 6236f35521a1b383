package domain

import (
	"fmt"
	"strings"
)

// PaymentField identifies one field of the card form.
type PaymentField string

const (
	FieldCardNumber PaymentField = "cardNumber"
	FieldCardHolder PaymentField = "cardHolder"
	FieldExpiryDate PaymentField = "expiryDate"
	FieldCVV        PaymentField = "cvv"
)

// PaymentFields returns every card field in form order.
func PaymentFields() []PaymentField {
	return []PaymentField{FieldCardNumber, FieldCardHolder, FieldExpiryDate, FieldCVV}
}

// ParsePaymentField converts s into a PaymentField.
func ParsePaymentField(s string) (PaymentField, error) {
	for _, f := range PaymentFields() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown payment field %q", s)
}

// maxCardNumberLen is the length of "#### #### #### ####".
const maxCardNumberLen = 19

// PaymentInfo holds the card form. It is only validated for credit payments.
type PaymentInfo struct {
	CardNumber string `json:"cardNumber" validate:"notblank,card_digits"`
	CardHolder string `json:"cardHolder" validate:"notblank"`
	ExpiryDate string `json:"expiryDate" validate:"notblank,expiry_mmyy"`
	CVV        string `json:"cvv" validate:"notblank,cvv"`
}

// Set assigns value to the given field, normalising card number and expiry
// input the way the card form displays them.
func (p *PaymentInfo) Set(field PaymentField, value string) error {
	switch field {
	case FieldCardNumber:
		p.CardNumber = FormatCardNumber(value)
	case FieldCardHolder:
		p.CardHolder = value
	case FieldExpiryDate:
		p.ExpiryDate = FormatExpiry(value)
	case FieldCVV:
		p.CVV = value
	default:
		return fmt.Errorf("unknown payment field %q", field)
	}
	return nil
}

// Get returns the value of the given field.
func (p PaymentInfo) Get(field PaymentField) string {
	switch field {
	case FieldCardNumber:
		return p.CardNumber
	case FieldCardHolder:
		return p.CardHolder
	case FieldExpiryDate:
		return p.ExpiryDate
	case FieldCVV:
		return p.CVV
	default:
		return ""
	}
}

// MaskedCardNumber returns the card number with all but the last four digits
// hidden, or "" when no digits were entered.
func (p PaymentInfo) MaskedCardNumber() string {
	d := digits(p.CardNumber)
	if d == "" {
		return ""
	}
	if len(d) <= 4 {
		return d
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}

// FormatCardNumber keeps the digits of s, groups them in fours separated by
// spaces and truncates the result to 19 characters.
func FormatCardNumber(s string) string {
	d := digits(s)
	var b strings.Builder
	for i, r := range d {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxCardNumberLen {
		out = out[:maxCardNumberLen]
	}
	return out
}

// FormatExpiry keeps the digits of s and renders them as MM/YY once at least
// two digits are present. Digits beyond the fourth are dropped.
func FormatExpiry(s string) string {
	d := digits(s)
	if len(d) < 2 {
		return d
	}
	if len(d) > 4 {
		d = d[:4]
	}
	return d[:2] + "/" + d[2:]
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
