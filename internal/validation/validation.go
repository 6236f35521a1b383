// Package validation checks the checkout forms and renders the messages the
// storefront shows next to each field.
package validation

import (
	"errors"
	"log/slog"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/pkg/validator"
)

// TermsNotAgreedMessage blocks submission until the terms box is ticked.
const TermsNotAgreedMessage = "You must agree to the terms and conditions"

var shippingMessages = map[string]map[string]string{
	string(domain.FieldFirstName): {"notblank": "First name is required"},
	string(domain.FieldLastName):  {"notblank": "Last name is required"},
	string(domain.FieldCountry):   {"notblank": "Country is required"},
	string(domain.FieldStreet):    {"notblank": "Street name is required"},
	string(domain.FieldCity):      {"notblank": "City is required"},
	string(domain.FieldZipCode):   {"notblank": "Zip code is required"},
	string(domain.FieldPhone): {
		"notblank":     "Phone number is required",
		"phone_digits": "Invalid phone number",
	},
}

var paymentMessages = map[string]map[string]string{
	string(domain.FieldCardNumber): {
		"notblank":    "Card number is required",
		"card_digits": "Invalid card number (16 digits required)",
	},
	string(domain.FieldCardHolder): {"notblank": "Card holder name is required"},
	string(domain.FieldExpiryDate): {
		"notblank":    "Expiry date is required",
		"expiry_mmyy": "Invalid format (MM/YY)",
	},
	string(domain.FieldCVV): {
		"notblank": "CVV is required",
		"cvv":      "Invalid CVV",
	},
}

// ValidateShipping checks every address field and returns one message per
// failing field. An empty map means the address is complete.
func ValidateShipping(info domain.Address) domain.FieldErrors {
	return collect(info, shippingMessages)
}

// ValidatePayment checks the card form. Cash payments never fail.
func ValidatePayment(method domain.PaymentMethod, info domain.PaymentInfo) domain.FieldErrors {
	if method == domain.PaymentCash {
		return domain.FieldErrors{}
	}
	return collect(info, paymentMessages)
}

// ValidateTerms reports whether the terms were agreed to.
func ValidateTerms(agreed bool) bool {
	return agreed
}

func collect(form any, messages map[string]map[string]string) domain.FieldErrors {
	out := domain.FieldErrors{}
	err := validator.Validate(form)
	if err == nil {
		return out
	}

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		// Only reachable if a form type is not a struct.
		slog.Error("unexpected validation failure", slog.String("error", err.Error()))
		return out
	}

	fields := verr.Fields()
	for field, tag := range verr.Tags() {
		if msg, ok := messages[field][tag]; ok {
			out[field] = msg
			continue
		}
		out[field] = field + " " + fields[field]
	}
	return out
}
