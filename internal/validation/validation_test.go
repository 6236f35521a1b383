package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/stylinx/internal/domain"
)

func validAddress() domain.Address {
	return domain.Address{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Country:   "United Kingdom",
		Street:    "12 St James's Square",
		City:      "London",
		ZipCode:   "SW1Y 4JH",
		Phone:     "+44 20 7946 0958",
	}
}

func validCard() domain.PaymentInfo {
	return domain.PaymentInfo{
		CardNumber: "4111 1111 1111 1111",
		CardHolder: "Ada Lovelace",
		ExpiryDate: "09/27",
		CVV:        "123",
	}
}

// ============================================================================
// ValidateShipping Tests
// ============================================================================

func TestValidateShipping_Valid(t *testing.T) {
	assert.Empty(t, ValidateShipping(validAddress()))
}

func TestValidateShipping_StateIsOptional(t *testing.T) {
	a := validAddress()
	a.State = ""
	assert.Empty(t, ValidateShipping(a))
}

func TestValidateShipping_EvaluatesEveryField(t *testing.T) {
	errs := ValidateShipping(domain.Address{})

	assert.Equal(t, domain.FieldErrors{
		"firstName": "First name is required",
		"lastName":  "Last name is required",
		"country":   "Country is required",
		"street":    "Street name is required",
		"city":      "City is required",
		"zipCode":   "Zip code is required",
		"phone":     "Phone number is required",
	}, errs)
}

func TestValidateShipping_WhitespaceIsBlank(t *testing.T) {
	a := validAddress()
	a.City = "   "
	errs := ValidateShipping(a)
	assert.Equal(t, domain.FieldErrors{"city": "City is required"}, errs)
}

func TestValidateShipping_PhoneDigits(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		ok    bool
	}{
		{"ten digits", "5551234567", true},
		{"fifteen digits", "123456789012345", true},
		{"formatted", "(555) 123-4567", true},
		{"nine digits", "555123456", false},
		{"sixteen digits", "1234567890123456", false},
		{"letters only", "call me", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAddress()
			a.Phone = tt.phone
			errs := ValidateShipping(a)
			if tt.ok {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, "Invalid phone number", errs["phone"])
		})
	}
}

// ============================================================================
// ValidatePayment Tests
// ============================================================================

func TestValidatePayment_CashBypassesCard(t *testing.T) {
	assert.Empty(t, ValidatePayment(domain.PaymentCash, domain.PaymentInfo{}))
}

func TestValidatePayment_ValidCard(t *testing.T) {
	assert.Empty(t, ValidatePayment(domain.PaymentCredit, validCard()))
}

func TestValidatePayment_EmptyCard(t *testing.T) {
	errs := ValidatePayment(domain.PaymentCredit, domain.PaymentInfo{})

	assert.Equal(t, domain.FieldErrors{
		"cardNumber": "Card number is required",
		"cardHolder": "Card holder name is required",
		"expiryDate": "Expiry date is required",
		"cvv":        "CVV is required",
	}, errs)
}

func TestValidatePayment_MalformedCard(t *testing.T) {
	p := domain.PaymentInfo{
		CardNumber: "4111 1111 1111",
		CardHolder: "Ada Lovelace",
		ExpiryDate: "0927",
		CVV:        "12",
	}
	errs := ValidatePayment(domain.PaymentCredit, p)

	assert.Equal(t, domain.FieldErrors{
		"cardNumber": "Invalid card number (16 digits required)",
		"expiryDate": "Invalid format (MM/YY)",
		"cvv":        "Invalid CVV",
	}, errs)
}

func TestValidatePayment_FourDigitCVV(t *testing.T) {
	p := validCard()
	p.CVV = "1234"
	assert.Empty(t, ValidatePayment(domain.PaymentCredit, p))
}

func TestValidatePayment_NoPastDateCheck(t *testing.T) {
	p := validCard()
	p.ExpiryDate = "01/00"
	assert.Empty(t, ValidatePayment(domain.PaymentCredit, p))
}

func TestValidateTerms(t *testing.T) {
	assert.True(t, ValidateTerms(true))
	assert.False(t, ValidateTerms(false))
}
