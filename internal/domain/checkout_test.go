package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_String(t *testing.T) {
	assert.Equal(t, "shipping", StepShipping.String())
	assert.Equal(t, "payment", StepPayment.String())
	assert.Equal(t, "completed", StepCompleted.String())
	assert.Equal(t, "step(7)", Step(7).String())
	assert.True(t, StepCompleted.IsTerminal())
	assert.False(t, StepPayment.IsTerminal())
}

func TestParseShippingMethod(t *testing.T) {
	m, err := ParseShippingMethod(" Standard ")
	require.NoError(t, err)
	assert.Equal(t, ShippingStandard, m)

	_, err = ParseShippingMethod("overnight")
	assert.Error(t, err)
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("cash")
	require.NoError(t, err)
	assert.Equal(t, PaymentCash, m)

	_, err = ParsePaymentMethod("paypal")
	assert.Error(t, err)
}

func TestFieldErrors_Clone(t *testing.T) {
	var nilErrs FieldErrors
	assert.NotNil(t, nilErrs.Clone())

	orig := FieldErrors{"phone": "Invalid phone number"}
	cp := orig.Clone()
	cp["phone"] = "changed"
	assert.Equal(t, "Invalid phone number", orig["phone"])
}

// ============================================================================
// Address Tests
// ============================================================================

func TestAddress_SetGetEveryField(t *testing.T) {
	var a Address
	for _, f := range ShippingFields() {
		require.NoError(t, a.Set(f, "v-"+string(f)))
	}
	for _, f := range ShippingFields() {
		assert.Equal(t, "v-"+string(f), a.Get(f))
	}
}

func TestAddress_SetUnknownField(t *testing.T) {
	var a Address
	assert.Error(t, a.Set(ShippingField("planet"), "mars"))
}

func TestParseShippingField(t *testing.T) {
	f, err := ParseShippingField("zipcode")
	require.NoError(t, err)
	assert.Equal(t, FieldZipCode, f)

	_, err = ParseShippingField("planet")
	assert.Error(t, err)
}

// ============================================================================
// PaymentInfo Tests
// ============================================================================

func TestFormatCardNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"4111", "4111"},
		{"41111", "4111 1"},
		{"4111111111111111", "4111 1111 1111 1111"},
		{"4111-1111-1111-1111", "4111 1111 1111 1111"},
		{"41111111111111112222", "4111 1111 1111 1111"},
		{"abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCardNumber(tt.in), "input %q", tt.in)
	}
}

func TestFormatExpiry(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"1", "1"},
		{"12", "12/"},
		{"123", "12/3"},
		{"1225", "12/25"},
		{"12/25", "12/25"},
		{"122599", "12/25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatExpiry(tt.in), "input %q", tt.in)
	}
}

func TestPaymentInfo_SetFormatsInput(t *testing.T) {
	var p PaymentInfo
	require.NoError(t, p.Set(FieldCardNumber, "4111111111111111"))
	require.NoError(t, p.Set(FieldExpiryDate, "0927"))
	require.NoError(t, p.Set(FieldCVV, "123"))
	require.NoError(t, p.Set(FieldCardHolder, "Sam Doe"))

	assert.Equal(t, "4111 1111 1111 1111", p.Get(FieldCardNumber))
	assert.Equal(t, "09/27", p.Get(FieldExpiryDate))
	assert.Equal(t, "123", p.Get(FieldCVV))
	assert.Equal(t, "Sam Doe", p.Get(FieldCardHolder))
	assert.Error(t, p.Set(PaymentField("pin"), "0000"))
}

func TestPaymentInfo_MaskedCardNumber(t *testing.T) {
	p := PaymentInfo{CardNumber: "4111 1111 1111 1234"}
	assert.Equal(t, "************1234", p.MaskedCardNumber())
	assert.Equal(t, "", PaymentInfo{}.MaskedCardNumber())
	assert.Equal(t, "12", PaymentInfo{CardNumber: "12"}.MaskedCardNumber())
}

func TestOrder_ItemCount(t *testing.T) {
	o := Order{Lines: []CartLine{{Quantity: 2}, {Quantity: 1}}}
	assert.Equal(t, 3, o.ItemCount())
}
