package domain

import (
	"fmt"
	"strings"
)

// ShippingField identifies one field of the address form.
type ShippingField string

const (
	FieldFirstName ShippingField = "firstName"
	FieldLastName  ShippingField = "lastName"
	FieldCountry   ShippingField = "country"
	FieldStreet    ShippingField = "street"
	FieldCity      ShippingField = "city"
	FieldState     ShippingField = "state"
	FieldZipCode   ShippingField = "zipCode"
	FieldPhone     ShippingField = "phone"
)

// ShippingFields returns every address field in form order.
func ShippingFields() []ShippingField {
	return []ShippingField{
		FieldFirstName, FieldLastName, FieldCountry, FieldStreet,
		FieldCity, FieldState, FieldZipCode, FieldPhone,
	}
}

// ParseShippingField converts s into a ShippingField.
func ParseShippingField(s string) (ShippingField, error) {
	for _, f := range ShippingFields() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown shipping field %q", s)
}

// Address is the shape shared by the shipping and billing forms. State is the
// only optional field.
type Address struct {
	FirstName string `json:"firstName" validate:"notblank"`
	LastName  string `json:"lastName" validate:"notblank"`
	Country   string `json:"country" validate:"notblank"`
	Street    string `json:"street" validate:"notblank"`
	City      string `json:"city" validate:"notblank"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode" validate:"notblank"`
	Phone     string `json:"phone" validate:"notblank,phone_digits"`
}

// Set assigns value to the given field.
func (a *Address) Set(field ShippingField, value string) error {
	switch field {
	case FieldFirstName:
		a.FirstName = value
	case FieldLastName:
		a.LastName = value
	case FieldCountry:
		a.Country = value
	case FieldStreet:
		a.Street = value
	case FieldCity:
		a.City = value
	case FieldState:
		a.State = value
	case FieldZipCode:
		a.ZipCode = value
	case FieldPhone:
		a.Phone = value
	default:
		return fmt.Errorf("unknown shipping field %q", field)
	}
	return nil
}

// Get returns the value of the given field.
func (a Address) Get(field ShippingField) string {
	switch field {
	case FieldFirstName:
		return a.FirstName
	case FieldLastName:
		return a.LastName
	case FieldCountry:
		return a.Country
	case FieldStreet:
		return a.Street
	case FieldCity:
		return a.City
	case FieldState:
		return a.State
	case FieldZipCode:
		return a.ZipCode
	case FieldPhone:
		return a.Phone
	default:
		return ""
	}
}
