// Package pricing derives checkout costs from the cart subtotal and the
// selected shipping method. Amounts are in cents and nothing is cached.
package pricing

import "github.com/utafrali/stylinx/internal/domain"

// StandardShippingCost is charged for both standard and fast delivery.
const StandardShippingCost int64 = 970

// ShippingCost returns the delivery charge for method. Unknown methods are
// charged like free shipping; callers validate methods with
// domain.ParseShippingMethod before they reach the engine.
func ShippingCost(method domain.ShippingMethod) int64 {
	switch method {
	case domain.ShippingStandard, domain.ShippingFast:
		return StandardShippingCost
	default:
		return 0
	}
}

// Total returns subtotal plus the shipping cost for method.
func Total(subtotal int64, method domain.ShippingMethod) int64 {
	return subtotal + ShippingCost(method)
}
