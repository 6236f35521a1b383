package domain

import "time"

// OrderStatus is the lifecycle state of a placed order.
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order is the immutable snapshot handed to an order submitter. It is built
// under the engine lock and never mutated afterwards.
type Order struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId,omitempty"`
	PlacedAt       time.Time      `json:"placedAt"`
	Lines          []CartLine     `json:"lines"`
	Shipping       Address        `json:"shipping"`
	Billing        Address        `json:"billing"`
	Payment        PaymentInfo    `json:"payment"`
	ShippingMethod ShippingMethod `json:"shippingMethod"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	Subtotal       int64          `json:"subtotal"`
	ShippingCost   int64          `json:"shippingCost"`
	Total          int64          `json:"total"`
	Status         OrderStatus    `json:"status"`
}

// ItemCount returns the total number of units in the order.
func (o Order) ItemCount() int {
	var n int
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// WithStatus returns a copy of the order carrying status.
func (o Order) WithStatus(status OrderStatus) *Order {
	o.Status = status
	return &o
}

// Receipt is the shopper-facing form of an order. It carries the masked card
// number only and never the CVV.
type Receipt struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId,omitempty"`
	PlacedAt       time.Time      `json:"placedAt"`
	Lines          []CartLine     `json:"lines"`
	Shipping       Address        `json:"shipping"`
	Billing        Address        `json:"billing"`
	CardHolder     string         `json:"cardHolder,omitempty"`
	CardNumber     string         `json:"cardNumber,omitempty"`
	ShippingMethod ShippingMethod `json:"shippingMethod"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	Subtotal       int64          `json:"subtotal"`
	ShippingCost   int64          `json:"shippingCost"`
	Total          int64          `json:"total"`
	ItemCount      int            `json:"itemCount"`
	Status         OrderStatus    `json:"status"`
}

// Receipt builds the shopper-facing form of the order. Card details are only
// present for credit card orders.
func (o Order) Receipt() *Receipt {
	lines := make([]CartLine, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = l.Clone()
	}
	r := &Receipt{
		ID:             o.ID,
		SessionID:      o.SessionID,
		PlacedAt:       o.PlacedAt,
		Lines:          lines,
		Shipping:       o.Shipping,
		Billing:        o.Billing,
		ShippingMethod: o.ShippingMethod,
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		Total:          o.Total,
		ItemCount:      o.ItemCount(),
		Status:         o.Status,
	}
	if o.PaymentMethod == PaymentCredit {
		r.CardHolder = o.Payment.CardHolder
		r.CardNumber = o.Payment.MaskedCardNumber()
	}
	return r
}
