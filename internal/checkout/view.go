package checkout

import (
	"time"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/pricing"
)

// PaymentView is the card form as shown back to the shopper. The CVV itself
// is never echoed.
type PaymentView struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	ExpiryDate string `json:"expiryDate"`
	CVVEntered bool   `json:"cvvEntered"`
}

// View is a consistent read of every query the engine answers.
type View struct {
	SessionID          string                `json:"sessionId"`
	Lines              []domain.CartLine     `json:"lines"`
	ItemCount          int                   `json:"itemCount"`
	Subtotal           int64                 `json:"subtotal"`
	ShippingCost       int64                 `json:"shippingCost"`
	Total              int64                 `json:"total"`
	CurrentStep        domain.Step           `json:"currentStep"`
	ShippingMethod     domain.ShippingMethod `json:"shippingMethod"`
	PaymentMethod      domain.PaymentMethod  `json:"paymentMethod"`
	Shipping           domain.Address        `json:"shipping"`
	Billing            domain.Address        `json:"billing"`
	Payment            PaymentView           `json:"payment"`
	CopyBillingAddress bool                  `json:"copyBillingAddress"`
	TermsAgreed        bool                  `json:"termsAgreed"`
	CouponCode         string                `json:"couponCode"`
	IsProcessing       bool                  `json:"isProcessing"`
	ShippingErrors     domain.FieldErrors    `json:"shippingErrors"`
	PaymentErrors      domain.FieldErrors    `json:"paymentErrors"`
	LastOrderID        string                `json:"lastOrderId,omitempty"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// View returns every query result taken under a single lock.
func (e *Engine) View() *View {
	e.mu.Lock()
	defer e.mu.Unlock()

	subtotal := e.ledger.Subtotal()
	return &View{
		SessionID:      e.id,
		Lines:          e.ledger.Lines(),
		ItemCount:      e.ledger.ItemCount(),
		Subtotal:       subtotal,
		ShippingCost:   pricing.ShippingCost(e.shippingMethod),
		Total:          pricing.Total(subtotal, e.shippingMethod),
		CurrentStep:    e.step,
		ShippingMethod: e.shippingMethod,
		PaymentMethod:  e.paymentMethod,
		Shipping:       e.shipping,
		Billing:        e.billing,
		Payment: PaymentView{
			CardNumber: e.payment.CardNumber,
			CardHolder: e.payment.CardHolder,
			ExpiryDate: e.payment.ExpiryDate,
			CVVEntered: e.payment.CVV != "",
		},
		CopyBillingAddress: e.copyBilling,
		TermsAgreed:        e.termsAgreed,
		CouponCode:         e.couponCode,
		IsProcessing:       e.processing,
		ShippingErrors:     e.shippingErrors.Clone(),
		PaymentErrors:      e.paymentErrors.Clone(),
		LastOrderID:        e.lastOrderID,
		UpdatedAt:          e.updatedAt,
	}
}
