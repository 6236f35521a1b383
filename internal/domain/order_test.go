package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleOrder(method PaymentMethod) Order {
	return Order{
		ID:            "ord-1",
		SessionID:     "sess-1",
		Lines:         []CartLine{{ID: "p-1", Price: 4000, Quantity: 2, Images: []string{"a.jpg"}}},
		Payment:       PaymentInfo{CardNumber: "4111 1111 1111 1111", CardHolder: "Sam Doe", ExpiryDate: "09/27", CVV: "123"},
		PaymentMethod: method,
		Subtotal:      8000,
		Total:         8000,
		Status:        OrderStatusCompleted,
	}
}

func TestOrder_ReceiptMasksCard(t *testing.T) {
	r := sampleOrder(PaymentCredit).Receipt()

	assert.Equal(t, "ord-1", r.ID)
	assert.Equal(t, "************1111", r.CardNumber)
	assert.Equal(t, "Sam Doe", r.CardHolder)
	assert.Equal(t, 2, r.ItemCount)
	assert.Equal(t, int64(8000), r.Total)
}

func TestOrder_ReceiptForCashHasNoCard(t *testing.T) {
	r := sampleOrder(PaymentCash).Receipt()

	assert.Empty(t, r.CardNumber)
	assert.Empty(t, r.CardHolder)
}

func TestOrder_ReceiptCopiesLines(t *testing.T) {
	o := sampleOrder(PaymentCash)
	r := o.Receipt()
	r.Lines[0].Images[0] = "changed.jpg"

	assert.Equal(t, "a.jpg", o.Lines[0].Images[0])
}

func TestOrder_WithStatusLeavesOriginal(t *testing.T) {
	o := sampleOrder(PaymentCash)
	failed := o.WithStatus(OrderStatusFailed)

	assert.Equal(t, OrderStatusFailed, failed.Status)
	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.Equal(t, o.ID, failed.ID)
}
