package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/stylinx/internal/domain"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
	"github.com/utafrali/stylinx/pkg/httpclient"
)

const orderEndpointName = "order-endpoint"

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback turns an open breaker into a retryable AppError.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("order endpoint is temporarily unavailable, please retry shortly")
}

// orderPayload is the wire form posted to the order endpoint. The CVV is
// never sent and the card number is masked.
type orderPayload struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	PlacedAt       string            `json:"placed_at"`
	Status         string            `json:"status"`
	Lines          []domain.CartLine `json:"lines"`
	Shipping       domain.Address    `json:"shipping_address"`
	Billing        domain.Address    `json:"billing_address"`
	ShippingMethod string            `json:"shipping_method"`
	PaymentMethod  string            `json:"payment_method"`
	CardHolder     string            `json:"card_holder,omitempty"`
	CardNumber     string            `json:"card_number,omitempty"`
	Subtotal       int64             `json:"subtotal_amount"`
	ShippingCost   int64             `json:"shipping_amount"`
	Total          int64             `json:"total_amount"`
}

func newOrderPayload(o *domain.Order) orderPayload {
	p := orderPayload{
		ID:             o.ID,
		SessionID:      o.SessionID,
		PlacedAt:       o.PlacedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Status:         string(o.Status),
		Lines:          o.Lines,
		Shipping:       o.Shipping,
		Billing:        o.Billing,
		ShippingMethod: string(o.ShippingMethod),
		PaymentMethod:  string(o.PaymentMethod),
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		Total:          o.Total,
	}
	if o.PaymentMethod == domain.PaymentCredit {
		p.CardHolder = o.Payment.CardHolder
		p.CardNumber = o.Payment.MaskedCardNumber()
	}
	return p
}

// HTTPSubmitter posts orders to a remote order endpoint.
type HTTPSubmitter struct {
	client HTTPDoer
	url    string
	logger *slog.Logger
}

// NewHTTPSubmitter creates a submitter posting to url through client.
func NewHTTPSubmitter(client HTTPDoer, url string, logger *slog.Logger) *HTTPSubmitter {
	return &HTTPSubmitter{client: client, url: url, logger: logger}
}

// Submit posts the order. The order id doubles as the idempotency key so
// retried requests are not placed twice.
func (s *HTTPSubmitter) Submit(ctx context.Context, order *domain.Order) error {
	body, err := json.Marshal(newOrderPayload(order))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", order.ID)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		var serverErr *httpclient.ServerError
		if errors.As(err, &serverErr) {
			return fmt.Errorf("post order: %w", httpclient.ParseResponseError(serverErr.Response(), orderEndpointName))
		}
		return fmt.Errorf("post order: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if httpclient.IsClientError(resp.StatusCode) {
			s.logger.WarnContext(ctx, "order rejected by order endpoint",
				slog.String("order_id", order.ID),
				slog.Int("status", resp.StatusCode),
			)
		}
		return fmt.Errorf("post order: %w", httpclient.ParseResponseError(resp, orderEndpointName))
	}
	_ = resp.Body.Close()

	s.logger.InfoContext(ctx, "order accepted by order endpoint",
		slog.String("order_id", order.ID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
