// Package event publishes checkout engine notifications to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/stylinx/internal/checkout"
	"github.com/utafrali/stylinx/internal/domain"
	pkgkafka "github.com/utafrali/stylinx/pkg/kafka"
)

// Kafka topics for checkout session events.
var (
	TopicItemAdded      = pkgkafka.Topic("cart", "item_added")
	TopicItemRemoved    = pkgkafka.Topic("cart", "item_removed")
	TopicStepChanged    = pkgkafka.Topic("checkout", "step_changed")
	TopicOrderCompleted = pkgkafka.Topic("checkout", "order_completed")
	TopicOrderFailed    = pkgkafka.Topic("checkout", "order_failed")
)

const (
	// AggregateTypeSession is the aggregate every event is keyed by.
	AggregateTypeSession = "checkout_session"
	// SourceCheckoutEngine identifies events emitted by this service.
	SourceCheckoutEngine = "stylinx-checkout"

	defaultPublishTimeout = 5 * time.Second
)

// LineData is the payload for cart.item_added and cart.item_removed.
type LineData struct {
	SessionID string `json:"session_id"`
	LineID    string `json:"line_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// StepChangedData is the payload for checkout.step_changed.
type StepChangedData struct {
	SessionID string `json:"session_id"`
	Step      int    `json:"step"`
	StepName  string `json:"step_name"`
}

// OrderLineData is one line of a placed order.
type OrderLineData struct {
	LineID    string `json:"line_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// OrderData is the payload for checkout.order_completed and
// checkout.order_failed. Card data is masked and the CVV is never sent.
type OrderData struct {
	SessionID      string          `json:"session_id"`
	OrderID        string          `json:"order_id"`
	Lines          []OrderLineData `json:"lines"`
	ShippingMethod string          `json:"shipping_method"`
	PaymentMethod  string          `json:"payment_method"`
	CardNumber     string          `json:"card_number,omitempty"`
	SubtotalAmount int64           `json:"subtotal_amount"`
	ShippingAmount int64           `json:"shipping_amount"`
	TotalAmount    int64           `json:"total_amount"`
	Status         string          `json:"status"`
	FailureReason  string          `json:"failure_reason,omitempty"`
}

// Publisher writes an envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer turns engine events into Kafka messages. It implements
// checkout.Listener; publish failures are logged and never reach the engine.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		publisher: publisher,
		logger:    logger,
		timeout:   defaultPublishTimeout,
		now:       time.Now,
	}
}

var _ checkout.Listener = (*Producer)(nil)

// Notify publishes evt. It is detached from the caller's cancellation so a
// request that ends right after a mutation still gets its event out.
func (p *Producer) Notify(ctx context.Context, evt checkout.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.publish(ctx, evt); err != nil {
		p.logger.WarnContext(ctx, "failed to publish checkout event",
			slog.String("event_type", string(evt.Type)),
			slog.String("session_id", evt.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) publish(ctx context.Context, evt checkout.Event) error {
	topic, data, ok := p.payload(evt)
	if !ok {
		return fmt.Errorf("unsupported event type %q", evt.Type)
	}

	envelope, err := pkgkafka.NewEventAt(p.now(), topicEventType(topic), evt.SessionID, AggregateTypeSession, SourceCheckoutEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", evt.Type, err)
	}
	if evt.Order != nil {
		envelope.WithMetadata("order_id", evt.Order.ID)
	}

	if err := p.publisher.Publish(ctx, topic, envelope); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Type, err)
	}

	p.logger.DebugContext(ctx, "published checkout event",
		slog.String("topic", topic),
		slog.String("session_id", evt.SessionID),
	)
	return nil
}

func (p *Producer) payload(evt checkout.Event) (string, any, bool) {
	switch evt.Type {
	case checkout.EventItemAdded:
		return TopicItemAdded, lineData(evt), true
	case checkout.EventItemRemoved:
		return TopicItemRemoved, lineData(evt), true
	case checkout.EventStepChanged:
		return TopicStepChanged, StepChangedData{
			SessionID: evt.SessionID,
			Step:      int(evt.Step),
			StepName:  evt.Step.String(),
		}, true
	case checkout.EventOrderCompleted:
		if evt.Order == nil {
			return "", nil, false
		}
		return TopicOrderCompleted, orderData(evt.SessionID, evt.Order, ""), true
	case checkout.EventOrderFailed:
		if evt.Order == nil {
			return TopicOrderFailed, OrderData{SessionID: evt.SessionID, FailureReason: evt.Reason}, true
		}
		return TopicOrderFailed, orderData(evt.SessionID, evt.Order, evt.Reason), true
	default:
		return "", nil, false
	}
}

// topicEventType strips the prefix, so "stylinx.cart.item_added" becomes
// "cart.item_added".
func topicEventType(topic string) string {
	return topic[len(pkgkafka.TopicPrefix)+1:]
}

func lineData(evt checkout.Event) LineData {
	data := LineData{SessionID: evt.SessionID, Title: evt.Title}
	if evt.Line != nil {
		data.LineID = evt.Line.ID
		data.UnitPrice = evt.Line.Price
		data.Quantity = evt.Line.Quantity
		data.Color = evt.Line.Color
		data.Size = evt.Line.Size
		if data.Title == "" {
			data.Title = evt.Line.Title
		}
	}
	return data
}

func orderData(sessionID string, o *domain.Order, reason string) OrderData {
	lines := make([]OrderLineData, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineData{
			LineID:    l.ID,
			Title:     l.Title,
			UnitPrice: l.Price,
			Quantity:  l.Quantity,
		})
	}
	data := OrderData{
		SessionID:      sessionID,
		OrderID:        o.ID,
		Lines:          lines,
		ShippingMethod: string(o.ShippingMethod),
		PaymentMethod:  string(o.PaymentMethod),
		SubtotalAmount: o.Subtotal,
		ShippingAmount: o.ShippingCost,
		TotalAmount:    o.Total,
		Status:         string(o.Status),
		FailureReason:  reason,
	}
	if o.PaymentMethod == domain.PaymentCredit {
		data.CardNumber = o.Payment.MaskedCardNumber()
	}
	return data
}
