package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/pricing"
	"github.com/utafrali/stylinx/internal/validation"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

const tracerName = "github.com/utafrali/stylinx/internal/checkout"

// Outcome describes what a navigation command did.
type Outcome struct {
	Step        domain.Step        `json:"step"`
	Scope       domain.ErrorScope  `json:"scope,omitempty"`
	FieldErrors domain.FieldErrors `json:"fieldErrors,omitempty"`
	Order       *domain.Receipt    `json:"order,omitempty"`
	Message     string             `json:"message,omitempty"`
	// Ignored is set when a submission was already in flight.
	Ignored bool `json:"ignored,omitempty"`
	// Exited is set when going back left the checkout flow.
	Exited bool `json:"exited,omitempty"`
}

// AdvanceStep validates the active step and moves forward. On the shipping
// step a valid address moves to payment. On the payment step a valid card
// (or cash), agreed terms and a non-empty cart submit the order. Field
// errors are stored and returned in the outcome; blocking conditions are
// returned as errors.
func (e *Engine) AdvanceStep(ctx context.Context) (*Outcome, error) {
	e.mu.Lock()
	if e.processing {
		step := e.step
		e.mu.Unlock()
		Submissions.WithLabelValues("ignored").Inc()
		return &Outcome{Step: step, Ignored: true}, nil
	}
	if e.step.IsTerminal() {
		step := e.step
		e.mu.Unlock()
		return &Outcome{Step: step}, nil
	}

	switch e.step {
	case domain.StepShipping:
		errs := validation.ValidateShipping(e.shipping)
		e.shippingErrors = errs
		e.updatedAt = e.now().UTC()
		if len(errs) > 0 {
			step := e.step
			e.mu.Unlock()
			return &Outcome{Step: step, Scope: domain.ScopeShipping, FieldErrors: errs.Clone()}, nil
		}
		events := e.setStep(domain.StepPayment)
		e.mu.Unlock()

		e.emit(ctx, events)
		return &Outcome{Step: domain.StepPayment}, nil

	default:
		return e.submitLocked(ctx)
	}
}

// submitLocked runs the submission pipeline. It is entered with e.mu held and
// releases it before calling the submitter.
func (e *Engine) submitLocked(ctx context.Context) (*Outcome, error) {
	// A reset may clear processing while the previous submitter call is
	// still running. No second order starts until that call returns.
	if e.inFlight {
		step := e.step
		e.mu.Unlock()
		Submissions.WithLabelValues("ignored").Inc()
		return &Outcome{Step: step, Ignored: true}, nil
	}

	errs := validation.ValidatePayment(e.paymentMethod, e.payment)
	e.paymentErrors = errs
	e.updatedAt = e.now().UTC()
	if len(errs) > 0 {
		out := &Outcome{Step: e.step, Scope: domain.ScopePayment, FieldErrors: errs.Clone()}
		if !validation.ValidateTerms(e.termsAgreed) {
			out.Message = validation.TermsNotAgreedMessage
		}
		e.mu.Unlock()
		return out, nil
	}
	if !validation.ValidateTerms(e.termsAgreed) {
		e.mu.Unlock()
		return nil, apperrors.PreconditionFailed(validation.TermsNotAgreedMessage)
	}
	if e.ledger.IsEmpty() {
		e.mu.Unlock()
		return nil, apperrors.PreconditionFailed(EmptyCartMessage)
	}

	e.processing = true
	e.inFlight = true
	gen := e.generation
	order := e.buildOrderLocked()
	e.mu.Unlock()

	// The caller may still back out here; nothing has been committed yet.
	if err := ctx.Err(); err != nil {
		e.release(gen)
		Submissions.WithLabelValues("cancelled").Inc()
		e.logger.InfoContext(ctx, "order submission cancelled before commit",
			slog.String("session_id", e.id),
			slog.String("order_id", order.ID),
		)
		return nil, fmt.Errorf("submit order: %w", err)
	}

	err := e.callSubmitter(ctx, order)

	e.mu.Lock()
	e.inFlight = false
	current := gen == e.generation
	if current {
		e.processing = false
	}

	if err != nil {
		e.updatedAt = e.now().UTC()
		e.mu.Unlock()

		Submissions.WithLabelValues("failed").Inc()
		e.logger.ErrorContext(ctx, "order submission failed",
			slog.String("session_id", e.id),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		failed := order.WithStatus(domain.OrderStatusFailed)
		e.emit(ctx, []Event{{Type: EventOrderFailed, Reason: OrderFailedMessage, Order: failed}})
		return nil, apperrors.SubmissionFailed(OrderFailedMessage, err)
	}

	if current {
		e.ledger.Clear()
	} else {
		e.removeOrderedLocked(order)
	}
	e.lastOrder = order
	e.lastOrderID = order.ID
	var events []Event
	if current {
		events = e.setStep(domain.StepCompleted)
	}
	step := e.step
	e.updatedAt = e.now().UTC()
	e.mu.Unlock()

	Submissions.WithLabelValues("completed").Inc()
	e.logger.InfoContext(ctx, "order placed",
		slog.String("session_id", e.id),
		slog.String("order_id", order.ID),
		slog.Int64("total", order.Total),
		slog.Int("item_count", order.ItemCount()),
	)
	events = append(events, Event{Type: EventOrderCompleted, Order: order})
	e.emit(ctx, events)

	return &Outcome{Step: step, Order: order.Receipt()}, nil
}

// removeOrderedLocked drops the lines a stale submission ordered. Lines added
// or changed after the reset are kept.
func (e *Engine) removeOrderedLocked(order *domain.Order) {
	for _, ordered := range order.Lines {
		line, ok := e.ledger.Find(ordered.ID)
		if !ok || line.Quantity != ordered.Quantity || line.Price != ordered.Price {
			continue
		}
		e.ledger.Remove(ordered.ID)
	}
}

// callSubmitter invokes the submitter outside the lock. Once started the call
// is detached from caller cancellation and bounded by the submit timeout. A
// panicking submitter is reported as a failed submission so the processing
// flag is always released.
func (e *Engine) callSubmitter(ctx context.Context, order *domain.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("order submitter panicked: %v", r)
		}
	}()

	if e.submitter == nil {
		return fmt.Errorf("no order submitter configured")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.SubmitOrder")
	span.SetAttributes(
		attribute.String("checkout.session_id", e.id),
		attribute.String("checkout.order_id", order.ID),
		attribute.Int64("checkout.total", order.Total),
		attribute.String("checkout.payment_method", string(order.PaymentMethod)),
	)
	defer span.End()

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.submitTimeout)
	defer cancel()

	start := time.Now()
	err = e.submitter.Submit(submitCtx, order)
	SubmissionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// release clears the processing flag unless a reset started a newer
// generation in the meantime.
func (e *Engine) release(gen uint64) {
	e.mu.Lock()
	e.inFlight = false
	if gen == e.generation {
		e.processing = false
	}
	e.mu.Unlock()
}

// buildOrderLocked snapshots the session into an immutable order.
func (e *Engine) buildOrderLocked() *domain.Order {
	billing := e.billing
	if e.copyBilling {
		billing = e.shipping
	}
	subtotal := e.ledger.Subtotal()
	return &domain.Order{
		ID:             newOrderID(),
		SessionID:      e.id,
		PlacedAt:       e.now().UTC(),
		Lines:          e.ledger.Lines(),
		Shipping:       e.shipping,
		Billing:        billing,
		Payment:        e.payment,
		ShippingMethod: e.shippingMethod,
		PaymentMethod:  e.paymentMethod,
		Subtotal:       subtotal,
		ShippingCost:   pricing.ShippingCost(e.shippingMethod),
		Total:          pricing.Total(subtotal, e.shippingMethod),
		Status:         domain.OrderStatusCompleted,
	}
}
