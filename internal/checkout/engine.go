// Package checkout implements the cart and checkout orchestration engine: the
// cart ledger operations, the step machine that guards each checkout step, and
// the order submission pipeline.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/pricing"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

// Messages shown to the shopper by the collaborator.
const (
	EmptyCartMessage    = "Your cart is empty. Please add items before checking out."
	OrderFailedMessage  = "There was an error processing your order. Please try again."
	EmptyCouponMessage  = "Please enter a coupon code first"
	ProcessingMessage   = "order is being processed"
	couponAppliedFormat = "Coupon code %q has been applied!"
)

// DefaultSubmitTimeout bounds a single call to the order submitter.
const DefaultSubmitTimeout = 30 * time.Second

// OrderSubmitter commits a placed order. Implementations must be safe for
// concurrent use; the engine never calls Submit while holding its lock.
type OrderSubmitter interface {
	Submit(ctx context.Context, order *domain.Order) error
}

// OrderSubmitterFunc adapts a function to the OrderSubmitter interface.
type OrderSubmitterFunc func(ctx context.Context, order *domain.Order) error

// Submit calls f(ctx, order).
func (f OrderSubmitterFunc) Submit(ctx context.Context, order *domain.Order) error {
	return f(ctx, order)
}

// Option customises an Engine.
type Option func(*Engine)

// WithSubmitTimeout sets the bound for each order submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.submitTimeout = d
		}
	}
}

// WithListener sets the event listener.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener = l
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithState restores a previously saved session.
func WithState(st *domain.SessionState) Option {
	return func(e *Engine) { e.restore(st) }
}

// Engine owns one shopper's cart and checkout session. All methods are safe
// for concurrent use; every command is applied as one atomic transition.
type Engine struct {
	mu sync.Mutex

	id     string
	ledger *domain.Ledger

	shipping       domain.Address
	billing        domain.Address
	payment        domain.PaymentInfo
	copyBilling    bool
	shippingMethod domain.ShippingMethod
	paymentMethod  domain.PaymentMethod
	termsAgreed    bool
	couponCode     string

	step           domain.Step
	processing     bool
	inFlight       bool
	generation     uint64
	shippingErrors domain.FieldErrors
	paymentErrors  domain.FieldErrors
	lastOrder      *domain.Order
	lastOrderID    string
	updatedAt      time.Time

	submitter     OrderSubmitter
	listener      Listener
	logger        *slog.Logger
	submitTimeout time.Duration
	now           func() time.Time
}

// NewEngine creates an engine for the given session. Shipping defaults to
// free and payment to credit card.
func NewEngine(sessionID string, submitter OrderSubmitter, opts ...Option) *Engine {
	e := &Engine{
		id:             sessionID,
		ledger:         domain.NewLedger(),
		shippingMethod: domain.ShippingFree,
		paymentMethod:  domain.PaymentCredit,
		step:           domain.StepShipping,
		shippingErrors: domain.FieldErrors{},
		paymentErrors:  domain.FieldErrors{},
		submitter:      submitter,
		listener:       noopListener{},
		logger:         slog.Default(),
		submitTimeout:  DefaultSubmitTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.updatedAt.IsZero() {
		e.updatedAt = e.now().UTC()
	}
	return e
}

// ID returns the session id.
func (e *Engine) ID() string { return e.id }

// emit delivers events outside the lock.
func (e *Engine) emit(ctx context.Context, events []Event) {
	for _, evt := range events {
		evt.SessionID = e.id
		e.listener.Notify(ctx, evt)
	}
}

// mutate runs fn under the lock unless a submission is in flight, then
// delivers whatever events fn produced.
func (e *Engine) mutate(ctx context.Context, fn func() []Event) error {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return apperrors.Conflict(ProcessingMessage)
	}
	events := fn()
	e.updatedAt = e.now().UTC()
	e.mu.Unlock()

	e.emit(ctx, events)
	return nil
}

// setStep changes the step and returns the matching event, or nil when the
// step is unchanged. Callers hold the lock.
func (e *Engine) setStep(step domain.Step) []Event {
	if e.step == step {
		return nil
	}
	e.step = step
	StepTransitions.WithLabelValues(step.String()).Inc()
	return []Event{{Type: EventStepChanged, Step: step}}
}

// ============================================================================
// Cart ledger commands
// ============================================================================

func validateLine(line domain.CartLine) error {
	switch {
	case strings.TrimSpace(line.ID) == "":
		return apperrors.InvalidInput("line id is required")
	case line.Price < 0:
		return apperrors.InvalidInput("price must not be negative")
	case len(line.Images) == 0:
		return apperrors.InvalidInput("at least one image is required")
	case line.Quantity < 1:
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	return nil
}

// AddToCart inserts line or replaces the existing line with the same id.
func (e *Engine) AddToCart(ctx context.Context, line domain.CartLine) error {
	if err := validateLine(line); err != nil {
		return err
	}
	return e.mutate(ctx, func() []Event {
		e.ledger.Add(line)
		CartMutations.WithLabelValues("add").Inc()
		added := line.Clone()
		return []Event{{Type: EventItemAdded, Line: &added, Title: added.Title}}
	})
}

// IncreaseQty adds one unit to the line. Unknown ids are ignored.
func (e *Engine) IncreaseQty(ctx context.Context, id string) error {
	return e.mutate(ctx, func() []Event {
		if e.ledger.IncreaseQty(id) {
			CartMutations.WithLabelValues("increase").Inc()
		}
		return nil
	})
}

// DecreaseQty removes one unit from the line, never going below one.
// Unknown ids are ignored.
func (e *Engine) DecreaseQty(ctx context.Context, id string) error {
	return e.mutate(ctx, func() []Event {
		if e.ledger.DecreaseQty(id) {
			CartMutations.WithLabelValues("decrease").Inc()
		}
		return nil
	})
}

// RemoveFromCart deletes the line and emits item_removed with its title.
// Unknown ids are ignored.
func (e *Engine) RemoveFromCart(ctx context.Context, id string) error {
	return e.mutate(ctx, func() []Event {
		removed, ok := e.ledger.Remove(id)
		if !ok {
			return nil
		}
		CartMutations.WithLabelValues("remove").Inc()
		return []Event{{Type: EventItemRemoved, Line: &removed, Title: removed.Title}}
	})
}

// ============================================================================
// Form commands
// ============================================================================

// SetShippingField updates one address field, mirrors it into the billing
// address when copying is on, and clears that field's stored error.
func (e *Engine) SetShippingField(ctx context.Context, field domain.ShippingField, value string) error {
	if _, err := domain.ParseShippingField(string(field)); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return e.mutate(ctx, func() []Event {
		_ = e.shipping.Set(field, value)
		if e.copyBilling {
			_ = e.billing.Set(field, value)
		}
		delete(e.shippingErrors, string(field))
		return nil
	})
}

// SetPaymentField updates one card field and clears its stored error. Card
// number and expiry input are normalised as the form displays them.
func (e *Engine) SetPaymentField(ctx context.Context, field domain.PaymentField, value string) error {
	if _, err := domain.ParsePaymentField(string(field)); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return e.mutate(ctx, func() []Event {
		_ = e.payment.Set(field, value)
		delete(e.paymentErrors, string(field))
		return nil
	})
}

// SetShippingMethod selects the delivery option.
func (e *Engine) SetShippingMethod(ctx context.Context, m domain.ShippingMethod) error {
	parsed, err := domain.ParseShippingMethod(string(m))
	if err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return e.mutate(ctx, func() []Event {
		e.shippingMethod = parsed
		return nil
	})
}

// SetPaymentMethod selects cash or credit card.
func (e *Engine) SetPaymentMethod(ctx context.Context, m domain.PaymentMethod) error {
	parsed, err := domain.ParsePaymentMethod(string(m))
	if err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return e.mutate(ctx, func() []Event {
		e.paymentMethod = parsed
		return nil
	})
}

// SetTermsAgreed records the terms checkbox.
func (e *Engine) SetTermsAgreed(ctx context.Context, agreed bool) error {
	return e.mutate(ctx, func() []Event {
		e.termsAgreed = agreed
		return nil
	})
}

// SetCouponCode stores the coupon input.
func (e *Engine) SetCouponCode(ctx context.Context, code string) error {
	return e.mutate(ctx, func() []Event {
		e.couponCode = code
		return nil
	})
}

// ToggleCopyBillingAddress flips the copy flag. Turning it on copies the
// shipping address into billing; turning it off clears billing.
func (e *Engine) ToggleCopyBillingAddress(ctx context.Context) error {
	return e.mutate(ctx, func() []Event {
		e.copyBilling = !e.copyBilling
		if e.copyBilling {
			e.billing = e.shipping
		} else {
			e.billing = domain.Address{}
		}
		return nil
	})
}

// ApplyCoupon acknowledges a non-empty coupon code. It never changes totals.
func (e *Engine) ApplyCoupon(ctx context.Context) (string, error) {
	e.mu.Lock()
	code := strings.TrimSpace(e.couponCode)
	e.mu.Unlock()

	if code == "" {
		return "", apperrors.PreconditionFailed(EmptyCouponMessage)
	}
	e.logger.InfoContext(ctx, "coupon acknowledged",
		slog.String("session_id", e.id),
		slog.String("coupon_code", code),
	)
	return fmt.Sprintf(couponAppliedFormat, code), nil
}

// ============================================================================
// Navigation
// ============================================================================

// GoToPreviousStep moves from payment back to shipping. From shipping or the
// completed step the flow is exited instead, reported through Outcome.Exited.
func (e *Engine) GoToPreviousStep(ctx context.Context) (*Outcome, error) {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return nil, apperrors.Conflict(ProcessingMessage)
	}

	var events []Event
	out := &Outcome{}
	switch e.step {
	case domain.StepPayment:
		events = e.setStep(domain.StepShipping)
	default:
		out.Exited = true
	}
	out.Step = e.step
	e.updatedAt = e.now().UTC()
	e.mu.Unlock()

	e.emit(ctx, events)
	return out, nil
}

// ResetCheckout is called whenever the checkout flow is re-entered. It goes
// back to the shipping step, releases the processing flag and clears the
// coupon. Field values and stored errors are kept. A submission still in
// flight finishes, but no longer moves the step.
func (e *Engine) ResetCheckout(ctx context.Context) {
	e.mu.Lock()
	e.generation++
	e.processing = false
	e.couponCode = ""
	events := e.setStep(domain.StepShipping)
	e.updatedAt = e.now().UTC()
	e.mu.Unlock()

	e.emit(ctx, events)
}

// ============================================================================
// Queries
// ============================================================================

// CartLines returns a copy of the cart lines in insertion order.
func (e *Engine) CartLines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Lines()
}

// Subtotal returns the cart subtotal in cents.
func (e *Engine) Subtotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Subtotal()
}

// ShippingCost returns the cost of the selected shipping method.
func (e *Engine) ShippingCost() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pricing.ShippingCost(e.shippingMethod)
}

// Total returns subtotal plus shipping.
func (e *Engine) Total() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pricing.Total(e.ledger.Subtotal(), e.shippingMethod)
}

// CurrentStep returns the active checkout step.
func (e *Engine) CurrentStep() domain.Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// IsProcessing reports whether an order submission is in flight.
func (e *Engine) IsProcessing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processing
}

// FieldErrors returns a copy of the stored errors for scope.
func (e *Engine) FieldErrors(scope domain.ErrorScope) domain.FieldErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	if scope == domain.ScopePayment {
		return e.paymentErrors.Clone()
	}
	return e.shippingErrors.Clone()
}

// LastOrder returns the receipt of the most recently completed order, if
// any. It is not restored from a snapshot.
func (e *Engine) LastOrder() *domain.Receipt {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastOrder == nil {
		return nil
	}
	return e.lastOrder.Receipt()
}

// UpdatedAt returns the time of the last accepted command.
func (e *Engine) UpdatedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updatedAt
}

// Snapshot returns the persistable session state.
func (e *Engine) Snapshot() *domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	payment := e.payment
	payment.CVV = ""
	return &domain.SessionState{
		ID:                 e.id,
		Lines:              e.ledger.Lines(),
		Shipping:           e.shipping,
		Billing:            e.billing,
		Payment:            payment,
		CopyBillingAddress: e.copyBilling,
		ShippingMethod:     e.shippingMethod,
		PaymentMethod:      e.paymentMethod,
		TermsAgreed:        e.termsAgreed,
		CouponCode:         e.couponCode,
		CurrentStep:        e.step,
		ShippingErrors:     e.shippingErrors.Clone(),
		PaymentErrors:      e.paymentErrors.Clone(),
		LastOrderID:        e.lastOrderID,
		UpdatedAt:          e.updatedAt,
	}
}

func (e *Engine) restore(st *domain.SessionState) {
	if st == nil {
		return
	}
	if st.ID != "" {
		e.id = st.ID
	}
	e.ledger = domain.NewLedger(st.Lines...)
	e.shipping = st.Shipping
	e.billing = st.Billing
	e.payment = st.Payment
	e.copyBilling = st.CopyBillingAddress
	if m, err := domain.ParseShippingMethod(string(st.ShippingMethod)); err == nil {
		e.shippingMethod = m
	}
	if m, err := domain.ParsePaymentMethod(string(st.PaymentMethod)); err == nil {
		e.paymentMethod = m
	}
	e.termsAgreed = st.TermsAgreed
	e.couponCode = st.CouponCode
	if st.CurrentStep >= domain.StepShipping && st.CurrentStep <= domain.StepCompleted {
		e.step = st.CurrentStep
	}
	e.shippingErrors = st.ShippingErrors.Clone()
	e.paymentErrors = st.PaymentErrors.Clone()
	e.lastOrderID = st.LastOrderID
	e.updatedAt = st.UpdatedAt
}

func newOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
