package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/validation"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

// ============================================================================
// Test helpers
// ============================================================================

type fakeSubmitter struct {
	mu      sync.Mutex
	orders  []*domain.Order
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(sub OrderSubmitter, rec *recorder) *Engine {
	opts := []Option{WithLogger(discardLogger()), WithSubmitTimeout(2 * time.Second)}
	if rec != nil {
		opts = append(opts, WithListener(rec))
	}
	return NewEngine("session-1", sub, opts...)
}

func shirt(qty int) domain.CartLine {
	return domain.CartLine{
		ID:       "p-1",
		Title:    "Linen shirt",
		Price:    4000,
		Images:   []string{"https://cdn.example.com/p-1.jpg"},
		Quantity: qty,
		Color:    "white",
		Size:     "L",
	}
}

func fillShipping(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	values := map[domain.ShippingField]string{
		domain.FieldFirstName: "Ada",
		domain.FieldLastName:  "Lovelace",
		domain.FieldCountry:   "United Kingdom",
		domain.FieldStreet:    "12 St James's Square",
		domain.FieldCity:      "London",
		domain.FieldZipCode:   "SW1Y 4JH",
		domain.FieldPhone:     "020 7946 0958",
	}
	for f, v := range values {
		require.NoError(t, e.SetShippingField(ctx, f, v))
	}
}

func fillCard(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCardNumber, "4111111111111111"))
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCardHolder, "Ada Lovelace"))
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldExpiryDate, "0927"))
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCVV, "123"))
}

// readyEngine returns an engine on the payment step with a valid card, terms
// agreed and one line in the cart.
func readyEngine(t *testing.T, sub OrderSubmitter, rec *recorder) *Engine {
	t.Helper()
	ctx := context.Background()
	e := newTestEngine(sub, rec)
	require.NoError(t, e.AddToCart(ctx, shirt(2)))
	fillShipping(t, e)
	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StepPayment, out.Step)
	fillCard(t, e)
	require.NoError(t, e.SetTermsAgreed(ctx, true))
	return e
}

// ============================================================================
// Defaults and pricing
// ============================================================================

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(&fakeSubmitter{}, nil)

	v := e.View()
	assert.Equal(t, domain.StepShipping, v.CurrentStep)
	assert.Equal(t, domain.ShippingFree, v.ShippingMethod)
	assert.Equal(t, domain.PaymentCredit, v.PaymentMethod)
	assert.False(t, v.IsProcessing)
	assert.Empty(t, v.Lines)
}

func TestSetMethods_StoreCanonicalValue(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)

	require.NoError(t, e.AddToCart(ctx, shirt(2)))
	require.NoError(t, e.SetShippingMethod(ctx, "Standard"))
	require.NoError(t, e.SetPaymentMethod(ctx, " CASH "))

	v := e.View()
	assert.Equal(t, domain.ShippingStandard, v.ShippingMethod)
	assert.Equal(t, domain.PaymentCash, v.PaymentMethod)
	assert.Equal(t, int64(970), v.ShippingCost)
	assert.Equal(t, int64(8970), v.Total)
}

func TestTotals_StandardShipping(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)

	require.NoError(t, e.AddToCart(ctx, shirt(2)))
	require.NoError(t, e.SetShippingMethod(ctx, domain.ShippingStandard))

	assert.Equal(t, int64(8000), e.Subtotal())
	assert.Equal(t, int64(970), e.ShippingCost())
	assert.Equal(t, int64(8970), e.Total())
}

// ============================================================================
// Cart commands
// ============================================================================

func TestAddToCart_RejectsMalformedLines(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)

	bad := []domain.CartLine{
		func() domain.CartLine { l := shirt(1); l.ID = ""; return l }(),
		func() domain.CartLine { l := shirt(1); l.Price = -1; return l }(),
		func() domain.CartLine { l := shirt(1); l.Images = nil; return l }(),
		shirt(0),
	}
	for _, line := range bad {
		err := e.AddToCart(ctx, line)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	}
	assert.Empty(t, e.CartLines())
}

func TestCartCommands_EmitEvents(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(&fakeSubmitter{}, rec)

	require.NoError(t, e.AddToCart(ctx, shirt(1)))
	require.NoError(t, e.IncreaseQty(ctx, "p-1"))
	require.NoError(t, e.DecreaseQty(ctx, "p-1"))
	require.NoError(t, e.DecreaseQty(ctx, "p-1"))
	require.NoError(t, e.RemoveFromCart(ctx, "p-1"))
	require.NoError(t, e.RemoveFromCart(ctx, "p-1"))

	added := rec.ofType(EventItemAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "session-1", added[0].SessionID)
	assert.Equal(t, "p-1", added[0].Line.ID)

	removed := rec.ofType(EventItemRemoved)
	require.Len(t, removed, 1, "removing an unknown id is silent")
	assert.Equal(t, "Linen shirt", removed[0].Title)
}

func TestDecreaseQty_NeverRemoves(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)
	require.NoError(t, e.AddToCart(ctx, shirt(1)))

	require.NoError(t, e.DecreaseQty(ctx, "p-1"))

	lines := e.CartLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

// ============================================================================
// Step machine
// ============================================================================

func TestAdvanceStep_ShippingInvalidStaysOnStepOne(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(&fakeSubmitter{}, rec)

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShipping, out.Step)
	assert.Equal(t, domain.ScopeShipping, out.Scope)
	assert.Len(t, out.FieldErrors, 7)
	assert.Equal(t, "First name is required", e.FieldErrors(domain.ScopeShipping)["firstName"])
	assert.Empty(t, rec.ofType(EventStepChanged))
}

func TestAdvanceStep_ShippingValidMovesToPayment(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(&fakeSubmitter{}, rec)
	fillShipping(t, e)

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, out.Step)
	assert.Empty(t, e.FieldErrors(domain.ScopeShipping))

	changed := rec.ofType(EventStepChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.StepPayment, changed[0].Step)
}

func TestSetShippingField_ClearsThatFieldsError(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)

	require.NoError(t, e.SetShippingField(ctx, domain.FieldCity, "London"))

	errs := e.FieldErrors(domain.ScopeShipping)
	assert.NotContains(t, errs, "city")
	assert.Contains(t, errs, "firstName")
}

func TestAdvanceStep_PaymentInvalidStoresErrors(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCVV, "1"))

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, out.Step)
	assert.Equal(t, domain.ScopePayment, out.Scope)
	assert.Equal(t, "Invalid CVV", out.FieldErrors["cvv"])
	assert.Equal(t, 0, sub.calls())
}

func TestAdvanceStep_PaymentInvalidAlsoReportsTerms(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCVV, "1"))
	require.NoError(t, e.SetTermsAgreed(ctx, false))

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ScopePayment, out.Scope)
	assert.Equal(t, "Invalid CVV", out.FieldErrors["cvv"])
	assert.Equal(t, validation.TermsNotAgreedMessage, out.Message)
	assert.Equal(t, 0, sub.calls())
}

func TestAdvanceStep_TermsNotAgreed(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)
	require.NoError(t, e.SetTermsAgreed(ctx, false))

	_, err := e.AdvanceStep(ctx)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PRECONDITION_FAILED", appErr.Code)
	assert.Equal(t, "You must agree to the terms and conditions", appErr.Message)
	assert.Equal(t, domain.StepPayment, e.CurrentStep())
	assert.Equal(t, 0, sub.calls())
}

func TestAdvanceStep_CashBypassesCardValidation(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := newTestEngine(sub, nil)
	require.NoError(t, e.AddToCart(ctx, shirt(1)))
	fillShipping(t, e)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.NoError(t, e.SetPaymentMethod(ctx, domain.PaymentCash))
	require.NoError(t, e.SetTermsAgreed(ctx, true))

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, out.Step)
	assert.Equal(t, 1, sub.calls())
}

func TestAdvanceStep_EmptyCartIsPrecondition(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := newTestEngine(sub, nil)
	fillShipping(t, e)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.NoError(t, e.SetPaymentMethod(ctx, domain.PaymentCash))
	require.NoError(t, e.SetTermsAgreed(ctx, true))

	_, err = e.AdvanceStep(ctx)

	require.True(t, errors.Is(err, apperrors.ErrPrecondition))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, EmptyCartMessage, appErr.Message)
	assert.Equal(t, domain.StepPayment, e.CurrentStep())
	assert.False(t, e.IsProcessing())
	assert.Equal(t, 0, sub.calls())
}

func TestAdvanceStep_CompletedIsNoop(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, out.Step)
	assert.Equal(t, 1, sub.calls())
}

func TestGoToPreviousStep(t *testing.T) {
	ctx := context.Background()
	e := readyEngine(t, &fakeSubmitter{}, nil)

	out, err := e.GoToPreviousStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShipping, out.Step)
	assert.False(t, out.Exited)

	out, err = e.GoToPreviousStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShipping, out.Step)
	assert.True(t, out.Exited)
}

func TestGoToPreviousStep_FromCompletedExits(t *testing.T) {
	ctx := context.Background()
	e := readyEngine(t, &fakeSubmitter{}, nil)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)

	out, err := e.GoToPreviousStep(ctx)
	require.NoError(t, err)
	assert.True(t, out.Exited)
	assert.Equal(t, domain.StepCompleted, out.Step)
}

func TestResetCheckout(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := readyEngine(t, &fakeSubmitter{}, rec)
	require.NoError(t, e.SetCouponCode(ctx, "SPRING10"))
	require.NoError(t, e.SetPaymentField(ctx, domain.FieldCVV, "1"))
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)

	e.ResetCheckout(ctx)

	v := e.View()
	assert.Equal(t, domain.StepShipping, v.CurrentStep)
	assert.Empty(t, v.CouponCode)
	assert.False(t, v.IsProcessing)
	assert.Equal(t, "Ada", v.Shipping.FirstName, "field values survive re-entry")
	assert.Equal(t, "Invalid CVV", v.PaymentErrors["cvv"], "stored errors survive re-entry")
	assert.Len(t, v.Lines, 1)

	changed := rec.ofType(EventStepChanged)
	require.NotEmpty(t, changed)
	assert.Equal(t, domain.StepShipping, changed[len(changed)-1].Step)
}

// ============================================================================
// Copy billing and coupon
// ============================================================================

func TestToggleCopyBillingAddress(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)
	require.NoError(t, e.SetShippingField(ctx, domain.FieldCity, "London"))

	require.NoError(t, e.ToggleCopyBillingAddress(ctx))
	assert.Equal(t, "London", e.View().Billing.City)

	require.NoError(t, e.SetShippingField(ctx, domain.FieldCity, "Leeds"))
	assert.Equal(t, "Leeds", e.View().Billing.City, "shipping edits are mirrored")

	require.NoError(t, e.ToggleCopyBillingAddress(ctx))
	v := e.View()
	assert.False(t, v.CopyBillingAddress)
	assert.Equal(t, domain.Address{}, v.Billing)

	require.NoError(t, e.SetShippingField(ctx, domain.FieldCity, "York"))
	assert.Empty(t, e.View().Billing.City)
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeSubmitter{}, nil)
	require.NoError(t, e.AddToCart(ctx, shirt(1)))

	_, err := e.ApplyCoupon(ctx)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, EmptyCouponMessage, appErr.Message)

	require.NoError(t, e.SetCouponCode(ctx, "  SPRING10 "))
	msg, err := e.ApplyCoupon(ctx)
	require.NoError(t, err)
	assert.Equal(t, `Coupon code "SPRING10" has been applied!`, msg)
	assert.Equal(t, int64(4000), e.Total(), "coupons never change totals")
}

// ============================================================================
// Submission pipeline
// ============================================================================

func TestSubmit_Success(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, rec)
	require.NoError(t, e.SetShippingMethod(ctx, domain.ShippingFast))
	require.NoError(t, e.ToggleCopyBillingAddress(ctx))

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.NotNil(t, out.Order)

	assert.Equal(t, domain.StepCompleted, out.Step)
	assert.Empty(t, e.CartLines())
	assert.False(t, e.IsProcessing())

	order := out.Order
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, int64(8000), order.Subtotal)
	assert.Equal(t, int64(970), order.ShippingCost)
	assert.Equal(t, int64(8970), order.Total)
	assert.Equal(t, order.Shipping, order.Billing)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.Len(t, order.Lines, 1)

	completed := rec.ofType(EventOrderCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, order.ID, completed[0].Order.ID)
	assert.Equal(t, domain.OrderStatusCompleted, completed[0].Order.Status)
	assert.Equal(t, order.ID, e.View().LastOrderID)
}

func TestSubmit_ReceiptMasksCard(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.NotNil(t, out.Order)
	assert.Equal(t, "************1111", out.Order.CardNumber)
	assert.Equal(t, "Ada Lovelace", out.Order.CardHolder)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111 1111 1111 1111")
	assert.NotContains(t, string(raw), `"cvv"`)

	last := e.LastOrder()
	require.NotNil(t, last)
	assert.Equal(t, out.Order.ID, last.ID)
	assert.Equal(t, "************1111", last.CardNumber)

	require.Equal(t, 1, sub.calls())
	assert.Equal(t, "123", sub.orders[0].Payment.CVV, "the submitter still receives the full card")
}

func TestAdvanceStep_CompletedStepIsTerminal(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)
	_, err := e.AdvanceStep(ctx)
	require.NoError(t, err)

	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, out.Step)
	assert.False(t, out.Ignored)
	assert.Nil(t, out.Order)
	assert.Equal(t, 1, sub.calls())
}

func TestSubmit_FailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sub := &fakeSubmitter{err: errors.New("gateway timeout")}
	e := readyEngine(t, sub, rec)

	out, err := e.AdvanceStep(ctx)
	assert.Nil(t, out)
	require.True(t, errors.Is(err, apperrors.ErrSubmissionFailed))
	assert.True(t, apperrors.IsRetryable(err))

	assert.Equal(t, domain.StepPayment, e.CurrentStep())
	assert.Len(t, e.CartLines(), 1)
	assert.False(t, e.IsProcessing())

	failed := rec.ofType(EventOrderFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, OrderFailedMessage, failed[0].Reason)
	require.NotNil(t, failed[0].Order)
	assert.Equal(t, domain.OrderStatusFailed, failed[0].Order.Status)

	// Retry succeeds once the submitter recovers.
	sub.err = nil
	out, err = e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, out.Step)
}

func TestSubmit_PanickingSubmitterReleasesProcessing(t *testing.T) {
	ctx := context.Background()
	sub := OrderSubmitterFunc(func(context.Context, *domain.Order) error { panic("boom") })
	e := readyEngine(t, sub, nil)

	_, err := e.AdvanceStep(ctx)
	require.True(t, errors.Is(err, apperrors.ErrSubmissionFailed))
	assert.False(t, e.IsProcessing())
}

func TestSubmit_ConcurrentCallsPlaceOneOrder(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	e := readyEngine(t, sub, rec)

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := e.AdvanceStep(ctx)
		first <- result{out, err}
	}()
	<-sub.started
	assert.True(t, e.IsProcessing())

	for i := 0; i < 5; i++ {
		out, err := e.AdvanceStep(ctx)
		require.NoError(t, err)
		assert.True(t, out.Ignored)
	}

	close(sub.release)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, domain.StepCompleted, r.out.Step)
	assert.Equal(t, 1, sub.calls())
	assert.Len(t, rec.ofType(EventOrderCompleted), 1)
}

func TestSubmit_MutationsRejectedWhileProcessing(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	e := readyEngine(t, sub, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AdvanceStep(ctx)
	}()
	<-sub.started

	err := e.AddToCart(ctx, shirt(5))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	err = e.SetShippingField(ctx, domain.FieldCity, "Paris")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	_, err = e.GoToPreviousStep(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, int64(8000), e.Subtotal(), "queries stay available")

	close(sub.release)
	<-done
}

func TestSubmit_ResetDuringProcessingKeepsStep(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	e := readyEngine(t, sub, rec)

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := e.AdvanceStep(ctx)
		first <- result{out, err}
	}()
	<-sub.started

	e.ResetCheckout(ctx)
	assert.False(t, e.IsProcessing())
	assert.Equal(t, domain.StepShipping, e.CurrentStep())

	close(sub.release)
	r := <-first
	require.NoError(t, r.err)

	assert.Equal(t, domain.StepShipping, e.CurrentStep(), "a stale submission does not move the step")
	assert.Empty(t, e.CartLines(), "the unchanged ordered line is removed")
	assert.Len(t, rec.ofType(EventOrderCompleted), 1)
}

func TestSubmit_StaleSuccessKeepsLinesAddedAfterReset(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	e := readyEngine(t, sub, rec)

	first := make(chan *Outcome, 1)
	go func() {
		out, _ := e.AdvanceStep(ctx)
		first <- out
	}()
	<-sub.started

	e.ResetCheckout(ctx)
	scarf := shirt(1)
	scarf.ID = "p-2"
	scarf.Title = "Silk scarf"
	require.NoError(t, e.AddToCart(ctx, scarf))

	close(sub.release)
	out := <-first
	require.NotNil(t, out)
	require.Len(t, out.Order.Lines, 1)
	assert.Equal(t, "p-1", out.Order.Lines[0].ID)

	lines := e.CartLines()
	require.Len(t, lines, 1, "only the ordered line is removed")
	assert.Equal(t, "p-2", lines[0].ID)
	assert.Equal(t, domain.StepShipping, e.CurrentStep())
}

func TestSubmit_StaleSuccessKeepsChangedLine(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	e := readyEngine(t, sub, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AdvanceStep(ctx)
	}()
	<-sub.started

	e.ResetCheckout(ctx)
	require.NoError(t, e.IncreaseQty(ctx, "p-1"))

	close(sub.release)
	<-done

	lines := e.CartLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestSubmit_NoSecondOrderWhileStaleSubmissionRuns(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	e := readyEngine(t, sub, rec)

	first := make(chan *Outcome, 1)
	go func() {
		out, _ := e.AdvanceStep(ctx)
		first <- out
	}()
	<-sub.started

	e.ResetCheckout(ctx)
	out, err := e.AdvanceStep(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StepPayment, out.Step)

	out, err = e.AdvanceStep(ctx)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Nil(t, out.Order)
	assert.Equal(t, 1, sub.calls())

	close(sub.release)
	require.NotNil(t, <-first)
	assert.Equal(t, 1, sub.calls())
	assert.Len(t, rec.ofType(EventOrderCompleted), 1)
	assert.Empty(t, e.CartLines())

	// Once the first call has returned a new submission may start, and the
	// emptied cart blocks it.
	_, err = e.AdvanceStep(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrPrecondition))
	assert.Equal(t, 1, sub.calls())
}

func TestSubmit_CancelledBeforeCommit(t *testing.T) {
	sub := &fakeSubmitter{}
	e := readyEngine(t, sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.AdvanceStep(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, sub.calls())
	assert.False(t, e.IsProcessing())
	assert.Equal(t, domain.StepPayment, e.CurrentStep())
	assert.Len(t, e.CartLines(), 1)
}

func TestSubmit_CancelAfterCommitStartsIsIgnored(t *testing.T) {
	sub := &fakeSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	e := readyEngine(t, sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := e.AdvanceStep(ctx)
		first <- err
	}()
	<-sub.started
	cancel()
	close(sub.release)

	require.NoError(t, <-first)
	assert.Equal(t, domain.StepCompleted, e.CurrentStep())
}

func TestSubmit_TimeoutIsFailure(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{release: make(chan struct{})}
	e := readyEngine(t, sub, nil)
	WithSubmitTimeout(20 * time.Millisecond)(e)

	_, err := e.AdvanceStep(ctx)
	require.True(t, errors.Is(err, apperrors.ErrSubmissionFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, e.IsProcessing())
}

func TestListener_MayCallBackIntoEngine(t *testing.T) {
	ctx := context.Background()
	var e *Engine
	var subtotal int64
	l := ListenerFunc(func(ctx context.Context, evt Event) {
		if evt.Type == EventItemAdded {
			subtotal = e.Subtotal()
		}
	})
	e = NewEngine("s", &fakeSubmitter{}, WithListener(l), WithLogger(discardLogger()))

	require.NoError(t, e.AddToCart(ctx, shirt(3)))
	assert.Equal(t, int64(12000), subtotal)
}

// ============================================================================
// Snapshot
// ============================================================================

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := readyEngine(t, &fakeSubmitter{}, nil)
	require.NoError(t, e.SetShippingMethod(ctx, domain.ShippingStandard))
	require.NoError(t, e.SetCouponCode(ctx, "SPRING10"))

	st := e.Snapshot()
	assert.Empty(t, st.Payment.CVV, "cvv is never persisted")

	restored := NewEngine("ignored", &fakeSubmitter{}, WithState(st), WithLogger(discardLogger()))
	v := restored.View()
	assert.Equal(t, "session-1", v.SessionID)
	assert.Equal(t, domain.StepPayment, v.CurrentStep)
	assert.Equal(t, domain.ShippingStandard, v.ShippingMethod)
	assert.Equal(t, "4111 1111 1111 1111", v.Payment.CardNumber)
	assert.False(t, v.Payment.CVVEntered)
	assert.Equal(t, int64(8970), v.Total)
	assert.True(t, v.TermsAgreed)
	assert.False(t, v.IsProcessing)
}
