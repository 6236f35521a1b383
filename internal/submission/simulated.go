// Package submission provides the OrderSubmitter adapters the checkout engine
// commits orders through.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/stylinx/internal/domain"
)

// DefaultSimulatedDelay matches the storefront's simulated order placement.
const DefaultSimulatedDelay = 2 * time.Second

// SimulatedSubmitter waits for a fixed delay and then reports success.
type SimulatedSubmitter struct {
	delay  time.Duration
	logger *slog.Logger
}

// NewSimulatedSubmitter creates a simulated submitter. A non-positive delay
// completes immediately.
func NewSimulatedSubmitter(delay time.Duration, logger *slog.Logger) *SimulatedSubmitter {
	return &SimulatedSubmitter{delay: delay, logger: logger}
}

// Submit waits for the configured delay, or until ctx is done.
func (s *SimulatedSubmitter) Submit(ctx context.Context, order *domain.Order) error {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("simulated submit: %w", ctx.Err())
		}
	}

	s.logger.InfoContext(ctx, "order accepted by simulated submitter",
		slog.String("order_id", order.ID),
		slog.Int64("total", order.Total),
	)
	return nil
}
