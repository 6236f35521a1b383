package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/pkg/database"
)

const (
	insertOrderQuery = `
		INSERT INTO placed_orders (id, session_id, status, shipping_method, payment_method, card_last_four,
			subtotal_amount, shipping_amount, total_amount, shipping_address, billing_address, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	insertLineQuery = `
		INSERT INTO placed_order_lines (order_id, line_id, title, unit_price, quantity, color, size, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id, line_id) DO NOTHING`
)

// PostgresSubmitter archives placed orders in PostgreSQL.
type PostgresSubmitter struct {
	pool   database.DBTX
	logger *slog.Logger
}

// NewPostgresSubmitter creates a submitter writing through pool.
func NewPostgresSubmitter(pool database.DBTX, logger *slog.Logger) *PostgresSubmitter {
	return &PostgresSubmitter{pool: pool, logger: logger}
}

// Submit inserts the order and its lines in one transaction. Inserting an
// order id that already exists is a no-op, so a retried submission is safe.
func (s *PostgresSubmitter) Submit(ctx context.Context, order *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertPlacedOrder", insertOrderQuery)
	defer func() { end(err) }()

	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.Billing)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	var lastFour *string
	if order.PaymentMethod == domain.PaymentCredit {
		if masked := order.Payment.MaskedCardNumber(); len(masked) >= 4 {
			v := masked[len(masked)-4:]
			lastFour = &v
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderQuery,
		order.ID,
		order.SessionID,
		string(order.Status),
		string(order.ShippingMethod),
		string(order.PaymentMethod),
		lastFour,
		order.Subtotal,
		order.ShippingCost,
		order.Total,
		shippingJSON,
		billingJSON,
		order.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert placed order: %w", err)
	}

	for _, line := range order.Lines {
		var image string
		if len(line.Images) > 0 {
			image = line.Images[0]
		}
		_, err = tx.Exec(ctx, insertLineQuery,
			order.ID,
			line.ID,
			line.Title,
			line.Price,
			line.Quantity,
			line.Color,
			line.Size,
			image,
		)
		if err != nil {
			return fmt.Errorf("insert placed order line: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "order archived",
		slog.String("order_id", order.ID),
		slog.Int("line_count", len(order.Lines)),
	)
	return nil
}
