package repository

import (
	"context"

	"github.com/utafrali/stylinx/internal/domain"
)

// SessionRepository persists checkout session snapshots between requests.
// Snapshots never carry the card CVV.
type SessionRepository interface {
	// Get returns the snapshot for id or a NOT_FOUND AppError.
	Get(ctx context.Context, id string) (*domain.SessionState, error)

	// Save overwrites the snapshot and refreshes its expiry.
	Save(ctx context.Context, state *domain.SessionState) error

	// Delete removes the snapshot. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// OrderHistoryRepository keeps the receipts of orders placed in a session,
// newest first.
type OrderHistoryRepository interface {
	// Append records a receipt and refreshes the history's expiry.
	Append(ctx context.Context, sessionID string, receipt *domain.Receipt) error

	// List returns the receipts for a session, newest first. A session
	// without orders yields an empty slice.
	List(ctx context.Context, sessionID string) ([]domain.Receipt, error)

	// Delete removes the history of a session.
	Delete(ctx context.Context, sessionID string) error
}
