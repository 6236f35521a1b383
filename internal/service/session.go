package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/stylinx/internal/checkout"
	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/repository"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

// ActiveSessions tracks how many engines are resident in memory.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "checkout_active_sessions",
	Help: "Number of checkout sessions held in memory",
})

// CommandResult is what a command returns to the caller.
type CommandResult struct {
	Outcome *checkout.Outcome `json:"outcome"`
	View    *checkout.View    `json:"session"`
}

// sessionEntry pairs an engine with the lock that orders its snapshot writes.
type sessionEntry struct {
	engine *checkout.Engine
	saveMu sync.Mutex
}

// SessionService keeps one checkout engine per session and persists a
// snapshot after every state-changing command.
type SessionService struct {
	repo          repository.SessionRepository
	history       repository.OrderHistoryRepository
	submitter     checkout.OrderSubmitter
	listener      checkout.Listener
	logger        *slog.Logger
	submitTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a new session service. history may be nil, in
// which case only the last order of a resident session is reported.
func NewSessionService(
	repo repository.SessionRepository,
	history repository.OrderHistoryRepository,
	submitter checkout.OrderSubmitter,
	listener checkout.Listener,
	logger *slog.Logger,
	submitTimeout time.Duration,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		repo:          repo,
		history:       history,
		submitter:     submitter,
		listener:      listener,
		logger:        logger,
		submitTimeout: submitTimeout,
		sessions:      make(map[string]*sessionEntry),
	}
}

func (s *SessionService) newEngine(id string, opts ...checkout.Option) *checkout.Engine {
	base := []checkout.Option{
		checkout.WithLogger(s.logger.With(slog.String("session_id", id))),
		checkout.WithListener(checkout.Listeners{s.listener, checkout.ListenerFunc(s.recordOrder)}),
		checkout.WithSubmitTimeout(s.submitTimeout),
	}
	return checkout.NewEngine(id, s.submitter, append(base, opts...)...)
}

// Create starts a fresh session with an empty cart on the shipping step.
func (s *SessionService) Create(ctx context.Context) (*checkout.View, error) {
	id := uuid.NewString()
	entry := &sessionEntry{engine: s.newEngine(id)}

	s.mu.Lock()
	s.sessions[id] = entry
	ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if err := s.persist(ctx, entry); err != nil {
		s.forget(id)
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session created", slog.String("session_id", id))
	return entry.engine.View(), nil
}

// Get returns the current view of a session.
func (s *SessionService) Get(ctx context.Context, id string) (*checkout.View, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.engine.View(), nil
}

// Execute applies cmd to the session and returns the outcome with a fresh
// view. The snapshot is written for every state-changing command, including
// ones that fail validation, since field errors are part of the session.
func (s *SessionService) Execute(ctx context.Context, id string, cmd checkout.Command) (*CommandResult, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	outcome, cmdErr := entry.engine.Dispatch(ctx, cmd)

	if cmd.Mutates() && !errors.Is(cmdErr, apperrors.ErrConflict) {
		if err := s.persist(ctx, entry); err != nil {
			// The in-memory engine stays authoritative; the next write retries.
			s.logger.WarnContext(ctx, "failed to persist checkout session",
				slog.String("session_id", id),
				slog.String("command", string(cmd.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	if cmdErr != nil {
		return nil, cmdErr
	}
	return &CommandResult{Outcome: outcome, View: entry.engine.View()}, nil
}

// Orders returns the receipts of orders placed in the session, newest first.
func (s *SessionService) Orders(ctx context.Context, id string) ([]domain.Receipt, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var receipts []domain.Receipt
	if s.history != nil {
		receipts, err = s.history.List(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
	}
	if len(receipts) == 0 {
		if last := entry.engine.LastOrder(); last != nil {
			receipts = append(receipts, *last)
		}
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}
	return receipts, nil
}

// recordOrder appends completed orders to the session's history. A failed
// write is logged; the order itself is already placed.
func (s *SessionService) recordOrder(ctx context.Context, evt checkout.Event) {
	if evt.Type != checkout.EventOrderCompleted || evt.Order == nil || s.history == nil {
		return
	}
	if err := s.history.Append(context.WithoutCancel(ctx), evt.Order.SessionID, evt.Order.Receipt()); err != nil {
		s.logger.WarnContext(ctx, "failed to record order history",
			slog.String("session_id", evt.Order.SessionID),
			slog.String("order_id", evt.Order.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Delete drops the session from memory and storage.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("session id is required")
	}
	s.forget(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.history != nil {
		if err := s.history.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete order history: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "checkout session deleted", slog.String("session_id", id))
	return nil
}

// EvictIdle drops in-memory engines untouched since before cutoff. Their
// snapshots stay in storage and are reloaded on the next request. Sessions
// with a submission in flight are kept.
func (s *SessionService) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.sessions {
		if entry.engine.IsProcessing() {
			continue
		}
		if entry.engine.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	ActiveSessions.Set(float64(len(s.sessions)))
	return evicted
}

// load returns the resident engine or restores it from storage. Storage is
// read outside the registry lock; if two requests race, the first insert wins.
func (s *SessionService) load(ctx context.Context, id string) (*sessionEntry, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	s.mu.Lock()
	entry, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return entry, nil
	}

	state, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	restored := &sessionEntry{engine: s.newEngine(id, checkout.WithState(state))}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	s.sessions[id] = restored
	ActiveSessions.Set(float64(len(s.sessions)))

	s.logger.DebugContext(ctx, "checkout session restored", slog.String("session_id", id))
	return restored, nil
}

// persist snapshots and saves under the entry's save lock so a slow writer
// can never overwrite a newer snapshot.
func (s *SessionService) persist(ctx context.Context, entry *sessionEntry) error {
	entry.saveMu.Lock()
	defer entry.saveMu.Unlock()
	return s.repo.Save(context.WithoutCancel(ctx), entry.engine.Snapshot())
}

func (s *SessionService) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}
