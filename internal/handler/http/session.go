package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/stylinx/internal/checkout"
	"github.com/utafrali/stylinx/internal/domain"
	"github.com/utafrali/stylinx/internal/service"
	"github.com/utafrali/stylinx/pkg/httputil"
	"github.com/utafrali/stylinx/pkg/middleware"
	"github.com/utafrali/stylinx/pkg/validator"
)

// SessionService is the part of service.SessionService the handlers use.
type SessionService interface {
	Create(ctx context.Context) (*checkout.View, error)
	Get(ctx context.Context, id string) (*checkout.View, error)
	Execute(ctx context.Context, id string, cmd checkout.Command) (*service.CommandResult, error)
	Orders(ctx context.Context, id string) ([]domain.Receipt, error)
	Delete(ctx context.Context, id string) error
}

// SessionHandler handles HTTP requests for checkout sessions.
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// LineRequest is a cart line as sent by the storefront. Prices are in cents.
type LineRequest struct {
	ID       string   `json:"id" validate:"notblank,max=128"`
	Title    string   `json:"title" validate:"max=500"`
	Price    int64    `json:"price" validate:"gte=0"`
	Images   []string `json:"images" validate:"required,min=1,dive,notblank"`
	Quantity int      `json:"quantity" validate:"gte=1"`
	Color    string   `json:"color" validate:"max=64"`
	Size     string   `json:"size" validate:"max=64"`
}

// CommandRequest is the JSON body of POST /sessions/{sessionId}/commands.
// Only the fields the command type reads need to be set.
type CommandRequest struct {
	Type   string       `json:"type" validate:"required,max=64"`
	Line   *LineRequest `json:"line" validate:"omitempty"`
	LineID string       `json:"lineId" validate:"max=128"`
	Field  string       `json:"field" validate:"max=64"`
	Value  string       `json:"value" validate:"max=256"`
	Method string       `json:"method" validate:"max=32"`
	Agreed bool         `json:"agreed"`
	Code   string       `json:"code" validate:"max=64"`
}

func (req CommandRequest) toCommand() checkout.Command {
	cmd := checkout.Command{
		Type:   checkout.CommandType(req.Type),
		LineID: req.LineID,
		Field:  req.Field,
		Value:  req.Value,
		Method: req.Method,
		Agreed: req.Agreed,
		Code:   req.Code,
	}
	if req.Line != nil {
		cmd.Line = &domain.CartLine{
			ID:       req.Line.ID,
			Title:    req.Line.Title,
			Price:    req.Line.Price,
			Images:   req.Line.Images,
			Quantity: req.Line.Quantity,
			Color:    req.Line.Color,
			Size:     req.Line.Size,
		}
	}
	return cmd
}

// --- Handlers ---

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Create(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+view.SessionID)
	httputil.WriteData(w, http.StatusCreated, view)
}

// GetSession handles GET /api/v1/sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}

// ExecuteCommand handles POST /api/v1/sessions/{sessionId}/commands
func (h *SessionHandler) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req CommandRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "request body too large"},
			})
			return
		}
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Execute(r.Context(), id, req.toCommand())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// ListOrders handles GET /api/v1/sessions/{sessionId}/orders
func (h *SessionHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	receipts, err := h.service.Orders(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, receipts)
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionId}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionID reads and validates the {sessionId} path parameter. Session ids
// are UUIDs, so anything else is rejected before touching storage.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, middleware.SessionIDParam))
	if !ok {
		return "", false
	}
	return id.String(), true
}
