package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/validation"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

var writeKinds = []string{ports.WriteCreateTicket, ports.WriteUpdateStatus, ports.WriteAssignTicket}

// SyncHandler accepts writes a client queued while offline
type SyncHandler struct {
	writes       ports.WriteApplyService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(writes ports.WriteApplyService, errorHandler *ErrorHandler, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		writes:       writes,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "sync"),
	}
}

// RegisterRoutes registers the sync routes
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/writes", h.HandleApplyWrite)
}

// ApplyWriteRequest is one queued write replayed by a client
type ApplyWriteRequest struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Validate validates the write envelope. The payload is checked by the
// service once the kind is known.
func (r *ApplyWriteRequest) Validate() error {
	return validation.NewValidator().
		Required("id", r.ID).
		UUID("id", r.ID).
		Required("kind", r.Kind).
		OneOf("kind", r.Kind, writeKinds).
		Custom("payload", hasPayload(r.Payload), "This field is required").
		Err()
}

func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ApplyWriteResponse reports the outcome of an applied write
type ApplyWriteResponse struct {
	ID        string                 `json:"id"`
	Duplicate bool                   `json:"duplicate"`
	Ticket    *domain.TicketSnapshot `json:"ticket,omitempty"`
}

// HandleApplyWrite handles POST /sync/writes. Applied and already-applied
// writes both answer 200 so clients can drop the queued row.
func (h *SyncHandler) HandleApplyWrite(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrReject(w, r, h.errorHandler)
	if !ok {
		return
	}

	req, err := decodeValid[ApplyWriteRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.writes.Apply(r.Context(), ports.ApplyWriteParams{
		ID:      uuid.MustParse(req.ID),
		Kind:    req.Kind,
		Payload: req.Payload,
		Actor:   identity,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	resp := ApplyWriteResponse{
		ID:        result.ID.String(),
		Duplicate: result.Duplicate,
	}
	if result.Ticket != nil {
		snap := domain.NewTicketSnapshot(result.Ticket)
		resp.Ticket = &snap
	}

	h.logger.InfoContext(r.Context(), "queued write applied",
		"write_id", resp.ID,
		"kind", req.Kind,
		"duplicate", resp.Duplicate,
	)

	WriteJSON(w, http.StatusOK, resp)
}
