package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http/middleware"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/validation"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

const (
	defaultTicketsPerPage = 25
	maxTicketsPerPage     = 100
	defaultActivityLimit  = 50
	maxActivityLimit      = 200
)

var (
	priorityValues  = []string{string(domain.PriorityLow), string(domain.PriorityMedium), string(domain.PriorityHigh)}
	statusValues    = []string{string(domain.StatusOpen), string(domain.StatusInProgress), string(domain.StatusResolved), string(domain.StatusClosed)}
	issueTypeValues = []string{string(domain.IssueHardware), string(domain.IssueSoftware), string(domain.IssueNetwork), string(domain.IssueAccess), string(domain.IssueOther)}
)

type TicketHandler struct {
	tickets      ports.TicketService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewTicketHandler(tickets ports.TicketService, errorHandler *ErrorHandler, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		tickets:      tickets,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "ticket"),
	}
}

// RegisterRoutes mounts the ticket endpoints. Assignment is staff only;
// every other check happens in the service.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.authed(h.listTickets))
	r.Post("/", h.authed(h.createTicket))

	r.Route("/{ticketID}", func(r chi.Router) {
		r.Get("/", h.onTicket(h.getTicket))
		r.Patch("/status", h.onTicket(h.updateStatus))
		r.With(mw.RequireRole(domain.PrivilegedRoles()...)).Patch("/assignee", h.onTicket(h.assignTicket))
		r.Get("/activity", h.onTicket(h.listActivity))
	})
}

type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	IssueType   string `json:"issueType"`
}

func (r *CreateTicketRequest) Validate() error {
	return validation.NewValidator().
		Required("title", r.Title).
		MaxLength("title", r.Title, domain.MaxTitleLength).
		MaxLength("description", r.Description, domain.MaxDescriptionLength).
		Required("priority", r.Priority).
		OneOf("priority", r.Priority, priorityValues).
		OneOf("issueType", r.IssueType, issueTypeValues).
		Err()
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	return validation.NewValidator().
		Required("status", r.Status).
		OneOf("status", r.Status, statusValues).
		Err()
}

type AssignTicketRequest struct {
	AssigneeID string `json:"assigneeId"`
}

func (r *AssignTicketRequest) Validate() error {
	return validation.NewValidator().
		Required("assigneeId", r.AssigneeID).
		UUID("assigneeId", r.AssigneeID).
		Err()
}

// ActivityResponse is one page of a ticket's activity log. NextCursor is
// the id to pass as ?after= for the following page.
type ActivityResponse struct {
	Data       []domain.ActivitySnapshot `json:"data"`
	NextCursor *int64                    `json:"nextCursor,omitempty"`
}

func toTicketDTOs(tickets []*domain.Ticket) []domain.TicketSnapshot {
	out := make([]domain.TicketSnapshot, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, domain.NewTicketSnapshot(t))
	}
	return out
}

type identityHandler func(w http.ResponseWriter, r *http.Request, identity domain.Identity) error

type ticketHandler func(w http.ResponseWriter, r *http.Request, identity domain.Identity, ticketID int64) error

// authed resolves the caller and routes any returned error through the
// error handler.
func (h *TicketHandler) authed(fn identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityOrReject(w, r, h.errorHandler)
		if !ok {
			return
		}
		if err := fn(w, r, identity); err != nil {
			h.errorHandler.Handle(w, r, err)
		}
	}
}

// onTicket is authed plus the {ticketID} path parameter.
func (h *TicketHandler) onTicket(fn ticketHandler) http.HandlerFunc {
	return h.authed(func(w http.ResponseWriter, r *http.Request, identity domain.Identity) error {
		ticketID, err := parseTicketID(r)
		if err != nil {
			return err
		}
		return fn(w, r, identity, ticketID)
	})
}

func (h *TicketHandler) listTickets(w http.ResponseWriter, r *http.Request, identity domain.Identity) error {
	page := validation.ParsePagination(r, defaultTicketsPerPage, maxTicketsPerPage)

	params := ports.ListTicketsParams{
		Viewer: identity,
		Limit:  page.Limit + 1,
		Offset: page.Offset,
	}
	if raw := validation.ParseStringQueryParam(r, "status"); raw != nil {
		if err := validation.NewValidator().OneOf("status", *raw, statusValues).Err(); err != nil {
			return err
		}
		status := domain.TicketStatus(*raw)
		params.Status = &status
	}

	tickets, err := h.tickets.ListTickets(r.Context(), params)
	if err != nil {
		return err
	}

	WritePaginatedSimple(w, toTicketDTOs(tickets), page.Limit, page.Offset)
	return nil
}

func (h *TicketHandler) createTicket(w http.ResponseWriter, r *http.Request, identity domain.Identity) error {
	req, err := decodeValid[CreateTicketRequest](w, r)
	if err != nil {
		return err
	}

	ticket, err := h.tickets.CreateTicket(r.Context(), ports.CreateTicketParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
		IssueType:   domain.IssueType(req.IssueType),
		Actor:       identity,
	})
	if err != nil {
		return err
	}

	h.logger.InfoContext(r.Context(), "ticket created", "ticket_id", ticket.ID)
	WriteCreated(w, domain.NewTicketSnapshot(ticket))
	return nil
}

func (h *TicketHandler) getTicket(w http.ResponseWriter, r *http.Request, identity domain.Identity, ticketID int64) error {
	ticket, err := h.tickets.GetTicket(r.Context(), ticketID, identity)
	if err != nil {
		return err
	}
	WriteJSON(w, http.StatusOK, domain.NewTicketSnapshot(ticket))
	return nil
}

func (h *TicketHandler) updateStatus(w http.ResponseWriter, r *http.Request, identity domain.Identity, ticketID int64) error {
	req, err := decodeValid[UpdateStatusRequest](w, r)
	if err != nil {
		return err
	}

	ticket, err := h.tickets.UpdateStatus(r.Context(), ports.UpdateStatusParams{
		TicketID: ticketID,
		Status:   domain.TicketStatus(req.Status),
		Actor:    identity,
	})
	if err != nil {
		return err
	}

	h.logger.InfoContext(r.Context(), "ticket status changed", "ticket_id", ticketID, "status", req.Status)
	WriteJSON(w, http.StatusOK, domain.NewTicketSnapshot(ticket))
	return nil
}

func (h *TicketHandler) assignTicket(w http.ResponseWriter, r *http.Request, identity domain.Identity, ticketID int64) error {
	req, err := decodeValid[AssignTicketRequest](w, r)
	if err != nil {
		return err
	}
	assigneeID := uuid.MustParse(req.AssigneeID)

	ticket, err := h.tickets.AssignTicket(r.Context(), ports.AssignTicketParams{
		TicketID:   ticketID,
		AssigneeID: assigneeID,
		Actor:      identity,
	})
	if err != nil {
		return err
	}

	h.logger.InfoContext(r.Context(), "ticket assigned", "ticket_id", ticketID, "assignee_id", assigneeID)
	WriteJSON(w, http.StatusOK, domain.NewTicketSnapshot(ticket))
	return nil
}

func (h *TicketHandler) listActivity(w http.ResponseWriter, r *http.Request, identity domain.Identity, ticketID int64) error {
	entries, err := h.tickets.ListActivity(r.Context(), ports.ListActivityParams{
		TicketID: ticketID,
		Viewer:   identity,
		AfterID:  validation.ParseInt64QueryParam(r, "after", 0),
		Limit:    validation.ParsePagination(r, defaultActivityLimit, maxActivityLimit).Limit,
	})
	if err != nil {
		return err
	}

	resp := ActivityResponse{Data: make([]domain.ActivitySnapshot, 0, len(entries))}
	for _, e := range entries {
		resp.Data = append(resp.Data, domain.NewActivitySnapshot(e))
	}
	if n := len(entries); n > 0 {
		resp.NextCursor = &entries[n-1].ID
	}

	WriteJSON(w, http.StatusOK, resp)
	return nil
}

// decodeValid decodes the body into T and runs its Validate.
func decodeValid[T any, P interface {
	*T
	Validate() error
}](w http.ResponseWriter, r *http.Request) (*T, error) {
	req, err := validation.Decode[T](w, r)
	if err != nil {
		return nil, err
	}
	if err := P(req).Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// identityOrReject returns the caller attached by SessionGuard, answering
// 401 when there is none.
func identityOrReject(w http.ResponseWriter, r *http.Request, eh *ErrorHandler) (domain.Identity, bool) {
	identity, ok := mw.IdentityFromContext(r.Context())
	if !ok {
		eh.Handle(w, r, apperrors.ErrUnauthenticated)
		return domain.Identity{}, false
	}
	return identity, true
}

func parseTicketID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.NewValidator().Custom("ticketID", false, "Invalid ticket ID").Err()
	}
	return id, nil
}
