package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/query"
)

// Inbox is the message surface used by MessageHandler
type Inbox interface {
	Receive(ctx context.Context, numberID uuid.UUID, sender, body string, at time.Time) (*model.UserMessage, error)
	List(ctx context.Context, p access.Principal, status model.MessageStatus) ([]model.UserMessage, error)
	MarkRead(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error)
	Respond(ctx context.Context, p access.Principal, id uuid.UUID, reply string) (*model.UserMessage, error)
	Archive(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error)
	Reset(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error)
}

// MessageHandler handles the CDIR inbox endpoints
type MessageHandler struct {
	inbox    Inbox
	client   *query.Client
	validate *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(inbox Inbox, client *query.Client, validate *validator.Validate) *MessageHandler {
	return &MessageHandler{inbox: inbox, client: client, validate: validate}
}

// HandleList handles GET /messages
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	status := model.MessageStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondWithError(w, http.StatusBadRequest, "invalid status")
		return
	}
	list, err := h.inbox.List(r.Context(), p, status)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	out := make([]messageResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMessageResponse(m))
	}
	respondJSON(w, http.StatusOK, out)
}

type receiveMessageRequest struct {
	NumberID   uuid.UUID `json:"number_id" validate:"required"`
	Sender     string    `json:"sender" validate:"required,max=64"`
	Body       string    `json:"body" validate:"max=4000"`
	ReceivedAt time.Time `json:"received_at"`
}

// HandleReceive handles POST /messages
func (h *MessageHandler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveMessageRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.inbox.Receive(r.Context(), req.NumberID, req.Sender, req.Body, req.ReceivedAt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusCreated, toMessageResponse(*m))
}

type messageAction func(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error)

func (h *MessageHandler) act(w http.ResponseWriter, r *http.Request, fn messageAction) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	m, err := fn(r.Context(), p, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusOK, toMessageResponse(*m))
}

// HandleMarkRead handles POST /messages/{id}/read
func (h *MessageHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.inbox.MarkRead)
}

// HandleArchive handles POST /messages/{id}/archive
func (h *MessageHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.inbox.Archive)
}

// HandleReset handles POST /messages/{id}/reset
func (h *MessageHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.inbox.Reset)
}

type respondMessageRequest struct {
	Reply string `json:"reply" validate:"required,max=4000"`
}

// HandleRespond handles POST /messages/{id}/respond
func (h *MessageHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondMessageRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, func(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
		return h.inbox.Respond(ctx, p, id, req.Reply)
	})
}
