package handlers

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/query"
	"github.com/shopspring/decimal"
)

// EventRecorder records billable traffic
type EventRecorder interface {
	RecordCall(ctx context.Context, numberID uuid.UUID, durationSeconds int, at time.Time) (*model.CallEvent, error)
	RecordSMS(ctx context.Context, numberID uuid.UUID, messageLength int, at time.Time) (*model.SMSEvent, error)
}

// EventHandler handles event ingest endpoints
type EventHandler struct {
	recorder EventRecorder
	client   *query.Client
	validate *validator.Validate
}

// NewEventHandler creates a new event handler
func NewEventHandler(recorder EventRecorder, client *query.Client, validate *validator.Validate) *EventHandler {
	return &EventHandler{recorder: recorder, client: client, validate: validate}
}

type eventResponse struct {
	ID          string            `json:"id"`
	NumberID    string            `json:"number_id"`
	UserID      *string           `json:"user_id"`
	CountryCode string            `json:"country_code"`
	ChannelType model.ChannelType `json:"channel_type"`
	Length      int               `json:"length"`
	Revenue     decimal.Decimal   `json:"revenue"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func ownerString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

type recordCallRequest struct {
	NumberID        uuid.UUID `json:"number_id" validate:"required"`
	DurationSeconds int       `json:"duration_seconds" validate:"min=0"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// HandleRecordCall handles POST /events/calls
func (h *EventHandler) HandleRecordCall(w http.ResponseWriter, r *http.Request) {
	var req recordCallRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := h.recorder.RecordCall(r.Context(), req.NumberID, req.DurationSeconds, req.OccurredAt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusCreated, eventResponse{
		ID:          e.ID.String(),
		NumberID:    e.NumberID.String(),
		UserID:      ownerString(e.UserID),
		CountryCode: e.CountryCode,
		ChannelType: e.ChannelType,
		Length:      e.DurationSeconds,
		Revenue:     e.Revenue,
		OccurredAt:  e.OccurredAt,
	})
}

// recordSMSRequest takes either the message text or its length
type recordSMSRequest struct {
	NumberID      uuid.UUID `json:"number_id" validate:"required"`
	Text          string    `json:"text"`
	MessageLength *int      `json:"message_length" validate:"omitempty,min=0"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// HandleRecordSMS handles POST /events/sms
func (h *EventHandler) HandleRecordSMS(w http.ResponseWriter, r *http.Request) {
	var req recordSMSRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	length := utf8.RuneCountInString(req.Text)
	if req.MessageLength != nil {
		length = *req.MessageLength
	}
	e, err := h.recorder.RecordSMS(r.Context(), req.NumberID, length, req.OccurredAt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusCreated, eventResponse{
		ID:          e.ID.String(),
		NumberID:    e.NumberID.String(),
		UserID:      ownerString(e.UserID),
		CountryCode: e.CountryCode,
		ChannelType: e.ChannelType,
		Length:      e.MessageLength,
		Revenue:     e.Revenue,
		OccurredAt:  e.OccurredAt,
	})
}
