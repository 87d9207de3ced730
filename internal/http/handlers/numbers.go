package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
)

// NumberService is the inventory surface used by NumberHandler
type NumberService interface {
	Create(ctx context.Context, n model.Number) (*model.Number, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Number, error)
	List(ctx context.Context, scope model.Scope) ([]model.Number, error)
	Update(ctx context.Context, id uuid.UUID, u numbers.Update) (*model.Number, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreateRequest(ctx context.Context, r model.NumberRequest) (*model.NumberRequest, error)
	ListRequests(ctx context.Context, scope model.Scope, status model.RequestStatus) ([]model.NumberRequest, error)
	AdvanceRequest(ctx context.Context, id uuid.UUID, next model.RequestStatus, f *numbers.Fulfillment) (*model.NumberRequest, []model.Number, error)
}

// NumberHandler handles number inventory and number request endpoints
type NumberHandler struct {
	service  NumberService
	client   *query.Client
	validate *validator.Validate
}

// NewNumberHandler creates a new number handler
func NewNumberHandler(service NumberService, client *query.Client, validate *validator.Validate) *NumberHandler {
	return &NumberHandler{service: service, client: client, validate: validate}
}

// HandleList handles GET /numbers
func (h *NumberHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var list []model.Number
	err := h.client.Retry(r.Context(), func(ctx context.Context) error {
		var err error
		list, err = h.service.List(ctx, p.Scope())
		return err
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toNumberResponses(list))
}

// HandleGet handles GET /numbers/{id}
func (h *NumberHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	n, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if !p.Can(access.ViewAllAccounts) && (n.OwnerID == nil || *n.OwnerID != p.UserID) {
		respondWithServiceError(w, r, repo.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toNumberResponse(*n))
}

type createNumberRequest struct {
	Value           string            `json:"value" validate:"required,max=32"`
	CountryCode     string            `json:"country_code" validate:"required,len=2"`
	ChannelType     model.ChannelType `json:"channel_type" validate:"required,oneof=voice sms combined"`
	ServiceCategory string            `json:"service_category" validate:"max=100"`
	Rate            decimal.Decimal   `json:"rate"`
	Active          *bool             `json:"active"`
	OwnerID         *uuid.UUID        `json:"owner_id"`
}

// HandleCreate handles POST /numbers
func (h *NumberHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createNumberRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	n, err := h.service.Create(r.Context(), model.Number{
		Value:           req.Value,
		CountryCode:     req.CountryCode,
		ChannelType:     req.ChannelType,
		ServiceCategory: req.ServiceCategory,
		Rate:            req.Rate,
		Active:          active,
		OwnerID:         req.OwnerID,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusCreated, toNumberResponse(*n))
}

type updateNumberRequest struct {
	Rate            *decimal.Decimal `json:"rate"`
	Active          *bool            `json:"active"`
	ServiceCategory *string          `json:"service_category" validate:"omitempty,max=100"`
	OwnerID         *uuid.UUID       `json:"owner_id"`
	ClearOwner      bool             `json:"clear_owner"`
}

// HandleUpdate handles PATCH /numbers/{id}
func (h *NumberHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateNumberRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.service.Update(r.Context(), id, numbers.Update{
		Rate:            req.Rate,
		Active:          req.Active,
		ServiceCategory: req.ServiceCategory,
		OwnerID:         req.OwnerID,
		ClearOwner:      req.ClearOwner,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusOK, toNumberResponse(*n))
}

// HandleDelete handles DELETE /numbers/{id}
func (h *NumberHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	w.WriteHeader(http.StatusNoContent)
}

type createNumberRequestRequest struct {
	CountryCode     string            `json:"country_code" validate:"required,len=2"`
	ChannelType     model.ChannelType `json:"channel_type" validate:"required,oneof=voice sms combined"`
	ServiceCategory string            `json:"service_category" validate:"max=100"`
	Quantity        int               `json:"quantity" validate:"required,min=1,max=100"`
	Notes           string            `json:"notes" validate:"max=1000"`
}

// HandleCreateRequest handles POST /number-requests
func (h *NumberHandler) HandleCreateRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(access.RequestNumbers); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	var req createNumberRequestRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.service.CreateRequest(r.Context(), model.NumberRequest{
		UserID:          p.UserID,
		CountryCode:     req.CountryCode,
		ChannelType:     req.ChannelType,
		ServiceCategory: req.ServiceCategory,
		Quantity:        req.Quantity,
		Notes:           req.Notes,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toNumberRequestResponse(*created))
}

// HandleListRequests handles GET /number-requests
func (h *NumberHandler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	status := model.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondWithError(w, http.StatusBadRequest, "invalid status")
		return
	}
	list, err := h.service.ListRequests(r.Context(), p.Scope(), status)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	out := make([]numberRequestResponse, 0, len(list))
	for _, nr := range list {
		out = append(out, toNumberRequestResponse(nr))
	}
	respondJSON(w, http.StatusOK, out)
}

type advanceRequestRequest struct {
	Status model.RequestStatus `json:"status" validate:"required,oneof=approved rejected fulfilled"`
	// Numbers and Rate are only read when fulfilling
	Numbers []string        `json:"numbers" validate:"omitempty,dive,required,max=32"`
	Rate    decimal.Decimal `json:"rate"`
}

type advanceRequestResponse struct {
	Request numberRequestResponse `json:"request"`
	Created []numberResponse      `json:"created_numbers"`
}

// HandleAdvanceRequest handles POST /number-requests/{id}/advance
func (h *NumberHandler) HandleAdvanceRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req advanceRequestRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var f *numbers.Fulfillment
	if req.Status == model.RequestFulfilled {
		f = &numbers.Fulfillment{Values: req.Numbers, Rate: req.Rate}
	}
	updated, created, err := h.service.AdvanceRequest(r.Context(), id, req.Status, f)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if len(created) > 0 {
		h.client.Invalidate(reportCachePrefix)
	}
	respondJSON(w, http.StatusOK, advanceRequestResponse{
		Request: toNumberRequestResponse(*updated),
		Created: toNumberResponses(created),
	})
}
