package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
)

// ProviderHandler handles provider records
type ProviderHandler struct {
	providers repo.ProviderRepo
	validate  *validator.Validate
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(providers repo.ProviderRepo, validate *validator.Validate) *ProviderHandler {
	return &ProviderHandler{providers: providers, validate: validate}
}

type providerRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	ServiceType string   `json:"service_type" validate:"max=100"`
	Pricing     string   `json:"pricing" validate:"max=1000"`
	Countries   []string `json:"countries" validate:"dive,alpha,len=2"`
	APIEndpoint string   `json:"api_endpoint" validate:"omitempty,url"`
	Notes       string   `json:"notes" validate:"max=4000"`
	Active      *bool    `json:"active"`
}

func (req providerRequest) apply(p *model.Provider) {
	p.Name = req.Name
	p.ServiceType = req.ServiceType
	p.Pricing = req.Pricing
	p.Countries = req.Countries
	p.APIEndpoint = req.APIEndpoint
	p.Notes = req.Notes
	p.Active = true
	if req.Active != nil {
		p.Active = *req.Active
	}
}

// HandleList handles GET /providers
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.providers.ListProviders(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	out := make([]providerResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProviderResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /providers/{id}
func (h *ProviderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.providers.GetProvider(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProviderResponse(p))
}

// HandleCreate handles POST /providers
func (h *ProviderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p model.Provider
	req.apply(&p)
	if err := h.providers.InsertProvider(r.Context(), &p); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProviderResponse(p))
}

// HandleUpdate handles PUT /providers/{id}
func (h *ProviderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req providerRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := model.Provider{ID: id}
	req.apply(&p)
	if err := h.providers.UpdateProvider(r.Context(), &p); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProviderResponse(p))
}

// HandleDelete handles DELETE /providers/{id}
func (h *ProviderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.providers.DeleteProvider(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
