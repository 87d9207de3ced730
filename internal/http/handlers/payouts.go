package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
)

// PayoutLedger is the payout surface used by PayoutHandler
type PayoutLedger interface {
	Request(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method model.PayoutMethod) (*model.Payout, error)
	Advance(ctx context.Context, payoutID uuid.UUID, next model.PayoutStatus) (*model.Payout, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Payout, error)
	List(ctx context.Context, scope model.Scope, status model.PayoutStatus) ([]model.Payout, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (model.Balances, error)
}

// PayoutHandler handles payout endpoints
type PayoutHandler struct {
	ledger   PayoutLedger
	client   *query.Client
	validate *validator.Validate
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(ledger PayoutLedger, client *query.Client, validate *validator.Validate) *PayoutHandler {
	return &PayoutHandler{ledger: ledger, client: client, validate: validate}
}

type payoutRequest struct {
	Amount decimal.Decimal    `json:"amount"`
	Method model.PayoutMethod `json:"method" validate:"omitempty,oneof=crypto bank paypal"`
}

// HandleRequest handles POST /payouts
func (h *PayoutHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(access.RequestPayouts); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	var req payoutRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var created *model.Payout
	err := h.client.Retry(r.Context(), func(ctx context.Context) error {
		var err error
		created, err = h.ledger.Request(ctx, p.UserID, req.Amount, req.Method)
		return err
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusCreated, toPayoutResponse(*created))
}

type advancePayoutRequest struct {
	Status model.PayoutStatus `json:"status" validate:"required,oneof=processing completed rejected failed"`
}

// HandleAdvance handles POST /payouts/{id}/advance
func (h *PayoutHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req advancePayoutRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var updated *model.Payout
	err := h.client.Retry(r.Context(), func(ctx context.Context) error {
		var err error
		updated, err = h.ledger.Advance(ctx, id, req.Status)
		return err
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	h.client.Invalidate(reportCachePrefix)
	respondJSON(w, http.StatusOK, toPayoutResponse(*updated))
}

// HandleList handles GET /payouts
func (h *PayoutHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	status := model.PayoutStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondWithError(w, http.StatusBadRequest, "invalid status")
		return
	}
	var list []model.Payout
	err := h.client.Retry(r.Context(), func(ctx context.Context) error {
		var err error
		list, err = h.ledger.List(ctx, p.Scope(), status)
		return err
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	out := make([]payoutResponse, 0, len(list))
	for _, po := range list {
		out = append(out, toPayoutResponse(po))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /payouts/{id}
func (h *PayoutHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	po, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if !p.CanSeeUser(po.UserID) {
		respondWithServiceError(w, r, repo.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toPayoutResponse(*po))
}

// HandleReconcile handles GET /users/{id}/reconcile
func (h *PayoutHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var b model.Balances
	err := h.client.Retry(r.Context(), func(ctx context.Context) error {
		var err error
		b, err = h.ledger.Reconcile(ctx, id)
		return err
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBalancesResponse(b))
}
