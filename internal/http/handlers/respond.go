package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/events"
	"github.com/prnadmin/server/internal/messages"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/payout"
	"github.com/prnadmin/server/internal/report"
	"github.com/prnadmin/server/internal/repo"
	"go.uber.org/zap"
)

// reportCachePrefix namespaces cached report reads so writes can drop them
const reportCachePrefix = "report:"

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondJSON writes v as the JSON response body
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation
func decodeAndValidate(r *http.Request, validate *validator.Validate, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.StructCtx(r.Context(), dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrConflict),
		errors.Is(err, repo.ErrHasActivity),
		errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, payout.ErrInsufficientBalance),
		errors.Is(err, events.ErrInactiveNumber),
		errors.Is(err, events.ErrChannelMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payout.ErrInvalidAmount),
		errors.Is(err, payout.ErrNoPayoutMethod),
		errors.Is(err, numbers.ErrInvalidNumber),
		errors.Is(err, numbers.ErrFulfillment),
		errors.Is(err, messages.ErrEmptyReply),
		errors.Is(err, events.ErrInvalidLength),
		errors.Is(err, auth.ErrInvalidAccount),
		errors.Is(err, report.ErrInvalidWindow),
		errors.Is(err, report.ErrWindowTooLarge),
		errors.Is(err, report.ErrBadGranularity):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondWithServiceError logs server faults and hides their detail from clients
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, status, "internal server error")
		return
	}
	respondWithError(w, status, err.Error())
}

// principal returns the request principal or writes 401
func principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return access.Principal{}, false
	}
	return p, true
}

// idParam parses the {id} route parameter or writes 400
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

const defaultWindow = 30 * 24 * time.Hour

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date_to
// covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// parseFilter builds an activity filter from query parameters for p. The
// window defaults to the last 30 days.
func parseFilter(r *http.Request, p access.Principal, now time.Time) (model.ActivityFilter, error) {
	q := r.URL.Query()
	f := model.ActivityFilter{
		Scope:       p.Scope(),
		DateTo:      now.UTC().Truncate(time.Second),
		Country:     strings.ToUpper(strings.TrimSpace(q.Get("country"))),
		ServiceType: model.ChannelType(strings.ToLower(strings.TrimSpace(q.Get("service_type")))),
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := parseTime(raw, true)
		if err != nil {
			return f, err
		}
		f.DateTo = t
	}
	f.DateFrom = f.DateTo.Add(-defaultWindow)
	if raw := q.Get("date_from"); raw != "" {
		t, err := parseTime(raw, false)
		if err != nil {
			return f, err
		}
		f.DateFrom = t
	}
	if f.ServiceType != "" && !f.ServiceType.Valid() {
		return f, fmt.Errorf("invalid service_type %q", f.ServiceType)
	}
	if f.DateTo.Before(f.DateFrom) {
		return f, report.ErrInvalidWindow
	}
	return f, nil
}

// filterKey is a cache key unique to the filter and its scope
func filterKey(kind string, f model.ActivityFilter, extra ...string) string {
	scope := "all"
	if !f.Scope.All {
		scope = f.Scope.UserID.String()
	}
	parts := append([]string{
		reportCachePrefix + kind,
		scope,
		f.DateFrom.Format(time.RFC3339Nano),
		f.DateTo.Format(time.RFC3339Nano),
		f.Country,
		string(f.ServiceType),
	}, extra...)
	return strings.Join(parts, "|")
}

// intParam reads a non-negative integer query parameter
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
