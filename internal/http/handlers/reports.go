package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/report"
)

const (
	defaultRecent   = 10
	defaultPageSize = 50
	maxPageSize     = 500
)

// ReportEngine computes dashboard, activity and revenue reports
type ReportEngine interface {
	Revenue(ctx context.Context, f model.ActivityFilter, g report.Granularity) (*report.Revenue, error)
	Dashboard(ctx context.Context, f model.ActivityFilter, recent int) (*report.Dashboard, error)
	Activity(ctx context.Context, f model.ActivityFilter, kind activity.Kind, limit, offset int) (*report.ActivityPage, error)
}

// ReportHandler serves scoped reports through the query client
type ReportHandler struct {
	engine ReportEngine
	client *query.Client
	now    func() time.Time
}

// NewReportHandler creates a new report handler
func NewReportHandler(engine ReportEngine, client *query.Client) *ReportHandler {
	return &ReportHandler{engine: engine, client: client, now: time.Now}
}

// HandleDashboard handles GET /dashboard
func (h *ReportHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r, p, h.now())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	recent, err := intParam(r, "recent", defaultRecent)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := query.Fetch(r.Context(), h.client, filterKey("dashboard", f, strconv.Itoa(recent)),
		func(ctx context.Context) (*report.Dashboard, error) {
			return h.engine.Dashboard(ctx, f, recent)
		})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDashboardResponse(f, d))
}

type activityPageResponse struct {
	Items  []activityResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// HandleActivity handles GET /activity
func (h *ReportHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r, p, h.now())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := activity.Kind(r.URL.Query().Get("kind"))
	if kind != "" && kind != activity.KindCall && kind != activity.KindSMS {
		respondWithError(w, http.StatusBadRequest, "kind must be call or sms")
		return
	}
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := query.Fetch(r.Context(), h.client,
		filterKey("activity", f, string(kind), strconv.Itoa(limit), strconv.Itoa(offset)),
		func(ctx context.Context) (*report.ActivityPage, error) {
			return h.engine.Activity(ctx, f, kind, limit, offset)
		})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, activityPageResponse{
		Items:  toActivityResponses(page.Items),
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleRevenue handles GET /reports/revenue
func (h *ReportHandler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r, p, h.now())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := report.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	rev, err := query.Fetch(r.Context(), h.client, filterKey("revenue", f, string(g)),
		func(ctx context.Context) (*report.Revenue, error) {
			return h.engine.Revenue(ctx, f, g)
		})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRevenueResponse(rev))
}
