package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/http/handlers"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/repo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every endpoint handler served by the router
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Reports   *handlers.ReportHandler
	Numbers   *handlers.NumberHandler
	Events    *handlers.EventHandler
	Messages  *handlers.MessageHandler
	Payouts   *handlers.PayoutHandler
	Providers *handlers.ProviderHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, jwtService *auth.JWTService, userRepo repo.UserRepo, loginIPLimiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/health", h.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimitMiddleware(loginIPLimiter, middleware.GetIPKey)).
			Post("/auth/login", h.Auth.HandleLogin)

		// Protected routes (require valid JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService, userRepo))

			r.Get("/me", h.Auth.HandleMe)
			r.Put("/me/payout-method", h.Auth.HandleSetPayoutMethod)

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireCapability(access.ViewAllAccounts)).Get("/", h.Auth.HandleListUsers)
				r.With(middleware.RequireCapability(access.ManageUsers)).Post("/", h.Auth.HandleCreateUser)
				r.With(middleware.RequireCapability(access.ManagePayouts)).Get("/{id}/reconcile", h.Payouts.HandleReconcile)
			})

			r.Get("/dashboard", h.Reports.HandleDashboard)
			r.Get("/activity", h.Reports.HandleActivity)
			r.Get("/reports/revenue", h.Reports.HandleRevenue)

			r.Route("/numbers", func(r chi.Router) {
				r.Get("/", h.Numbers.HandleList)
				r.Get("/{id}", h.Numbers.HandleGet)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCapability(access.ManageNumbers))
					r.Post("/", h.Numbers.HandleCreate)
					r.Patch("/{id}", h.Numbers.HandleUpdate)
					r.Delete("/{id}", h.Numbers.HandleDelete)
				})
			})

			r.Route("/number-requests", func(r chi.Router) {
				r.Get("/", h.Numbers.HandleListRequests)
				r.Post("/", h.Numbers.HandleCreateRequest)
				r.With(middleware.RequireCapability(access.ManageRequests)).
					Post("/{id}/advance", h.Numbers.HandleAdvanceRequest)
			})

			r.Route("/events", func(r chi.Router) {
				r.Use(middleware.RequireCapability(access.IngestEvents))
				r.Post("/calls", h.Events.HandleRecordCall)
				r.Post("/sms", h.Events.HandleRecordSMS)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", h.Messages.HandleList)
				r.With(middleware.RequireCapability(access.IngestEvents)).Post("/", h.Messages.HandleReceive)
				r.Post("/{id}/read", h.Messages.HandleMarkRead)
				r.Post("/{id}/respond", h.Messages.HandleRespond)
				r.Post("/{id}/archive", h.Messages.HandleArchive)
				r.Post("/{id}/reset", h.Messages.HandleReset)
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", h.Payouts.HandleList)
				r.Post("/", h.Payouts.HandleRequest)
				r.Get("/{id}", h.Payouts.HandleGet)
				r.With(middleware.RequireCapability(access.ManagePayouts)).
					Post("/{id}/advance", h.Payouts.HandleAdvance)
			})

			r.Route("/providers", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCapability(access.ViewProviders))
					r.Get("/", h.Providers.HandleList)
					r.Get("/{id}", h.Providers.HandleGet)
				})
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCapability(access.ManageProviders))
					r.Post("/", h.Providers.HandleCreate)
					r.Put("/{id}", h.Providers.HandleUpdate)
					r.Delete("/{id}", h.Providers.HandleDelete)
				})
			})
		})
	})

	return r
}
