package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/billing"
	"github.com/snagtrack/snagtrack/internal/mail"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/plan"
	"github.com/snagtrack/snagtrack/internal/presence"
	"github.com/snagtrack/snagtrack/internal/ratelimit"
	"github.com/snagtrack/snagtrack/internal/report"
	"github.com/snagtrack/snagtrack/internal/site"
	"github.com/snagtrack/snagtrack/internal/sitename"
	"github.com/snagtrack/snagtrack/internal/storage"
	"github.com/snagtrack/snagtrack/internal/team"
	"github.com/snagtrack/snagtrack/internal/user"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users      *user.Store
	Teams      *team.Store
	Sites      *site.Store
	Reports    *report.Store
	Activities *activity.Store
	Feed       *activity.Feed
	Plans      *plan.Engine
	Billing    *billing.Service
	Subs       *billing.Store
	Storage    *storage.Client
	SiteNames  *sitename.Fetcher
	Mailer     *mail.Sender
	Toucher    *presence.Toucher
	Tokens     *auth.Tokens
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics
	DBPool     *pgxpool.Pool

	AllowedOrigins []string
	BaseURL        string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(metricsMiddleware(deps.Metrics))
	r.Use(slogRequestLogger)

	// Handlers.
	authH := newAuthHandler(deps.DBPool, deps.Users, deps.Teams, deps.Tokens, deps.Metrics)
	reportsH := newReportsHandler(deps.Reports, deps.Sites, deps.Plans, deps.Storage, deps.SiteNames, deps.Activities, deps.Metrics)
	commentsH := newCommentsHandler(reportsH, deps.Reports, deps.Storage, deps.Metrics)
	sitesH := newSitesHandler(deps.Sites)
	teamsH := newTeamsHandler(deps.Teams, deps.Users, deps.Plans, deps.Mailer, reportsH, deps.BaseURL)
	activitiesH := newActivitiesHandler(deps.Activities, deps.Feed)
	billingH := newBillingHandler(deps.Billing, deps.Subs, deps.Teams, deps.Metrics)

	// Health check.
	r.Get("/health", healthHandler(deps.DBPool))

	// Live metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	// Stripe webhook: authenticated by signature, not bearer token.
	r.Post("/billing/webhook", billingH.Webhook)

	// Public (unauthenticated) routes, behind the credential rate limiter.
	r.Group(func(pr chi.Router) {
		if deps.Limiter != nil {
			pr.Use(ratelimit.Middleware(deps.Limiter, rejectionCounter(deps.Metrics)))
		}
		pr.Post("/api/v1/auth/register", authH.Register)
		pr.Post("/api/v1/auth/login", authH.Login)
	})

	// Authenticated routes.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(auth.Middleware(deps.Tokens))
		ar.Use(presenceMiddleware(deps.Toucher))

		ar.Get("/auth/me", authH.Me)
		ar.Patch("/auth/me", authH.UpdateMe)

		// Reports.
		ar.Post("/reports", reportsH.Create)
		ar.Get("/reports", reportsH.List)
		ar.Get("/reports/{id}", reportsH.Get)
		ar.Delete("/reports/{id}", reportsH.Delete)
		ar.Patch("/reports/{id}/status", reportsH.SetStatus)
		ar.Patch("/reports/{id}/priority", reportsH.SetPriority)
		ar.Patch("/reports/{id}/due-date", reportsH.SetDueDate)
		ar.Patch("/reports/{id}/archive", reportsH.SetArchived)

		// Comments.
		ar.Post("/reports/{id}/comments", commentsH.Create)
		ar.Get("/reports/{id}/comments", commentsH.List)

		// Sites.
		ar.Get("/sites", sitesH.List)
		ar.Post("/sites/{id}/pin", sitesH.Pin)
		ar.Delete("/sites/{id}/pin", sitesH.Unpin)

		// Teams, members, invites.
		ar.Post("/teams", teamsH.Create)
		ar.Get("/teams/{id}", teamsH.Get)
		ar.Patch("/teams/{id}", teamsH.Update)
		ar.Get("/teams/{id}/members", teamsH.ListMembers)
		ar.Delete("/teams/{id}/members/{userID}", teamsH.RemoveMember)
		ar.Post("/teams/{id}/invite-link", teamsH.InviteLink)
		ar.Post("/teams/{id}/invite-email", teamsH.InviteEmail)
		ar.Post("/teams/join", teamsH.Join)

		// Feeds.
		ar.Get("/activities", activitiesH.ListActivities)
		ar.Get("/notifications", activitiesH.ListNotifications)
		ar.Post("/notifications/mark-read", activitiesH.MarkNotificationsRead)

		// Billing.
		ar.Post("/billing/checkout", billingH.Checkout)
		ar.Get("/billing/subscription", billingH.Subscription)
	})

	return r
}

// healthHandler reports liveness, including a database ping when a pool is
// configured.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := "connected"
		status := "ok"
		code := http.StatusOK
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				database = "unreachable"
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"` + status + `","database":"` + database + `"}`))
	}
}

func rejectionCounter(m *metrics.Metrics) func() {
	return func() {
		if m != nil {
			m.IncRateLimitRejection()
		}
	}
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
		)
	})
}
