package api

import (
	"io"
	"net/http"

	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/billing"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/plan"
	"github.com/snagtrack/snagtrack/internal/team"
)

// billingHandler bridges the API to Stripe.
type billingHandler struct {
	service *billing.Service
	subs    *billing.Store
	teams   *team.Store
	metrics *metrics.Metrics
}

func newBillingHandler(service *billing.Service, subs *billing.Store, teams *team.Store, m *metrics.Metrics) *billingHandler {
	return &billingHandler{service: service, subs: subs, teams: teams, metrics: m}
}

// Checkout handles POST /api/v1/billing/checkout. Owner only; returns the
// hosted payment page URL.
func (h *billingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req struct {
		TeamID string `json:"teamId"`
		Plan   string `json:"plan"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.TeamID == "" {
		req.TeamID = u.FirstTeamID()
	}
	if !u.Can(auth.CapManageBilling, req.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden", "only owners can manage billing")
		return
	}

	target := plan.Parse(req.Plan)
	if target == plan.Free {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "plan must be starter, team, or agency")
		return
	}

	t, err := h.teams.GetByID(r.Context(), req.TeamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "team not found")
		return
	}

	url, err := h.service.Checkout(r.Context(), t.ID, target, t.StripeCustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create checkout session")
		return
	}

	auditLog(r, "checkout", "team", t.ID, "plan", string(target))
	writeJSON(w, http.StatusOK, map[string]interface{}{"url": url})
}

// Subscription handles GET /api/v1/billing/subscription: the caller's team's
// cached subscription state.
func (h *billingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	teamID := r.URL.Query().Get("teamId")
	if teamID == "" {
		teamID = u.FirstTeamID()
	}
	if !u.InTeam(teamID) {
		writeError(w, http.StatusForbidden, "forbidden", "not a member of this team")
		return
	}

	sub, err := h.subs.GetByTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}

	current, status := plan.Free, "active"
	if sub != nil {
		current, status = sub.Plan, sub.Status
	}
	resp := map[string]interface{}{
		"plan":   current,
		"status": status,
		"limits": plan.LimitsFor(current),
	}
	if sub != nil {
		if sub.Interval != "" {
			resp["interval"] = sub.Interval
		}
		if sub.CurrentPeriodEnd != nil {
			resp["currentPeriodEnd"] = sub.CurrentPeriodEnd
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Webhook handles POST /billing/webhook. Stripe authenticates with the
// Stripe-Signature header, not a bearer token; a bad signature is a hard 400.
func (h *billingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to read payload")
		return
	}

	event, err := h.service.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncWebhookEvent("unknown", "bad_signature")
		}
		writeError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}

	if err := h.service.HandleEvent(r.Context(), event); err != nil {
		if h.metrics != nil {
			h.metrics.IncWebhookEvent(string(event.Type), "error")
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process event")
		return
	}

	if h.metrics != nil {
		h.metrics.IncWebhookEvent(string(event.Type), "ok")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}
