package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/mail"
	"github.com/snagtrack/snagtrack/internal/plan"
	"github.com/snagtrack/snagtrack/internal/team"
	"github.com/snagtrack/snagtrack/internal/user"
)

// teamsHandler groups team, membership and invite HTTP handlers.
type teamsHandler struct {
	teams   *team.Store
	users   *user.Store
	plans   *plan.Engine
	mailer  *mail.Sender
	reports *reportsHandler // shared plan rejection mapping
	baseURL string
}

func newTeamsHandler(teams *team.Store, users *user.Store, plans *plan.Engine,
	mailer *mail.Sender, reports *reportsHandler, baseURL string) *teamsHandler {
	return &teamsHandler{
		teams:   teams,
		users:   users,
		plans:   plans,
		mailer:  mailer,
		reports: reports,
		baseURL: baseURL,
	}
}

// Create handles POST /api/v1/teams.
func (h *teamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "team name is required")
		return
	}

	t, err := h.teams.Create(r.Context(), team.CreateTeamInput{Name: req.Name}, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create team")
		return
	}

	auditLog(r, "create", "team", t.ID)
	writeJSON(w, http.StatusCreated, t)
}

// Get handles GET /api/v1/teams/{id}.
func (h *teamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update handles PATCH /api/v1/teams/{id}. Owner only.
func (h *teamsHandler) Update(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}
	if !u.Can(auth.CapUpdateTeam, t.ID) {
		writeError(w, http.StatusForbidden, "forbidden", "only owners can update the team")
		return
	}

	var req team.UpdateTeamInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	// Plan changes arrive only through billing webhooks.
	req.Plan = nil
	req.StripeCustomerID = nil

	updated, err := h.teams.Update(r.Context(), t.ID, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update team")
		return
	}

	auditLog(r, "update", "team", t.ID)
	writeJSON(w, http.StatusOK, updated)
}

// memberBrief is a membership joined with account details for team pages.
type memberBrief struct {
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       auth.Role  `json:"role"`
	LastActive *time.Time `json:"lastActive,omitempty"`
	JoinedAt   time.Time  `json:"joinedAt"`
}

// ListMembers handles GET /api/v1/teams/{id}/members.
func (h *teamsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}

	members, err := h.teams.ListMembers(r.Context(), t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list members")
		return
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	accounts, err := h.users.GetByIDs(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load member accounts")
		return
	}

	briefs := make([]memberBrief, 0, len(members))
	for _, m := range members {
		b := memberBrief{UserID: m.UserID, Role: m.Role, JoinedAt: m.CreatedAt}
		if acct, ok := accounts[m.UserID]; ok {
			b.Name = acct.Name
			b.Email = acct.Email
			b.LastActive = acct.LastActive
		}
		briefs = append(briefs, b)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"members": briefs})
}

// RemoveMember handles DELETE /api/v1/teams/{id}/members/{userID}. Owners
// remove anyone; anyone may remove themselves.
func (h *teamsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "userID")
	if targetID != u.ID && !u.Can(auth.CapRemoveMember, t.ID) {
		writeError(w, http.StatusForbidden, "forbidden", "only owners can remove other members")
		return
	}

	err := h.teams.RemoveMember(r.Context(), t.ID, targetID)
	switch {
	case errors.Is(err, team.ErrNotMember):
		writeError(w, http.StatusNotFound, "not_found", "membership not found")
		return
	case errors.Is(err, team.ErrLastOwner):
		writeError(w, http.StatusConflict, "last_owner", "a team must keep at least one owner")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to remove member")
		return
	}

	auditLog(r, "remove_member", "team", t.ID, "member_id", targetID)
	w.WriteHeader(http.StatusNoContent)
}

// InviteLink handles POST /api/v1/teams/{id}/invite-link. An unexpired,
// unused link invite is reused; otherwise a fresh code is minted.
func (h *teamsHandler) InviteLink(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}
	if !u.Can(auth.CapInviteMember, t.ID) {
		writeError(w, http.StatusForbidden, "forbidden", "role cannot invite members")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	_ = readJSON(r, &req)
	role, _ := auth.ParseRole(req.Role)

	inv, err := h.teams.ActiveInvite(r.Context(), t.ID, role)
	if errors.Is(err, pgx.ErrNoRows) {
		inv, err = h.teams.CreateInvite(r.Context(), t.ID, role, "")
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create invite")
		return
	}

	auditLog(r, "invite_link", "team", t.ID, "invite_id", inv.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"code":      inv.Code,
		"url":       h.joinURL(inv.Code),
		"role":      inv.Role,
		"expiresAt": inv.ExpiresAt,
	})
}

// InviteEmail handles POST /api/v1/teams/{id}/invite-email: mints a dedicated
// invite and mails the code.
func (h *teamsHandler) InviteEmail(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	t, ok := h.memberTeam(w, r, u)
	if !ok {
		return
	}
	if !u.Can(auth.CapInviteMember, t.ID) {
		writeError(w, http.StatusForbidden, "forbidden", "role cannot invite members")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "a valid email is required")
		return
	}
	role, _ := auth.ParseRole(req.Role)

	// Mailed invites require an active subscription; link invites do not.
	if pc, perr := h.plans.Check(r.Context(), t.ID); gateBlocks(perr, plan.ErrPaymentRequired) {
		h.reports.rejectPlan(w, pc, perr)
		return
	}

	if h.mailer == nil || !h.mailer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "mail_unavailable", "email delivery is not configured")
		return
	}

	inv, err := h.teams.CreateInvite(r.Context(), t.ID, role, req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create invite")
		return
	}

	if !inv.ExpiresAt.After(time.Now()) {
		writeError(w, http.StatusInternalServerError, "internal_error", "invite expired before sending")
		return
	}
	if err := h.mailer.SendInvite(r.Context(), req.Email, t.Name, inv.Code); err != nil {
		slog.Error("failed to send invite email", "team_id", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "mail_failed", "failed to send invite email")
		return
	}

	auditLog(r, "invite_email", "team", t.ID, "invite_id", inv.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"code":      inv.Code,
		"role":      inv.Role,
		"email":     inv.Email,
		"expiresAt": inv.ExpiresAt,
	})
}

// Join handles POST /api/v1/teams/join: redeems an invite code. Joining a
// team the caller already belongs to succeeds without consuming the code.
func (h *teamsHandler) Join(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "invite code is required")
		return
	}

	inv, err := h.teams.GetInviteByCode(r.Context(), req.Code)
	if errors.Is(err, team.ErrInviteNotFound) {
		writeError(w, http.StatusNotFound, "invite_not_found", "invite code not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to look up invite")
		return
	}

	// The member ceiling gates joins, not existing memberships.
	if !u.InTeam(inv.TeamID) {
		if pc, perr := h.plans.Check(r.Context(), inv.TeamID); gateBlocks(perr, plan.ErrMemberLimit) {
			h.reports.rejectPlan(w, pc, perr)
			return
		}
	}

	m, err := h.teams.RedeemInvite(r.Context(), req.Code, u.ID)
	switch {
	case errors.Is(err, team.ErrInviteNotFound):
		writeError(w, http.StatusNotFound, "invite_not_found", "invite code not found")
		return
	case errors.Is(err, team.ErrInviteExpired):
		writeError(w, http.StatusGone, "invite_expired", "invite code has expired")
		return
	case errors.Is(err, team.ErrInviteUsed):
		writeError(w, http.StatusConflict, "invite_used", "invite code has already been used")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to redeem invite")
		return
	}

	auditLog(r, "join", "team", m.TeamID)
	writeJSON(w, http.StatusOK, m)
}

// memberTeam loads the team named in the URL and checks membership.
func (h *teamsHandler) memberTeam(w http.ResponseWriter, r *http.Request, u *auth.User) (*team.Team, bool) {
	t, err := h.teams.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "team not found")
		return nil, false
	}
	if !u.InTeam(t.ID) {
		writeError(w, http.StatusNotFound, "not_found", "team not found")
		return nil, false
	}
	return t, true
}

func (h *teamsHandler) joinURL(code string) string {
	return fmt.Sprintf("%s/join?code=%s", h.baseURL, code)
}
