package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/team"
	"github.com/snagtrack/snagtrack/internal/user"
)

// txBeginner is the transaction slice of pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// userAccounts is the slice of the user store the auth handlers use.
type userAccounts interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	CreateTx(ctx context.Context, tx pgx.Tx, in user.CreateUserInput) (*user.User, error)
	Update(ctx context.Context, id string, in user.UpdateUserInput) (*user.User, error)
}

// teamDirectory is the slice of the team store the auth handlers use.
type teamDirectory interface {
	CreateTx(ctx context.Context, tx pgx.Tx, in team.CreateTeamInput, ownerID string) (*team.Team, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]*team.Member, error)
}

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	db      txBeginner
	users   userAccounts
	teams   teamDirectory
	tokens  *auth.Tokens
	metrics *metrics.Metrics
}

func newAuthHandler(db txBeginner, users userAccounts, teams teamDirectory, tokens *auth.Tokens, m *metrics.Metrics) *authHandler {
	return &authHandler{db: db, users: users, teams: teams, tokens: tokens, metrics: m}
}

// Register handles POST /api/v1/auth/register. A fresh account gets its own
// team, so every user always has at least one membership.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		TeamName string `json:"teamName"`
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
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "password must be at least 8 characters")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		return
	}

	teamName := req.TeamName
	if teamName == "" {
		teamName = fmt.Sprintf("%s's team", req.Name)
	}

	// Account and initial team land in one transaction so a team failure
	// never strands a teamless account.
	tx, err := h.db.Begin(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}
	defer tx.Rollback(r.Context())

	u, err := h.users.CreateTx(r.Context(), tx, user.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	t, err := h.teams.CreateTx(r.Context(), tx, team.CreateTeamInput{Name: teamName}, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create team")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	authed := &auth.User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Teams: []auth.TeamMembership{{TeamID: t.ID, Role: auth.RoleOwner}},
	}
	token, err := h.tokens.Issue(authed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthSuccess("register")
	}
	auditLog(r, "register", "user", u.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  userPayload(authed),
	})
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("unknown_email")
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if !user.CheckPassword(u, req.Password) {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("bad_password")
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	authed, err := h.authUser(r, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load memberships")
		return
	}

	token, err := h.tokens.Issue(authed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthSuccess("login")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  userPayload(authed),
	})
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, userPayload(u))
}

// UpdateMe handles PATCH /api/v1/auth/me: partial profile update. Status is
// not settable over the wire.
func (h *authHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req user.UpdateUserInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	req.Status = nil
	if req.Email != nil && !strings.Contains(*req.Email, "@") {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "valid email is required")
		return
	}
	if req.Password != nil && len(*req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "password must be at least 8 characters")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name must not be empty")
		return
	}

	updated, err := h.users.Update(r.Context(), u.ID, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update profile")
		return
	}

	auditLog(r, "update", "user", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

// authUser assembles the token identity from the account row and its current
// memberships.
func (h *authHandler) authUser(r *http.Request, u *user.User) (*auth.User, error) {
	memberships, err := h.teams.ListMembershipsByUser(r.Context(), u.ID)
	if err != nil {
		return nil, err
	}
	teams := make([]auth.TeamMembership, 0, len(memberships))
	for _, m := range memberships {
		teams = append(teams, auth.TeamMembership{TeamID: m.TeamID, Role: m.Role})
	}
	return &auth.User{ID: u.ID, Email: u.Email, Name: u.Name, Teams: teams}, nil
}

func userPayload(u *auth.User) map[string]interface{} {
	return map[string]interface{}{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
		"teams": u.Teams,
	}
}
