package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/site"
)

// sitesHandler groups site HTTP handlers.
type sitesHandler struct {
	sites *site.Store
}

func newSitesHandler(sites *site.Store) *sitesHandler {
	return &sitesHandler{sites: sites}
}

// sitePayload is a site plus the caller's pin state.
type sitePayload struct {
	*site.Site
	Pinned bool `json:"pinned"`
}

// List handles GET /api/v1/sites: all sites of the caller's teams, with the
// caller's pins flagged.
func (h *sitesHandler) List(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	sites, err := h.sites.ListByTeams(r.Context(), u.TeamIDs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sites")
		return
	}

	pinnedIDs, err := h.sites.PinnedSiteIDs(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load pins")
		return
	}
	pinned := make(map[string]struct{}, len(pinnedIDs))
	for _, id := range pinnedIDs {
		pinned[id] = struct{}{}
	}

	payload := make([]sitePayload, 0, len(sites))
	for _, s := range sites {
		_, isPinned := pinned[s.ID]
		payload = append(payload, sitePayload{Site: s, Pinned: isPinned})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sites": payload})
}

// Pin handles POST /api/v1/sites/{id}/pin. Pinning twice is a no-op.
func (h *sitesHandler) Pin(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	s, ok := h.memberSite(w, r, u)
	if !ok {
		return
	}

	if err := h.sites.Pin(r.Context(), u.ID, s.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to pin site")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unpin handles DELETE /api/v1/sites/{id}/pin.
func (h *sitesHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	s, ok := h.memberSite(w, r, u)
	if !ok {
		return
	}

	if err := h.sites.Unpin(r.Context(), u.ID, s.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to unpin site")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memberSite loads the site named in the URL and checks the caller belongs to
// its team.
func (h *sitesHandler) memberSite(w http.ResponseWriter, r *http.Request, u *auth.User) (*site.Site, bool) {
	s, err := h.sites.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "site not found")
		return nil, false
	}
	if s.TeamID == nil || !u.InTeam(*s.TeamID) {
		writeError(w, http.StatusNotFound, "not_found", "site not found")
		return nil, false
	}
	return s, true
}
