package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/plan"
	"github.com/snagtrack/snagtrack/internal/report"
	"github.com/snagtrack/snagtrack/internal/site"
	"github.com/snagtrack/snagtrack/internal/sitename"
	"github.com/snagtrack/snagtrack/internal/storage"
)

// reportsHandler groups report lifecycle HTTP handlers.
type reportsHandler struct {
	reports    *report.Store
	sites      *site.Store
	plans      *plan.Engine
	storage    *storage.Client
	names      *sitename.Fetcher
	activities *activity.Store
	metrics    *metrics.Metrics
}

func newReportsHandler(reports *report.Store, sites *site.Store, plans *plan.Engine,
	store *storage.Client, names *sitename.Fetcher, activities *activity.Store, m *metrics.Metrics) *reportsHandler {
	return &reportsHandler{
		reports:    reports,
		sites:      sites,
		plans:      plans,
		storage:    store,
		names:      names,
		activities: activities,
		metrics:    m,
	}
}

// Create handles POST /api/v1/reports. The body is multipart: report fields
// plus an optional screenshot file. The site for the report's domain is
// created on first use; the site gate only applies when that creation would
// actually happen.
func (h *reportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse multipart form")
		return
	}

	pageURL := r.FormValue("url")
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Hostname() == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "a valid page url is required")
		return
	}
	title := r.FormValue("title")
	if title == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "title is required")
		return
	}

	teamID := r.FormValue("teamId")
	if teamID == "" {
		teamID = u.FirstTeamID()
	}
	if !u.InTeam(teamID) {
		writeError(w, http.StatusForbidden, "forbidden", "not a member of this team")
		return
	}
	if !u.Can(auth.CapCreateReport, teamID) {
		writeError(w, http.StatusForbidden, "forbidden", "role cannot create reports")
		return
	}

	domain := parsed.Hostname()
	existingSite, siteErr := h.sites.GetByDomain(r.Context(), domain)
	siteKnown := siteErr == nil

	pc, err := h.plans.Check(r.Context(), teamID)
	if err != nil {
		// The site ceiling is only in play when this report would mint a
		// new site row.
		if !errors.Is(err, plan.ErrSiteLimit) || !siteKnown {
			h.rejectPlan(w, pc, err)
			return
		}
	}

	var x, y float64
	if v := r.FormValue("x"); v != "" {
		x, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.FormValue("y"); v != "" {
		y, _ = strconv.ParseFloat(v, 64)
	}

	reportSite := existingSite
	if !siteKnown {
		name := h.names.Resolve(r.Context(), domain)
		created, _, err := h.sites.FindOrCreate(r.Context(), site.CreateSiteInput{
			TeamID: &teamID,
			Domain: domain,
			Name:   name,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create site")
			return
		}
		reportSite = created
	}

	imageKey := ""
	if file, header, err := r.FormFile("screenshot"); err == nil && h.storage != nil {
		defer file.Close()
		imageKey = storage.NewKey("screenshots", header.Filename)
		start := time.Now()
		uploadErr := h.storage.Upload(r.Context(), imageKey, file, header.Size, header.Header.Get("Content-Type"))
		if h.metrics != nil {
			h.metrics.ObserveStorageOp("upload", time.Since(start).Seconds(), uploadErr)
		}
		if uploadErr != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to store screenshot")
			return
		}
	}

	in := report.CreateReportInput{
		SiteID:   reportSite.ID,
		UserID:   u.ID,
		URL:      pageURL,
		Title:    title,
		Comment:  r.FormValue("comment"),
		X:        x,
		Y:        y,
		Priority: r.FormValue("priority"),
		Type:     r.FormValue("type"),
		ImageKey: imageKey,
	}
	rep, err := h.reports.Create(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create report")
		return
	}

	if due := r.FormValue("dueAt"); due != "" {
		if t, perr := time.Parse(time.RFC3339, due); perr == nil {
			rep, err = h.reports.SetDueDate(r.Context(), rep.ID, &t)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", "failed to set due date")
				return
			}
		}
	}

	h.sign(r, rep)
	auditLog(r, "create", "report", rep.ID, "site_id", rep.SiteID)
	writeJSON(w, http.StatusCreated, rep)
}

// List handles GET /api/v1/reports. Visibility is the union of the user's
// teams' sites and the user's own reports.
func (h *reportsHandler) List(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	params := report.ListParams{
		TeamIDs:         u.TeamIDs(),
		UserID:          u.ID,
		Query:           r.URL.Query().Get("q"),
		IncludeArchived: r.URL.Query().Get("includeArchived") == "true",
	}

	reports, err := h.reports.List(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list reports")
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}
	for _, rep := range reports {
		h.sign(r, rep)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// Get handles GET /api/v1/reports/{id}.
func (h *reportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}
	h.sign(r, rep)
	writeJSON(w, http.StatusOK, rep)
}

// SetStatus handles PATCH /api/v1/reports/{id}/status.
func (h *reportsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "status is required")
		return
	}

	updated, err := h.reports.SetStatus(r.Context(), rep.ID, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update status")
		return
	}

	u := auth.UserFromContext(r.Context())
	actType := activity.TypeStatus
	if req.Status == report.StatusDone {
		actType = activity.TypeCompleted
	}
	h.logActivity(r, activity.Record{
		ReportID: updated.ID,
		ActorID:  u.ID,
		OwnerID:  updated.UserID,
		Type:     actType,
		Detail:   req.Status,
	})

	h.sign(r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// SetPriority handles PATCH /api/v1/reports/{id}/priority.
func (h *reportsHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	var req struct {
		Priority string `json:"priority"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Priority == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "priority is required")
		return
	}

	updated, err := h.reports.SetPriority(r.Context(), rep.ID, req.Priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update priority")
		return
	}

	u := auth.UserFromContext(r.Context())
	h.logActivity(r, activity.Record{
		ReportID: updated.ID,
		ActorID:  u.ID,
		OwnerID:  updated.UserID,
		Type:     activity.TypePriority,
		Detail:   req.Priority,
	})

	h.sign(r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// SetDueDate handles PATCH /api/v1/reports/{id}/due-date. A null dueAt clears
// the due date.
func (h *reportsHandler) SetDueDate(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	var req struct {
		DueAt *time.Time `json:"dueAt"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	updated, err := h.reports.SetDueDate(r.Context(), rep.ID, req.DueAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update due date")
		return
	}

	u := auth.UserFromContext(r.Context())
	h.logActivity(r, activity.Record{
		ReportID: updated.ID,
		ActorID:  u.ID,
		OwnerID:  updated.UserID,
		Type:     activity.TypeDueDate,
	})

	h.sign(r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// SetArchived handles PATCH /api/v1/reports/{id}/archive.
func (h *reportsHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	updated, err := h.reports.SetArchived(r.Context(), rep.ID, req.Archived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update archive flag")
		return
	}

	h.sign(r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/reports/{id}. The report, its comments and
// attachments go in one transaction; an emptied site goes with them. Object
// storage cleanup happens after commit and is best-effort.
func (h *reportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	u := auth.UserFromContext(r.Context())
	if rep.UserID != u.ID && !h.canManage(r, u, rep, auth.CapDeleteReport) {
		writeError(w, http.StatusForbidden, "forbidden", "role cannot delete this report")
		return
	}

	result, err := h.reports.Delete(r.Context(), rep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete report")
		return
	}

	if len(result.ObjectKeys) > 0 && h.storage != nil {
		start := time.Now()
		delErr := h.storage.DeleteAll(r.Context(), result.ObjectKeys)
		if h.metrics != nil {
			h.metrics.ObserveStorageOp("delete", time.Since(start).Seconds(), delErr)
		}
		if delErr != nil {
			slog.Warn("failed to delete report objects", "report_id", rep.ID, "error", delErr)
		}
	}

	auditLog(r, "delete", "report", rep.ID, "site_deleted", result.SiteDeleted)
	writeJSON(w, http.StatusOK, map[string]interface{}{"siteDeleted": result.SiteDeleted})
}

// loadAccessible fetches the report named in the URL and verifies the caller
// may see it: members of the site's team, or the report's creator.
func (h *reportsHandler) loadAccessible(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	u := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rep, err := h.reports.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "report not found")
		return nil, false
	}

	if rep.UserID == u.ID {
		return rep, true
	}
	s, err := h.sites.GetByID(r.Context(), rep.SiteID)
	if err == nil && s.TeamID != nil && u.InTeam(*s.TeamID) {
		return rep, true
	}

	writeError(w, http.StatusNotFound, "not_found", "report not found")
	return nil, false
}

// canManage reports whether the user holds cap in the team owning the
// report's site.
func (h *reportsHandler) canManage(r *http.Request, u *auth.User, rep *report.Report, cap auth.Capability) bool {
	s, err := h.sites.GetByID(r.Context(), rep.SiteID)
	if err != nil || s.TeamID == nil {
		return false
	}
	return u.Can(cap, *s.TeamID)
}

// sign fills in the report's presigned screenshot URL.
func (h *reportsHandler) sign(r *http.Request, rep *report.Report) {
	if rep.ImageKey == "" || h.storage == nil {
		return
	}
	signed, err := h.storage.SignedURL(r.Context(), rep.ImageKey)
	if err != nil {
		slog.Warn("failed to presign screenshot", "report_id", rep.ID, "error", err)
		return
	}
	rep.ImageURL = signed
}

// logActivity records an activity, logging failures instead of surfacing
// them: feed bookkeeping never fails a report mutation.
func (h *reportsHandler) logActivity(r *http.Request, rec activity.Record) {
	if h.activities == nil {
		return
	}
	if err := h.activities.Log(r.Context(), rec); err != nil {
		slog.Warn("failed to log activity", "report_id", rec.ReportID, "type", rec.Type, "error", err)
	}
}

// rejectPlan maps a plan enforcement error onto the wire.
func (h *reportsHandler) rejectPlan(w http.ResponseWriter, pc *plan.Context, err error) {
	planName := ""
	if pc != nil {
		planName = string(pc.Plan)
	}
	switch {
	case errors.Is(err, plan.ErrPaymentRequired):
		h.countRejection("payment", planName)
		writeError(w, http.StatusPaymentRequired, "payment_required", "subscription is past due; update billing to continue")
	case errors.Is(err, plan.ErrReportLimit):
		h.countRejection("reports", planName)
		writeError(w, http.StatusForbidden, "plan_limit", "report limit reached for the current plan")
	case errors.Is(err, plan.ErrMemberLimit):
		h.countRejection("members", planName)
		writeError(w, http.StatusForbidden, "plan_limit", "member limit reached for the current plan")
	case errors.Is(err, plan.ErrSiteLimit):
		h.countRejection("sites", planName)
		writeError(w, http.StatusForbidden, "plan_limit", "site limit reached for the current plan")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to check plan limits")
	}
}

func (h *reportsHandler) countRejection(gate, planName string) {
	if h.metrics != nil {
		h.metrics.IncPlanRejection(gate, planName)
	}
}

// gateBlocks reports whether a plan check result blocks an operation gated by
// sentinel. Ceilings other than sentinel do not apply to the operation; a
// non-ceiling failure always blocks, because the gate never ran.
func gateBlocks(err, sentinel error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel) {
		return true
	}
	return !planCeiling(err)
}

func planCeiling(err error) bool {
	return errors.Is(err, plan.ErrPaymentRequired) ||
		errors.Is(err, plan.ErrReportLimit) ||
		errors.Is(err, plan.ErrMemberLimit) ||
		errors.Is(err, plan.ErrSiteLimit)
}
