package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/auth"
)

const defaultFeedLimit = 50

// activitiesHandler serves the team activity feed and the personal
// notification feed.
type activitiesHandler struct {
	store *activity.Store
	feed  *activity.Feed
}

func newActivitiesHandler(store *activity.Store, feed *activity.Feed) *activitiesHandler {
	return &activitiesHandler{store: store, feed: feed}
}

// activityPayload is a feed entry with its rendered message.
type activityPayload struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"reportId"`
	ReportTitle string    `json:"reportTitle"`
	ActorName   string    `json:"actorName"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListActivities handles GET /api/v1/activities: everything that happened on
// the caller's teams' reports, newest first.
func (h *activitiesHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	activities, err := h.store.ListForTeams(r.Context(), u.TeamIDs(), feedLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list activities")
		return
	}

	payload := make([]activityPayload, 0, len(activities))
	for _, a := range activities {
		payload = append(payload, activityPayload{
			ID:          a.ID,
			ReportID:    a.ReportID,
			ReportTitle: a.ReportTitle,
			ActorName:   a.ActorName,
			Type:        a.Type,
			Message:     activity.Message(a),
			Icon:        activity.Icon(a.Type),
			Color:       activity.Color(a.Type),
			CreatedAt:   a.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"activities": payload})
}

// ListNotifications handles GET /api/v1/notifications: the caller's persisted
// activity notifications merged with derived overdue and due-today entries.
func (h *activitiesHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	notifications, err := h.feed.Notifications(r.Context(), u.ID, feedLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build notifications")
		return
	}
	if notifications == nil {
		notifications = []*activity.Notification{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

// MarkNotificationsRead handles POST /api/v1/notifications/mark-read. Derived
// entries have no read state; they disappear when the due date is handled.
func (h *activitiesHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	if err := h.store.MarkRead(r.Context(), u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to mark notifications read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func feedLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			return n
		}
	}
	return defaultFeedLimit
}
