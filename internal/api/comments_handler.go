package api

import (
	"bytes"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/report"
	"github.com/snagtrack/snagtrack/internal/storage"
)

// commentsHandler groups comment HTTP handlers. Comments ride on the report
// routes; access control is the report's.
type commentsHandler struct {
	reports *reportsHandler
	store   *report.Store
	storage *storage.Client
	metrics *metrics.Metrics
}

func newCommentsHandler(reports *reportsHandler, store *report.Store, sc *storage.Client, m *metrics.Metrics) *commentsHandler {
	return &commentsHandler{reports: reports, store: store, storage: sc, metrics: m}
}

// Create handles POST /api/v1/reports/{id}/comments. Accepts JSON for plain
// comments and multipart when image attachments ride along.
func (h *commentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.reports.loadAccessible(w, r)
	if !ok {
		return
	}
	u := auth.UserFromContext(r.Context())

	var body string
	var parentID *string
	var files []*multipart.FileHeader

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse multipart form")
			return
		}
		body = r.FormValue("body")
		if p := r.FormValue("parentId"); p != "" {
			parentID = &p
		}
		if r.MultipartForm != nil {
			files = r.MultipartForm.File["attachments"]
		}
	} else {
		var req struct {
			Body     string  `json:"body"`
			ParentID *string `json:"parentId"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
			return
		}
		body = req.Body
		parentID = req.ParentID
	}

	if body == "" && len(files) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "comment body or attachment is required")
		return
	}

	userID := u.ID
	c, err := h.store.CreateComment(r.Context(), report.CreateCommentInput{
		ReportID: rep.ID,
		ParentID: parentID,
		UserID:   &userID,
		Body:     body,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create comment")
		return
	}

	for _, fh := range files {
		a, err := h.attach(r, c.ID, fh)
		if err != nil {
			slog.Warn("failed to store attachment", "comment_id", c.ID, "filename", fh.Filename, "error", err)
			continue
		}
		c.Attachments = append(c.Attachments, a)
	}

	h.reports.logActivity(r, activity.Record{
		ReportID: rep.ID,
		ActorID:  u.ID,
		OwnerID:  rep.UserID,
		Type:     activity.TypeComment,
	})

	h.signAttachments(r, c.Attachments)
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/reports/{id}/comments, oldest first.
func (h *commentsHandler) List(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.reports.loadAccessible(w, r)
	if !ok {
		return
	}

	comments, err := h.store.ListComments(r.Context(), rep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list comments")
		return
	}
	for _, c := range comments {
		h.signAttachments(r, c.Attachments)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// attach uploads one attachment plus its thumbnail and records the row.
func (h *commentsHandler) attach(r *http.Request, commentID string, fh *multipart.FileHeader) (*report.Attachment, error) {
	if h.storage == nil {
		return nil, errors.New("object storage is not configured")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	objectKey := storage.NewKey("attachments", fh.Filename)
	start := time.Now()
	err = h.storage.Upload(r.Context(), objectKey, f, fh.Size, fh.Header.Get("Content-Type"))
	if h.metrics != nil {
		h.metrics.ObserveStorageOp("upload", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, err
	}

	// Thumbnail from a fresh read of the file. Non-image attachments simply
	// have no thumbnail.
	thumbKey := ""
	if tf, err := fh.Open(); err == nil {
		thumb, terr := storage.Thumbnail(tf)
		tf.Close()
		if terr == nil {
			thumbKey = storage.NewKey("thumbs", fh.Filename+".jpg")
			if uerr := h.storage.Upload(r.Context(), thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); uerr != nil {
				slog.Warn("failed to store thumbnail", "comment_id", commentID, "error", uerr)
				thumbKey = ""
			}
		}
	}

	return h.store.AddAttachment(r.Context(), commentID, objectKey, thumbKey)
}

// signAttachments fills presigned URLs for a comment's attachments.
func (h *commentsHandler) signAttachments(r *http.Request, attachments []*report.Attachment) {
	if h.storage == nil {
		return
	}
	for _, a := range attachments {
		if a.ObjectKey != "" {
			if u, err := h.storage.SignedURL(r.Context(), a.ObjectKey); err == nil {
				a.URL = u
			}
		}
		if a.ThumbKey != "" {
			if u, err := h.storage.SignedURL(r.Context(), a.ThumbKey); err == nil {
				a.ThumbURL = u
			}
		}
	}
}
