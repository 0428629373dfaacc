package report

import (
	"math"
	"time"
)

// Well-known report statuses. Status is stored as free text — an authorized
// caller may write any value — but these three drive the lifecycle.
const (
	StatusNew        = "new"
	StatusInProgress = "inProgress"
	StatusDone       = "done"
)

// Report is a single annotated-screenshot QA finding.
type Report struct {
	ID              string     `json:"id"`
	SiteID          string     `json:"siteId"`
	UserID          string     `json:"userId"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Comment         string     `json:"comment"`
	X               float64    `json:"x"`
	Y               float64    `json:"y"`
	Priority        string     `json:"priority"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	ImageKey        string     `json:"-"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	DueAt           *time.Time `json:"dueAt,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	Archived        bool       `json:"archived"`
	ArchivedAt      *time.Time `json:"archivedAt,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Open reports whether the report still counts toward due-date notifications.
func (r *Report) Open() bool {
	return r.Status != StatusDone && !r.Archived
}

// Comment belongs to a report, optionally replying to another comment.
type Comment struct {
	ID          string        `json:"id"`
	ReportID    string        `json:"reportId"`
	ParentID    *string       `json:"parentId,omitempty"`
	UserID      *string       `json:"userId,omitempty"`
	Body        string        `json:"body"`
	Attachments []*Attachment `json:"attachments"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Attachment is an object-storage reference owned by a comment.
type Attachment struct {
	ID        string    `json:"id"`
	CommentID string    `json:"commentId"`
	ObjectKey string    `json:"-"`
	ThumbKey  string    `json:"-"`
	URL       string    `json:"url,omitempty"`
	ThumbURL  string    `json:"thumbUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateReportInput holds the fields required to create a report.
type CreateReportInput struct {
	SiteID   string
	UserID   string
	URL      string
	Title    string
	Comment  string
	X        float64
	Y        float64
	Priority string
	Type     string
	ImageKey string
}

// CreateCommentInput holds the fields required to create a comment.
type CreateCommentInput struct {
	ReportID string
	ParentID *string
	UserID   *string
	Body     string
}

// ListParams filters the report listing. Query is a plain substring match
// against title, comment, and url.
type ListParams struct {
	TeamIDs         []string
	UserID          string
	Query           string
	IncludeArchived bool
}

// durationMinutes computes the minutes between creation and resolution,
// rounded to the nearest whole minute.
func durationMinutes(created, resolved time.Time) int {
	return int(math.Round(resolved.Sub(created).Minutes()))
}
