package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/snagtrack/snagtrack/internal/report"
)

// Notification kinds. Activity notifications come from the activities table;
// overdue and dueToday entries are derived from open reports at read time and
// are therefore always unread.
const (
	KindActivity = "activity"
	KindOverdue  = "overdue"
	KindDueToday = "dueToday"
)

// Notification is one entry in a user's notification feed.
type Notification struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id,omitempty"`
	ReportID  string    `json:"reportId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// DueLister is satisfied by the report store.
type DueLister interface {
	DueBefore(ctx context.Context, userID string, t time.Time) ([]*report.Report, error)
	DueBetween(ctx context.Context, userID string, from, to time.Time) ([]*report.Report, error)
}

// ActivityLister is satisfied by the activity store.
type ActivityLister interface {
	ListForOwner(ctx context.Context, ownerID string, limit int) ([]*Activity, error)
}

// Feed assembles a user's notification feed from persisted activities and
// due-date state.
type Feed struct {
	activities ActivityLister
	due        DueLister
	now        func() time.Time
}

func NewFeed(activities ActivityLister, due DueLister) *Feed {
	return &Feed{activities: activities, due: due, now: time.Now}
}

// Notifications merges persisted activities with derived overdue and due-today
// entries, newest first. Derived entries carry the report's due time so they
// sort alongside real activities.
func (f *Feed) Notifications(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	activities, err := f.activities.ListForOwner(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	now := f.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	overdue, err := f.due.DueBefore(ctx, userID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("listing overdue reports: %w", err)
	}
	dueToday, err := f.due.DueBetween(ctx, userID, startOfDay, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("listing due-today reports: %w", err)
	}

	feed := make([]*Notification, 0, len(activities)+len(overdue)+len(dueToday))
	for _, a := range activities {
		feed = append(feed, &Notification{
			Kind:      KindActivity,
			ID:        a.ID,
			ReportID:  a.ReportID,
			Message:   Message(a),
			Read:      a.ReadAt != nil,
			CreatedAt: a.CreatedAt,
		})
	}
	// Derived entries only exist for open reports that carry a due date.
	for _, r := range overdue {
		if !r.Open() || r.DueAt == nil {
			continue
		}
		feed = append(feed, &Notification{
			Kind:      KindOverdue,
			ReportID:  r.ID,
			Message:   fmt.Sprintf("%s is overdue", r.Title),
			CreatedAt: *r.DueAt,
		})
	}
	for _, r := range dueToday {
		if !r.Open() || r.DueAt == nil {
			continue
		}
		feed = append(feed, &Notification{
			Kind:      KindDueToday,
			ReportID:  r.ID,
			Message:   fmt.Sprintf("%s is due today", r.Title),
			CreatedAt: *r.DueAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}
