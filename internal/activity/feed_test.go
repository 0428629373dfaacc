package activity

import (
	"context"
	"testing"
	"time"

	"github.com/snagtrack/snagtrack/internal/report"
)

type fakeActivities struct {
	items []*Activity
}

func (f *fakeActivities) ListForOwner(_ context.Context, _ string, _ int) ([]*Activity, error) {
	return f.items, nil
}

type fakeDue struct {
	overdue  []*report.Report
	dueToday []*report.Report
}

func (f *fakeDue) DueBefore(_ context.Context, _ string, _ time.Time) ([]*report.Report, error) {
	return f.overdue, nil
}

func (f *fakeDue) DueBetween(_ context.Context, _ string, _, _ time.Time) ([]*report.Report, error) {
	return f.dueToday, nil
}

func TestFeedMergesAndSortsDescending(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	thisMorning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	read := now.Add(-time.Hour)
	feed := NewFeed(
		&fakeActivities{items: []*Activity{
			{ID: "a1", ReportID: "r1", ReportTitle: "Broken header", ActorName: "Ana",
				Type: TypeComment, CreatedAt: now.Add(-2 * time.Hour), ReadAt: &read},
			{ID: "a2", ReportID: "r2", ReportTitle: "Typo", ActorName: "Bo",
				Type: TypeCompleted, CreatedAt: now.Add(-30 * time.Minute)},
		}},
		&fakeDue{
			overdue:  []*report.Report{{ID: "r3", Title: "Old bug", DueAt: &yesterday}},
			dueToday: []*report.Report{{ID: "r4", Title: "Fresh bug", DueAt: &thisMorning}},
		},
	)
	feed.now = func() time.Time { return now }

	got, err := feed.Notifications(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d notifications, want 4", len(got))
	}

	wantOrder := []string{"r2", "r1", "r4", "r3"}
	for i, want := range wantOrder {
		if got[i].ReportID != want {
			t.Errorf("position %d: got report %s, want %s", i, got[i].ReportID, want)
		}
	}
	for i := 0; i < len(got)-1; i++ {
		if got[i].CreatedAt.Before(got[i+1].CreatedAt) {
			t.Errorf("feed not sorted descending at position %d", i)
		}
	}
}

func TestFeedDerivedEntriesAlwaysUnread(t *testing.T) {
	due := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(
		&fakeActivities{},
		&fakeDue{overdue: []*report.Report{{ID: "r1", Title: "Old bug", DueAt: &due}}},
	)

	got, err := feed.Notifications(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].Kind != KindOverdue {
		t.Errorf("kind = %s, want %s", got[0].Kind, KindOverdue)
	}
	if got[0].Read {
		t.Error("derived notification marked read")
	}
}

func TestFeedSkipsClosedDueReports(t *testing.T) {
	due := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(
		&fakeActivities{},
		&fakeDue{overdue: []*report.Report{
			{ID: "r1", Title: "Old bug", DueAt: &due},
			{ID: "r2", Title: "Fixed bug", Status: report.StatusDone, DueAt: &due},
			{ID: "r3", Title: "Shelved bug", Archived: true, DueAt: &due},
			{ID: "r4", Title: "No due date"},
		}},
	)

	got, err := feed.Notifications(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].ReportID != "r1" {
		t.Errorf("report = %s, want r1", got[0].ReportID)
	}
}

func TestFeedHonorsLimit(t *testing.T) {
	var items []*Activity
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		items = append(items, &Activity{
			ID: string(rune('a' + i)), ReportID: "r1", ReportTitle: "Bug", ActorName: "Ana",
			Type: TypeComment, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	feed := NewFeed(&fakeActivities{items: items}, &fakeDue{})

	got, err := feed.Notifications(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d notifications, want 3", len(got))
	}
}

func TestMessageTemplates(t *testing.T) {
	tests := []struct {
		typ    string
		detail string
		want   string
	}{
		{TypeCreated, "", "Ana created a report on Broken header"},
		{TypeComment, "", "Ana commented on Broken header"},
		{TypeStatus, "inProgress", "Ana moved Broken header to inProgress"},
		{TypePriority, "high", "Ana set Broken header to high priority"},
		{TypeDueDate, "", "Ana changed the due date of Broken header"},
		{TypeCompleted, "", "Ana completed Broken header"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			a := &Activity{ActorName: "Ana", ReportTitle: "Broken header", Type: tt.typ, Detail: tt.detail}
			if got := Message(a); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range []string{TypeCreated, TypeComment, TypeStatus, TypePriority, TypeDueDate, TypeAssignment, TypeCompleted} {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false", typ)
		}
	}
	if ValidType("deleted") {
		t.Error(`ValidType("deleted") = true`)
	}
}

func TestIconAndColorFallbacks(t *testing.T) {
	if Icon(TypeCompleted) != "check" || Color(TypeCompleted) != "green" {
		t.Errorf("completed: got %s/%s", Icon(TypeCompleted), Color(TypeCompleted))
	}
	if Icon("mystery") != "dot" || Color("mystery") != "gray" {
		t.Errorf("unknown type fallback: got %s/%s", Icon("mystery"), Color("mystery"))
	}
}
