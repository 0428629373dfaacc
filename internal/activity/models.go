package activity

import (
	"fmt"
	"time"
)

// Activity types form a closed enum. Unknown types are rejected at write time
// so the feed renderers never meet a value they cannot label. The report
// handlers write comment, status, priority, dueDate, and completed; created
// and assignment rows come from seeded or imported feeds.
const (
	TypeCreated    = "created"
	TypeComment    = "comment"
	TypeStatus     = "status"
	TypePriority   = "priority"
	TypeDueDate    = "dueDate"
	TypeAssignment = "assignment"
	TypeCompleted  = "completed"
)

// ValidType reports whether t is one of the known activity types.
func ValidType(t string) bool {
	switch t {
	case TypeCreated, TypeComment, TypeStatus, TypePriority, TypeDueDate, TypeAssignment, TypeCompleted:
		return true
	}
	return false
}

// Activity is a persisted record of something one user did to another user's
// report. Self-actions are never recorded.
type Activity struct {
	ID          string     `json:"id"`
	ReportID    string     `json:"reportId"`
	ReportTitle string     `json:"reportTitle"`
	ActorID     string     `json:"actorId"`
	ActorName   string     `json:"actorName"`
	OwnerID     string     `json:"-"`
	Type        string     `json:"type"`
	Detail      string     `json:"detail,omitempty"`
	ReadAt      *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Record is the input for logging a new activity.
type Record struct {
	ReportID string
	ActorID  string
	OwnerID  string
	Type     string
	Detail   string
}

// Message renders the human-readable feed line for an activity.
func Message(a *Activity) string {
	switch a.Type {
	case TypeCreated:
		return fmt.Sprintf("%s created a report on %s", a.ActorName, a.ReportTitle)
	case TypeComment:
		return fmt.Sprintf("%s commented on %s", a.ActorName, a.ReportTitle)
	case TypeStatus:
		return fmt.Sprintf("%s moved %s to %s", a.ActorName, a.ReportTitle, a.Detail)
	case TypePriority:
		return fmt.Sprintf("%s set %s to %s priority", a.ActorName, a.ReportTitle, a.Detail)
	case TypeDueDate:
		return fmt.Sprintf("%s changed the due date of %s", a.ActorName, a.ReportTitle)
	case TypeAssignment:
		return fmt.Sprintf("%s assigned %s", a.ActorName, a.ReportTitle)
	case TypeCompleted:
		return fmt.Sprintf("%s completed %s", a.ActorName, a.ReportTitle)
	}
	return fmt.Sprintf("%s updated %s", a.ActorName, a.ReportTitle)
}

// Icon and Color label activity types for feed rendering. They are applied at
// read time only; nothing presentational is stored.
var icons = map[string]string{
	TypeCreated:    "plus",
	TypeComment:    "message",
	TypeStatus:     "arrow-right",
	TypePriority:   "flag",
	TypeDueDate:    "calendar",
	TypeAssignment: "user",
	TypeCompleted:  "check",
}

var colors = map[string]string{
	TypeCreated:    "blue",
	TypeComment:    "gray",
	TypeStatus:     "purple",
	TypePriority:   "orange",
	TypeDueDate:    "yellow",
	TypeAssignment: "teal",
	TypeCompleted:  "green",
}

func Icon(t string) string {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return "dot"
}

func Color(t string) string {
	if c, ok := colors[t]; ok {
		return c
	}
	return "gray"
}
