package activity

import (
	"context"
	"testing"
)

// Both guards in Log run before any database work, so a nil pool proves the
// short-circuit: a query attempt would panic.

func TestLogSuppressesSelfActions(t *testing.T) {
	s := NewStore(nil)

	err := s.Log(context.Background(), Record{
		ReportID: "r1",
		ActorID:  "u1",
		OwnerID:  "u1",
		Type:     TypeStatus,
		Detail:   "done",
	})
	if err != nil {
		t.Fatalf("Log() self-action error = %v, want nil", err)
	}
}

func TestLogRejectsUnknownType(t *testing.T) {
	s := NewStore(nil)

	err := s.Log(context.Background(), Record{
		ReportID: "r1",
		ActorID:  "u1",
		OwnerID:  "u2",
		Type:     "renamed",
	})
	if err == nil {
		t.Fatal("Log() unknown type error = nil, want error")
	}
}
