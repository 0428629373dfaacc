package report

import (
	"testing"
	"time"
)

// scanReport's dest order follows reportColumns; positions 13, 16, and 17 are
// resolved_at, duration_minutes, and created_at.

func TestScanReportDerivesMissingDuration(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resolved := created.Add(90*time.Minute + 31*time.Second)

	r, err := scanReport(func(dest ...any) error {
		*dest[13].(**time.Time) = &resolved
		*dest[17].(*time.Time) = created
		return nil
	})
	if err != nil {
		t.Fatalf("scanReport() error = %v", err)
	}
	if r.DurationMinutes == nil {
		t.Fatal("DurationMinutes = nil, want derived value")
	}
	if *r.DurationMinutes != 91 {
		t.Errorf("DurationMinutes = %d, want 91", *r.DurationMinutes)
	}
}

func TestScanReportKeepsStoredDuration(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resolved := created.Add(8 * time.Hour)
	stored := 5

	r, err := scanReport(func(dest ...any) error {
		*dest[13].(**time.Time) = &resolved
		*dest[16].(**int) = &stored
		*dest[17].(*time.Time) = created
		return nil
	})
	if err != nil {
		t.Fatalf("scanReport() error = %v", err)
	}
	if r.DurationMinutes == nil || *r.DurationMinutes != 5 {
		t.Errorf("DurationMinutes = %v, want stored 5", r.DurationMinutes)
	}
}

func TestScanReportLeavesUnresolvedAlone(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	r, err := scanReport(func(dest ...any) error {
		*dest[17].(*time.Time) = created
		return nil
	})
	if err != nil {
		t.Fatalf("scanReport() error = %v", err)
	}
	if r.DurationMinutes != nil {
		t.Errorf("DurationMinutes = %d, want nil for unresolved report", *r.DurationMinutes)
	}
}
