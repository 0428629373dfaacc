package report

import (
	"testing"
	"time"
)

func TestDurationMinutes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		resolved time.Time
		want     int
	}{
		{"exact hour", t0.Add(1 * time.Hour), 60},
		{"rounds down below half minute", t0.Add(10*time.Minute + 29*time.Second), 10},
		{"rounds up at half minute", t0.Add(10*time.Minute + 30*time.Second), 11},
		{"sub-minute rounds to zero", t0.Add(20 * time.Second), 0},
		{"multi-day", t0.Add(48 * time.Hour), 2880},
		{"instant", t0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := durationMinutes(t0, tt.resolved); got != tt.want {
				t.Errorf("durationMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReportOpen(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		archived bool
		want     bool
	}{
		{"new", StatusNew, false, true},
		{"in progress", StatusInProgress, false, true},
		{"done", StatusDone, false, false},
		{"archived new", StatusNew, true, false},
		{"archived done", StatusDone, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Status: tt.status, Archived: tt.archived}
			if got := r.Open(); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}
}
