package presence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeUpdater struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *fakeUpdater) TouchLastActive(_ context.Context, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]string, len(userIDs))
	copy(batch, userIDs)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeUpdater) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b...)
	}
	sort.Strings(out)
	return out
}

func TestToucherFlushesAtBatchSize(t *testing.T) {
	store := &fakeUpdater{}
	toucher := NewToucher(store, 3, time.Hour)

	toucher.Touch("u1")
	toucher.Touch("u2")
	toucher.Touch("u3")

	got := store.all()
	want := []string{"u1", "u2", "u3"}
	if len(got) != len(want) {
		t.Fatalf("flushed %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flushed ids = %v, want %v", got, want)
			break
		}
	}
}

func TestToucherCollapsesDuplicates(t *testing.T) {
	store := &fakeUpdater{}
	toucher := NewToucher(store, 100, time.Hour)

	toucher.Touch("u1")
	toucher.Touch("u1")
	toucher.Touch("u2")
	toucher.flush()

	got := store.all()
	if len(got) != 2 {
		t.Fatalf("flushed %d ids, want 2 distinct: %v", len(got), got)
	}
}

func TestToucherStopPerformsFinalFlush(t *testing.T) {
	store := &fakeUpdater{}
	toucher := NewToucher(store, 100, time.Hour)

	done := make(chan struct{})
	go func() {
		toucher.Start(context.Background())
		close(done)
	}()

	toucher.Touch("u1")
	toucher.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if got := store.all(); len(got) != 1 || got[0] != "u1" {
		t.Errorf("final flush wrote %v, want [u1]", got)
	}
}

func TestToucherEmptyFlushWritesNothing(t *testing.T) {
	store := &fakeUpdater{}
	toucher := NewToucher(store, 10, time.Hour)

	toucher.flush()

	if len(store.batches) != 0 {
		t.Errorf("empty flush produced %d batches", len(store.batches))
	}
}
