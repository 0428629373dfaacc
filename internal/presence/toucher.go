package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LastActiveUpdater is the interface used by Toucher to persist activity
// timestamps. It exists to allow testing without a real database.
type LastActiveUpdater interface {
	TouchLastActive(ctx context.Context, userIDs []string) error
}

// Toucher buffers user IDs seen on authenticated requests and periodically
// writes their last_active timestamps in batches. It is safe for concurrent
// use; duplicate IDs within a batch are collapsed.
type Toucher struct {
	store         LastActiveUpdater
	seen          map[string]struct{}
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	onFlush       func(users int, err error)
}

// OnFlush registers an observer invoked after every flush attempt with the
// batch size and write outcome.
func (t *Toucher) OnFlush(fn func(users int, err error)) {
	t.onFlush = fn
}

// NewToucher creates a Toucher that flushes to the given store when the batch
// reaches batchSize distinct users or every flushInterval, whichever comes
// first.
func NewToucher(store LastActiveUpdater, batchSize int, flushInterval time.Duration) *Toucher {
	return &Toucher{
		store:         store,
		seen:          make(map[string]struct{}, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// Start begins a background goroutine that flushes buffered user IDs on a
// timer. It blocks until Stop is called or the context is cancelled.
func (t *Toucher) Start(ctx context.Context) {
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.flush()
		case <-ctx.Done():
			t.flush()
			return
		case <-t.done:
			t.flush()
			return
		}
	}
}

// Touch marks a user as active. If the batch reaches batchSize distinct
// users, a flush is triggered immediately.
func (t *Toucher) Touch(userID string) {
	t.mu.Lock()
	t.seen[userID] = struct{}{}
	shouldFlush := len(t.seen) >= t.batchSize
	t.mu.Unlock()

	if shouldFlush {
		t.flush()
	}
}

// flush drains the batch and writes it to the store. Errors are logged rather
// than returned so request handling never blocks on presence bookkeeping.
func (t *Toucher) flush() {
	t.mu.Lock()
	if len(t.seen) == 0 {
		t.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	t.seen = make(map[string]struct{}, t.batchSize)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := t.store.TouchLastActive(ctx, ids)
	if err != nil {
		slog.Error("failed to flush presence batch", "count", len(ids), "error", err)
	}
	if t.onFlush != nil {
		t.onFlush(len(ids), err)
	}
}

// Stop signals the background goroutine to exit and performs a final flush.
func (t *Toucher) Stop() {
	close(t.done)
}
