package seen

import (
	"context"
	"sync"
	"time"

	"github.com/rameshsd/onlycreation-stories/pkg/logger"
)

// Sink is the durable destination for seen events. Writes are best effort:
// a failed write is logged and dropped, never retried, never allowed to
// block playback.
type Sink interface {
	// RecordView marks ownerID's stories as viewed by viewerID. Emitted
	// at most once per owner per session.
	RecordView(ctx context.Context, ownerID, viewerID string) error
	// MarkStoryViewed appends viewerID to one story's viewer set. Emitted
	// at most once per story per session.
	MarkStoryViewed(ctx context.Context, storyID, viewerID string) error
}

//go:generate go run go.uber.org/mock/mockgen -source=seen.go -destination=mocks/mock.go

// Tracker keeps session-local seen state for one viewer session. Owner
// notifications dedupe by owner, matching the tray's per-user unseen flag;
// story writes dedupe by story id so revisits via Prev/Next emit nothing.
type Tracker struct {
	viewerID string
	sink     Sink
	logger   logger.Logger

	mu       sync.Mutex
	notified map[string]struct{}
	recorded map[string]struct{}
	inflight sync.WaitGroup
}

func NewTracker(viewerID string, sink Sink, log logger.Logger) *Tracker {
	return &Tracker{
		viewerID: viewerID,
		sink:     sink,
		logger:   log,
		notified: make(map[string]struct{}),
		recorded: make(map[string]struct{}),
	}
}

// MarkSeen records that the session entered storyID of ownerID. The first
// entry per story forwards the story-level write, the first entry per
// owner additionally forwards the owner-level event; both on separate
// goroutines. Repeats are no-ops.
func (t *Tracker) MarkSeen(ownerID, storyID string) {
	t.mu.Lock()
	_, storyDone := t.recorded[storyID]
	t.recorded[storyID] = struct{}{}
	_, ownerDone := t.notified[ownerID]
	t.notified[ownerID] = struct{}{}
	t.mu.Unlock()

	if !storyDone {
		t.emit(func(ctx context.Context) error {
			return t.sink.MarkStoryViewed(ctx, storyID, t.viewerID)
		}, ownerID, storyID)
	}
	if !ownerDone {
		t.emit(func(ctx context.Context) error {
			return t.sink.RecordView(ctx, ownerID, t.viewerID)
		}, ownerID, storyID)
	}
}

func (t *Tracker) emit(write func(context.Context) error, ownerID, storyID string) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := write(ctx); err != nil {
			t.logger.Error("Failed to record story view", "owner_id", ownerID, "story_id", storyID, "viewer_id", t.viewerID, "error", err)
		}
	}()
}

// Seen reports whether the session has already entered ownerID's stories.
func (t *Tracker) Seen(ownerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.notified[ownerID]
	return ok
}

// Flush waits for in-flight sink writes to finish. Called when the viewer
// closes so nothing outlives the session silently.
func (t *Tracker) Flush() {
	t.inflight.Wait()
}
