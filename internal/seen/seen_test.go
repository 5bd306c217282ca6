package seen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	mu      sync.Mutex
	owners  []string
	stories []string
	err     error
}

func (f *fakeSink) RecordView(_ context.Context, ownerID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID+"/"+viewerID)
	return f.err
}

func (f *fakeSink) MarkStoryViewed(_ context.Context, storyID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories = append(f.stories, storyID+"/"+viewerID)
	return f.err
}

func (f *fakeSink) ownerCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.owners...)
}

func (f *fakeSink) storyCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stories...)
}

func TestTracker_MarkSeenDedupesByOwner(t *testing.T) {
	sink := &fakeSink{}
	tr := NewTracker("viewer-1", sink, logger.NewNop())

	tr.MarkSeen("alice", "a1")
	tr.MarkSeen("alice", "a1")
	tr.MarkSeen("alice", "a1")
	tr.Flush()

	assert.Equal(t, []string{"alice/viewer-1"}, sink.ownerCalls())
	assert.Equal(t, []string{"a1/viewer-1"}, sink.storyCalls())
	assert.True(t, tr.Seen("alice"))
	assert.False(t, tr.Seen("bob"))
}

func TestTracker_StoryWritePerStoryOwnerEventPerOwner(t *testing.T) {
	sink := &fakeSink{}
	tr := NewTracker("viewer-1", sink, logger.NewNop())

	tr.MarkSeen("alice", "a1")
	tr.MarkSeen("alice", "a2")
	tr.MarkSeen("alice", "a1") // revisit via Prev: nothing new
	tr.Flush()

	assert.Equal(t, []string{"alice/viewer-1"}, sink.ownerCalls(), "owner event is per owner, not per story")
	assert.ElementsMatch(t, []string{"a1/viewer-1", "a2/viewer-1"}, sink.storyCalls())
}

func TestTracker_MarkSeenDistinctOwners(t *testing.T) {
	sink := &fakeSink{}
	tr := NewTracker("viewer-1", sink, logger.NewNop())

	tr.MarkSeen("alice", "a1")
	tr.MarkSeen("bob", "b1")
	tr.MarkSeen("alice", "a1")
	tr.Flush()

	assert.Len(t, sink.ownerCalls(), 2)
	assert.Len(t, sink.storyCalls(), 2)
}

func TestTracker_SinkFailureIsSwallowed(t *testing.T) {
	sink := &fakeSink{err: errors.New("sink down")}
	tr := NewTracker("viewer-1", sink, logger.NewNop())

	tr.MarkSeen("alice", "a1")
	tr.Flush()

	// failure logged, not retried: still exactly one attempt per write,
	// owner still considered handled for this session
	assert.Len(t, sink.ownerCalls(), 1)
	assert.Len(t, sink.storyCalls(), 1)
	assert.True(t, tr.Seen("alice"))
}
