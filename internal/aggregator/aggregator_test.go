package aggregator

import (
	"testing"
	"time"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func story(id, owner string, offset time.Duration, viewers ...string) domain.StoryItem {
	s := domain.NewStoryItem(id, owner, domain.MediaImage, "https://cdn.example/"+id+".jpg", "", base.Add(offset))
	for _, v := range viewers {
		s.ViewerIDs[v] = struct{}{}
	}
	return s
}

func idSet(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func userOrder(entries []domain.StoryTrayEntry) []string {
	order := make([]string, len(entries))
	for i, e := range entries {
		order[i] = e.UserID
	}
	return order
}

func TestAggregate_GroupsByOwner(t *testing.T) {
	items := []domain.StoryItem{
		story("s1", "alice", 0),
		story("s2", "bob", time.Minute),
		story("s3", "alice", 2*time.Minute),
	}

	entries := Aggregate(items, idSet("alice", "bob"), "me", nil)

	require.Len(t, entries, 3)
	byUser := make(map[string]domain.StoryTrayEntry)
	for _, e := range entries {
		_, dup := byUser[e.UserID]
		assert.False(t, dup, "duplicate entry for %s", e.UserID)
		byUser[e.UserID] = e
	}
	assert.Len(t, byUser["alice"].Stories, 2)
	assert.Len(t, byUser["bob"].Stories, 1)
}

func TestAggregate_SortsStoriesAscending(t *testing.T) {
	items := []domain.StoryItem{
		story("s3", "alice", 2*time.Hour),
		story("s1", "alice", 0),
		story("s2", "alice", time.Hour),
	}

	entries := Aggregate(items, idSet("alice"), "me", nil)

	require.Len(t, entries, 2)
	got := entries[1]
	require.Len(t, got.Stories, 3)
	assert.Equal(t, "s1", got.Stories[0].ID)
	assert.Equal(t, "s2", got.Stories[1].ID)
	assert.Equal(t, "s3", got.Stories[2].ID)
}

func TestAggregate_SelfEntryAlwaysFirst(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.StoryItem
	}{
		{
			name: "self has stories, listed last in input",
			items: []domain.StoryItem{
				story("s1", "alice", 0),
				story("s2", "me", time.Minute),
			},
		},
		{
			name: "self has no stories at all",
			items: []domain.StoryItem{
				story("s1", "alice", 0),
			},
		},
		{
			name:  "empty input",
			items: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Aggregate(tt.items, idSet("alice"), "me", nil)
			require.NotEmpty(t, entries)
			assert.Equal(t, "me", entries[0].UserID)
			assert.True(t, entries[0].IsSelf)
		})
	}
}

func TestAggregate_FiltersIrrelevantOwners(t *testing.T) {
	items := []domain.StoryItem{
		story("s1", "alice", 0),
		story("s2", "stranger", time.Minute),
	}

	entries := Aggregate(items, idSet("alice"), "me", nil)

	assert.Equal(t, []string{"me", "alice"}, userOrder(entries))
}

func TestAggregate_HasUnseen(t *testing.T) {
	tests := []struct {
		name    string
		items   []domain.StoryItem
		wantHas bool
	}{
		{
			name:    "no story seen",
			items:   []domain.StoryItem{story("s1", "alice", 0)},
			wantHas: true,
		},
		{
			name: "one of two seen",
			items: []domain.StoryItem{
				story("s1", "alice", 0, "me"),
				story("s2", "alice", time.Minute),
			},
			wantHas: true,
		},
		{
			name: "all seen",
			items: []domain.StoryItem{
				story("s1", "alice", 0, "me", "bob"),
				story("s2", "alice", time.Minute, "me"),
			},
			wantHas: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Aggregate(tt.items, idSet("alice"), "me", nil)
			require.Len(t, entries, 2)
			assert.Equal(t, tt.wantHas, entries[1].HasUnseen)
		})
	}
}

func TestAggregate_MarkingAllSeenFlipsDeterministically(t *testing.T) {
	items := []domain.StoryItem{
		story("s1", "alice", 0),
		story("s2", "alice", time.Minute),
	}

	entries := Aggregate(items, idSet("alice"), "me", nil)
	require.True(t, entries[1].HasUnseen)

	for i := range items {
		items[i].ViewerIDs["me"] = struct{}{}
		// re-adding an already present id is a no-op
		items[i].ViewerIDs["me"] = struct{}{}
	}

	entries = Aggregate(items, idSet("alice"), "me", nil)
	assert.False(t, entries[1].HasUnseen)
}

func TestAggregate_OrderingUnseenBeforeSeenThenNewest(t *testing.T) {
	// A unseen newer, B unseen older, C seen newest.
	items := []domain.StoryItem{
		story("c1", "carol", 3*time.Hour, "me"),
		story("b1", "bob", time.Hour),
		story("a1", "amy", 2*time.Hour),
	}

	entries := Aggregate(items, idSet("amy", "bob", "carol"), "me", nil)

	assert.Equal(t, []string{"me", "amy", "bob", "carol"}, userOrder(entries))
}

func TestAggregate_OrderingTieBrokenByUserID(t *testing.T) {
	items := []domain.StoryItem{
		story("s1", "zoe", time.Hour),
		story("s2", "amy", time.Hour),
	}

	entries := Aggregate(items, idSet("amy", "zoe"), "me", nil)

	assert.Equal(t, []string{"me", "amy", "zoe"}, userOrder(entries))
}

func TestAggregate_ProfileDecoration(t *testing.T) {
	items := []domain.StoryItem{story("s1", "alice", 0)}
	profiles := map[string]domain.Profile{
		"alice": {ID: "alice", DisplayName: "Alice A", AvatarURL: "https://cdn.example/alice.png"},
	}

	entries := Aggregate(items, idSet("alice"), "me", profiles)

	require.Len(t, entries, 2)
	// self profile missing: entry still present, just undecorated
	assert.Empty(t, entries[0].DisplayName)
	assert.Empty(t, entries[0].AvatarURL)
	assert.Equal(t, "Alice A", entries[1].DisplayName)
	assert.Equal(t, "https://cdn.example/alice.png", entries[1].AvatarURL)
}

func TestAggregate_ToleratesExpiredItems(t *testing.T) {
	expired := story("old", "alice", -48*time.Hour)
	entries := Aggregate([]domain.StoryItem{expired}, idSet("alice"), "me", nil)

	require.Len(t, entries, 2)
	assert.Len(t, entries[1].Stories, 1, "expiry filtering is the store's job, not the aggregator's")
}
