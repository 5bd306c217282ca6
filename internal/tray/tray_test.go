package tray

import (
	"testing"
	"time"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(userID string, isSelf bool, storyCount int) domain.StoryTrayEntry {
	e := domain.StoryTrayEntry{UserID: userID, IsSelf: isSelf}
	for i := 0; i < storyCount; i++ {
		e.Stories = append(e.Stories, domain.NewStoryItem(
			userID+"-s", userID, domain.MediaImage, "", "", time.Now(),
		))
	}
	return e
}

func TestTray_Open(t *testing.T) {
	tr := New([]domain.StoryTrayEntry{
		entry("me", true, 0),
		entry("alice", false, 2),
		entry("bob", false, 0), // should never happen post-aggregation, but the contract still holds
	})

	tests := []struct {
		name       string
		idx        int
		wantIntent Intent
		wantErr    error
	}{
		{name: "empty self entry composes", idx: 0, wantIntent: ComposeStory},
		{name: "entry with stories opens viewer", idx: 1, wantIntent: OpenViewer},
		{name: "empty non-self entry is a usage error", idx: 2, wantErr: ErrEmptyEntry},
		{name: "negative index", idx: -1, wantErr: ErrIndexOutOfRange},
		{name: "index past end", idx: 3, wantErr: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := tr.Open(tt.idx)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, intent)
		})
	}
}

func TestTray_OpenEmpty(t *testing.T) {
	tr := New(nil)
	_, err := tr.Open(0)
	assert.ErrorIs(t, err, ErrNoEntries)
}
