package domain

import "time"

// StoryTrayEntry is one row in the horizontal story tray: one user,
// their current stories in ascending CreatedAt order.
type StoryTrayEntry struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Stories     []StoryItem
	IsSelf      bool
	HasUnseen   bool
}

// LatestStoryAt returns the CreatedAt of the newest story in the entry,
// or the zero time for an empty entry.
func (e StoryTrayEntry) LatestStoryAt() time.Time {
	if len(e.Stories) == 0 {
		return time.Time{}
	}
	return e.Stories[len(e.Stories)-1].CreatedAt
}
