package aggregator

import (
	"sort"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
)

// Aggregate turns a flat snapshot of story records into the ordered tray.
//
// Items whose owner is neither selfID nor in relevantUserIDs are dropped.
// Each remaining owner becomes one entry with their stories in ascending
// CreatedAt order. The viewer's own entry is synthesized even with zero
// stories and is always first; the rest are ordered unseen-before-seen,
// newest latest story first within each group, user id as the tiebreak.
//
// Aggregate is a pure function of its inputs. Expiry filtering is the
// store's job: already-expired items that reach this point are grouped
// like any other so a skewed clock never hides a story twice.
func Aggregate(
	rawItems []domain.StoryItem,
	relevantUserIDs map[string]struct{},
	selfID string,
	profiles map[string]domain.Profile,
) []domain.StoryTrayEntry {
	groups := make(map[string][]domain.StoryItem)
	var owners []string

	for _, item := range rawItems {
		if item.OwnerID != selfID {
			if _, ok := relevantUserIDs[item.OwnerID]; !ok {
				continue
			}
		}
		if _, ok := groups[item.OwnerID]; !ok {
			owners = append(owners, item.OwnerID)
		}
		groups[item.OwnerID] = append(groups[item.OwnerID], item)
	}

	entries := make([]domain.StoryTrayEntry, 0, len(owners)+1)
	for _, owner := range owners {
		if owner == selfID {
			continue
		}
		entries = append(entries, buildEntry(owner, groups[owner], selfID, profiles))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HasUnseen != b.HasUnseen {
			return a.HasUnseen
		}
		at, bt := a.LatestStoryAt(), b.LatestStoryAt()
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.UserID < b.UserID
	})

	// The viewer's own entry is pinned first and exists even when empty,
	// so the tray can always offer the create-story affordance.
	self := buildEntry(selfID, groups[selfID], selfID, profiles)
	self.IsSelf = true
	return append([]domain.StoryTrayEntry{self}, entries...)
}

func buildEntry(owner string, items []domain.StoryItem, selfID string, profiles map[string]domain.Profile) domain.StoryTrayEntry {
	stories := make([]domain.StoryItem, len(items))
	copy(stories, items)
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].CreatedAt.Before(stories[j].CreatedAt)
	})

	hasUnseen := false
	for _, s := range stories {
		if !s.SeenBy(selfID) {
			hasUnseen = true
			break
		}
	}

	entry := domain.StoryTrayEntry{
		UserID:    owner,
		Stories:   stories,
		HasUnseen: hasUnseen,
	}
	if p, ok := profiles[owner]; ok {
		entry.DisplayName = p.DisplayName
		entry.AvatarURL = p.AvatarURL
	}
	return entry
}
