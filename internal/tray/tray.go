package tray

import (
	"errors"
	"fmt"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
)

var (
	// ErrNoEntries means the tray was built from an empty aggregation and
	// there is nothing to open.
	ErrNoEntries = errors.New("tray has no entries")
	// ErrEmptyEntry is a caller bug: opening the viewer on an entry that
	// has no stories and is not the viewer's own.
	ErrEmptyEntry = errors.New("entry has no stories")
	// ErrIndexOutOfRange is a caller bug: the index does not address an entry.
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

// Intent is what a tap on a tray entry should do.
type Intent int

const (
	// OpenViewer opens the full-screen viewer at the tapped entry.
	OpenViewer Intent = iota
	// ComposeStory routes to the story composer. Returned only for the
	// viewer's own empty entry.
	ComposeStory
)

// Tray is an immutable snapshot of aggregated entries plus the
// click-to-open contract. It never mutates the entries it was given.
type Tray struct {
	entries []domain.StoryTrayEntry
}

func New(entries []domain.StoryTrayEntry) *Tray {
	return &Tray{entries: entries}
}

func (t *Tray) Entries() []domain.StoryTrayEntry {
	return t.entries
}

func (t *Tray) Len() int {
	return len(t.entries)
}

// Open resolves a tap on entry idx into an intent. An empty self entry is
// the create-story affordance; an empty entry anywhere else is a usage
// error the caller must not turn into a viewer session.
func (t *Tray) Open(idx int) (Intent, error) {
	if len(t.entries) == 0 {
		return 0, ErrNoEntries
	}
	if idx < 0 || idx >= len(t.entries) {
		return 0, fmt.Errorf("open entry %d of %d: %w", idx, len(t.entries), ErrIndexOutOfRange)
	}
	e := t.entries[idx]
	if len(e.Stories) == 0 {
		if e.IsSelf {
			return ComposeStory, nil
		}
		return 0, fmt.Errorf("open entry %d (%s): %w", idx, e.UserID, ErrEmptyEntry)
	}
	return OpenViewer, nil
}
