// Package session ties the story pieces together for an embedding UI: it
// builds the tray for a viewer, validates the open intent, and wires a
// viewer machine to a per-session seen tracker whose sink is the story
// service.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/seen"
	"github.com/rameshsd/onlycreation-stories/internal/stories"
	"github.com/rameshsd/onlycreation-stories/internal/tray"
	"github.com/rameshsd/onlycreation-stories/internal/viewer"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
)

// ErrComposeStory signals that the tapped entry is the viewer's own empty
// entry: route to the story composer instead of opening playback.
var ErrComposeStory = errors.New("entry is the create-story affordance")

type Manager struct {
	stories stories.Client
	logger  logger.Logger
	clock   clockwork.Clock
}

func NewManager(client stories.Client, log logger.Logger) *Manager {
	return &Manager{
		stories: client,
		logger:  log.WithComponent("StorySession"),
		clock:   clockwork.NewRealClock(),
	}
}

// Tray fetches the viewer's current tray snapshot.
func (m *Manager) Tray(ctx context.Context, viewerID string, following []string) (*tray.Tray, error) {
	entries, err := m.stories.Tray(ctx, viewerID, following)
	if err != nil {
		return nil, fmt.Errorf("failed to build tray for %s: %w", viewerID, err)
	}
	return tray.New(entries), nil
}

// Session is one open viewer run: the machine plus its seen tracker.
type Session struct {
	Machine *viewer.Machine
	Tracker *seen.Tracker
}

// Close shuts the viewer down and waits for pending seen writes.
func (s *Session) Close() {
	s.Machine.Close()
	s.Tracker.Flush()
}

// OpenViewer starts playback on the given tray at startIndex. The tray's
// entries become the session's immutable snapshot; store updates are
// picked up on the next open.
func (m *Manager) OpenViewer(t *tray.Tray, viewerID string, startIndex int, player viewer.Player) (*Session, error) {
	intent, err := t.Open(startIndex)
	if err != nil {
		return nil, err
	}
	if intent == tray.ComposeStory {
		return nil, ErrComposeStory
	}

	tracker := seen.NewTracker(viewerID, m.stories, m.logger)
	machine, err := viewer.Open(viewer.Opts{
		Entries:    t.Entries(),
		StartIndex: startIndex,
		Clock:      m.clock,
		Player:     player,
		Seen:       tracker,
		Logger:     m.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Session{Machine: machine, Tracker: tracker}, nil
}
