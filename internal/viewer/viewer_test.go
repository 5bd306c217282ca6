package viewer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePlayer struct {
	mu       sync.Mutex
	loads    []string
	plays    int
	pauses   int
	releases int
}

func (p *fakePlayer) Load(item domain.StoryItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, item.ID)
}

func (p *fakePlayer) Play()  { p.mu.Lock(); p.plays++; p.mu.Unlock() }
func (p *fakePlayer) Pause() { p.mu.Lock(); p.pauses++; p.mu.Unlock() }
func (p *fakePlayer) Release() {
	p.mu.Lock()
	p.releases++
	p.mu.Unlock()
}

func (p *fakePlayer) loaded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.loads))
	copy(out, p.loads)
	return out
}

func (p *fakePlayer) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

type fakeSeen struct {
	mu      sync.Mutex
	owners  []string
	stories []string
}

func (f *fakeSeen) MarkSeen(ownerID, storyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
	f.stories = append(f.stories, storyID)
}

func (f *fakeSeen) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.owners))
	copy(out, f.owners)
	return out
}

func imageStory(id, owner string) domain.StoryItem {
	return domain.NewStoryItem(id, owner, domain.MediaImage, "https://cdn.example/"+id+".jpg", "", base)
}

func videoStory(id, owner string) domain.StoryItem {
	return domain.NewStoryItem(id, owner, domain.MediaVideo, "https://cdn.example/"+id+".mp4", "", base)
}

func entry(userID string, stories ...domain.StoryItem) domain.StoryTrayEntry {
	return domain.StoryTrayEntry{UserID: userID, Stories: stories, HasUnseen: true}
}

type fixture struct {
	m      *Machine
	clock  *clockwork.FakeClock
	player *fakePlayer
	seen   *fakeSeen
}

func open(t *testing.T, entries []domain.StoryTrayEntry, start int) *fixture {
	t.Helper()
	f := &fixture{
		clock:  clockwork.NewFakeClock(),
		player: &fakePlayer{},
		seen:   &fakeSeen{},
	}
	m, err := Open(Opts{
		Entries:    entries,
		StartIndex: start,
		Clock:      f.clock,
		Player:     f.player,
		Seen:       f.seen,
	})
	require.NoError(t, err)
	f.m = m
	return f
}

// waitPosition blocks until the machine settles on (userIdx, storyIdx);
// timer callbacks fire on their own goroutine, as with time.AfterFunc.
func (f *fixture) waitPosition(t *testing.T, userIdx, storyIdx int) {
	t.Helper()
	require.Eventually(t, func() bool {
		u, s := f.m.Position()
		return u == userIdx && s == storyIdx && f.m.State() == StateLoading
	}, time.Second, time.Millisecond)
}

func (f *fixture) waitClosed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.m.State() == StateClosed
	}, time.Second, time.Millisecond)
}

func TestOpen_Preconditions(t *testing.T) {
	entries := []domain.StoryTrayEntry{
		{UserID: "me", IsSelf: true},
		entry("alice", imageStory("a1", "alice")),
	}

	tests := []struct {
		name    string
		entries []domain.StoryTrayEntry
		start   int
		wantErr error
	}{
		{name: "no entries", entries: nil, start: 0, wantErr: ErrNoEntries},
		{name: "negative index", entries: entries, start: -1, wantErr: ErrIndexOutOfRange},
		{name: "index past end", entries: entries, start: 2, wantErr: ErrIndexOutOfRange},
		{name: "empty entry", entries: entries, start: 0, wantErr: ErrEmptyEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(Opts{Entries: tt.entries, StartIndex: tt.start, Clock: clockwork.NewFakeClock()})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMachine_ImageAutoAdvance(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice")),
	}, 0)

	assert.Equal(t, StateLoading, f.m.State())
	f.m.MediaReady()
	assert.Equal(t, StatePlayingImage, f.m.State())

	f.clock.Advance(ImageDuration)
	f.waitPosition(t, 0, 1)
	assert.Equal(t, []string{"a1", "a2"}, f.player.loaded())
}

func TestMachine_LastStoryOfLastUserCloses(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice")),
	}, 0)

	f.m.MediaReady()
	f.clock.Advance(ImageDuration)
	f.waitClosed(t)
	assert.Equal(t, 1, f.player.releaseCount())
}

func TestMachine_AdvanceAcrossUsersUntilClosed(t *testing.T) {
	// Opening at index 2 of 5 and advancing to exhaustion must walk
	// exactly the stories of entries 2..4 and never revisit 0 or 1.
	entries := []domain.StoryTrayEntry{
		entry("u0", imageStory("s00", "u0")),
		entry("u1", imageStory("s10", "u1"), imageStory("s11", "u1")),
		entry("u2", imageStory("s20", "u2"), imageStory("s21", "u2")),
		entry("u3", imageStory("s30", "u3")),
		entry("u4", imageStory("s40", "u4"), imageStory("s41", "u4")),
	}
	f := open(t, entries, 2)

	for f.m.State() != StateClosed {
		f.m.MediaReady()
		f.m.Next()
		require.Eventually(t, func() bool {
			return f.m.State() == StateLoading || f.m.State() == StateClosed
		}, time.Second, time.Millisecond)
	}

	assert.Equal(t, []string{"s20", "s21", "s30", "s40", "s41"}, f.player.loaded())
	assert.Equal(t, []string{"u2", "u2", "u3", "u4", "u4"}, f.seen.seen())
}

func TestMachine_PrevWithinUser(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.Next()
	f.waitPosition(t, 0, 1)
	f.m.MediaReady()

	f.m.Prev()
	u, s := f.m.Position()
	assert.Equal(t, 0, u)
	assert.Equal(t, 0, s)
}

func TestMachine_PrevUserLandsOnLastStory(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice"), imageStory("a3", "alice")),
		entry("bob", imageStory("b1", "bob")),
	}, 1)

	f.m.MediaReady()
	f.m.Prev()

	u, s := f.m.Position()
	assert.Equal(t, 0, u, "should move to previous entry")
	assert.Equal(t, 2, s, "should land on the previous entry's last story, not its first")
}

func TestMachine_PrevSkipsEmptySelfEntry(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		{UserID: "me", IsSelf: true},
		entry("alice", imageStory("a1", "alice")),
	}, 1)

	f.m.MediaReady()
	f.m.Prev()

	// nothing before alice has stories: stay put, keep playing
	u, s := f.m.Position()
	assert.Equal(t, 1, u)
	assert.Equal(t, 0, s)
	assert.Equal(t, StatePlayingImage, f.m.State())
}

func TestMachine_PrevAtOriginIsNoOp(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.Prev()

	u, s := f.m.Position()
	assert.Equal(t, 0, u)
	assert.Equal(t, 0, s)
	assert.Equal(t, StatePlayingImage, f.m.State(), "no reload should happen")
	assert.Equal(t, []string{"a1"}, f.player.loaded())
}

func TestMachine_HoldFreezesImageProgress(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice")),
	}, 0)

	f.m.MediaReady()
	f.clock.Advance(2 * time.Second)
	f.m.Hold()
	assert.Equal(t, StatePaused, f.m.State())

	p1 := f.m.Progress()
	f.clock.Advance(10 * time.Second)
	p2 := f.m.Progress()
	assert.Equal(t, p1, p2, "progress must not move during a hold")
	assert.InDelta(t, 40.0, p1, 0.01)
	assert.Equal(t, StatePaused, f.m.State(), "the slide timer must not fire while held")

	f.m.Release()
	assert.Equal(t, StatePlayingImage, f.m.State())
	f.clock.Advance(time.Second)
	assert.Greater(t, f.m.Progress(), p2, "progress resumes after release")

	// remaining 3s of the slide
	f.clock.Advance(2 * time.Second)
	f.waitClosed(t)
}

func TestMachine_HoldPausesVideoPlayback(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("v1", "alice")),
	}, 0)

	f.m.MediaReady()
	assert.Equal(t, StatePlayingVideo, f.m.State())
	assert.Equal(t, 1, f.player.plays)

	f.m.VideoProgress(3*time.Second, 10*time.Second)
	f.m.Hold()
	assert.Equal(t, StatePaused, f.m.State())
	assert.Equal(t, 1, f.player.pauses)
	assert.InDelta(t, 30.0, f.m.Progress(), 0.01)

	f.m.Release()
	assert.Equal(t, StatePlayingVideo, f.m.State())
	assert.Equal(t, 2, f.player.plays)
}

func TestMachine_VideoEndAdvances(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("v1", "alice")),
		entry("bob", imageStory("b1", "bob")),
	}, 0)

	f.m.MediaReady()
	f.m.VideoEnded()

	u, s := f.m.Position()
	assert.Equal(t, 1, u)
	assert.Equal(t, 0, s)
}

func TestMachine_VideoProgressReachingDurationAdvances(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("v1", "alice"), imageStory("a2", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.VideoProgress(5*time.Second, 10*time.Second)
	assert.InDelta(t, 50.0, f.m.Progress(), 0.01)

	f.m.VideoProgress(10*time.Second, 10*time.Second)
	u, s := f.m.Position()
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, s)
}

func TestMachine_ProgressClamped(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("v1", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.VideoProgress(20*time.Second, 0) // duration not yet known
	assert.Equal(t, 0.0, f.m.Progress())
}

func TestMachine_MediaFailureAdvancesAfterBoundedWait(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("broken", "alice")),
		entry("bob", imageStory("b1", "bob")),
	}, 0)

	f.m.MediaFailed(errors.New("404"))
	assert.Equal(t, StateLoading, f.m.State(), "failure must not surface as a fatal state")

	f.clock.Advance(MediaFallbackWait)
	f.waitPosition(t, 1, 0)
}

func TestMachine_CloseStopsEverything(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.Close()
	assert.Equal(t, StateClosed, f.m.State())
	assert.Equal(t, 1, f.player.releaseCount())

	// the pending slide timer must be dead: nothing may fire after Closed
	f.clock.Advance(ImageDuration * 3)
	assert.Equal(t, StateClosed, f.m.State())
	assert.Equal(t, []string{"a1"}, f.player.loaded())

	f.m.Close()
	assert.Equal(t, 1, f.player.releaseCount(), "double close releases once")
}

func TestMachine_CallbacksIgnoredAfterClose(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", videoStory("v1", "alice")),
	}, 0)

	f.m.MediaReady()
	f.m.Close()

	f.m.MediaReady()
	f.m.VideoEnded()
	f.m.VideoProgress(time.Second, time.Second)
	f.m.Hold()
	f.m.Release()
	f.m.Next()
	f.m.Prev()

	assert.Equal(t, StateClosed, f.m.State())
	_, ok := f.m.Current()
	assert.False(t, ok)
}

func TestMachine_NextIgnoredWhileLoading(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice"), imageStory("a3", "alice")),
	}, 0)

	f.m.MediaReady()
	// rapid double-fire: the second Next arrives while a2 is still loading
	f.m.Next()
	f.m.Next()

	u, s := f.m.Position()
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, s, "duplicate advance while transitioning is ignored")
}

func TestMachine_SeenEmittedPerEntry(t *testing.T) {
	f := open(t, []domain.StoryTrayEntry{
		entry("alice", imageStory("a1", "alice"), imageStory("a2", "alice")),
		entry("bob", imageStory("b1", "bob")),
	}, 0)

	f.m.MediaReady()
	f.m.Next() // a2
	f.waitPosition(t, 0, 1)
	f.m.MediaReady()
	f.m.Next() // bob
	f.waitPosition(t, 1, 0)
	f.m.MediaReady()
	f.m.Prev() // back to alice's last story
	f.m.MediaReady()

	// the recorder itself sees every entry; per-session dedupe is the
	// seen.Tracker's job
	assert.Equal(t, []string{"alice", "alice", "bob", "alice"}, f.seen.seen())

	f.seen.mu.Lock()
	stories := append([]string(nil), f.seen.stories...)
	f.seen.mu.Unlock()
	assert.Equal(t, []string{"a1", "a2", "b1", "a2"}, stories)
}

func TestMachine_OnCloseFires(t *testing.T) {
	closed := 0
	m, err := Open(Opts{
		Entries:    []domain.StoryTrayEntry{entry("alice", imageStory("a1", "alice"))},
		StartIndex: 0,
		Clock:      clockwork.NewFakeClock(),
		OnClose:    func() { closed++ },
	})
	require.NoError(t, err)

	m.Close()
	m.Close()
	assert.Equal(t, 1, closed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "playing_image", StatePlayingImage.String())
	assert.Equal(t, "playing_video", StatePlayingVideo.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "closed", StateClosed.String())
}
