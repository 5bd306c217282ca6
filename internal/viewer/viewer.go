// Package viewer implements the full-screen story playback engine: a small
// state machine that walks the aggregated tray entries one story at a
// time, auto-timing image slides, following native playback for video,
// and pausing while the user holds.
package viewer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
)

// ImageDuration is how long an image, text or link slide stays on screen.
const ImageDuration = 5000 * time.Millisecond

// MediaFallbackWait bounds how long a broken asset may stall playback
// before the machine gives up on it and advances.
const MediaFallbackWait = 5000 * time.Millisecond

var (
	// ErrNoEntries means the viewer was opened with an empty tray, which
	// the caller must prevent.
	ErrNoEntries = errors.New("viewer opened with no entries")
	// ErrEmptyEntry means the start entry has no stories. Opening there is
	// a caller bug, distinct from a normal empty tray.
	ErrEmptyEntry = errors.New("viewer opened on an entry with no stories")
	// ErrIndexOutOfRange means the start index does not address an entry.
	ErrIndexOutOfRange = errors.New("start index out of range")
)

type State int

const (
	StateLoading State = iota
	StatePlayingImage
	StatePlayingVideo
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlayingImage:
		return "playing_image"
	case StatePlayingVideo:
		return "playing_video"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Player is the media surface the machine drives. The UI implementation
// reports readiness and video progress back through the machine's
// MediaReady / MediaFailed / VideoProgress / VideoEnded methods.
type Player interface {
	// Load starts fetching the item's asset, replacing whatever was loaded.
	// Implementations must not call back into the machine from inside
	// Load; readiness is reported later from the media event loop.
	Load(item domain.StoryItem)
	// Play resumes native playback. Only meaningful for video.
	Play()
	// Pause halts native playback. Only meaningful for video.
	Pause()
	// Release frees the current asset. Called once when the viewer closes.
	Release()
}

// SeenRecorder receives the observed events, one per story entered.
// Satisfied by seen.Tracker, which owns the dedupe rules.
type SeenRecorder interface {
	MarkSeen(ownerID, storyID string)
}

// Machine is the viewer state machine. All transitions run under one
// mutex, so timer fires, media callbacks and user input are applied
// strictly one at a time, matching the event-loop model of the UI.
type Machine struct {
	clock  clockwork.Clock
	player Player
	seen   SeenRecorder
	logger logger.Logger

	// entries is an immutable snapshot for the whole session. Store
	// updates while the viewer is open are picked up on the next open.
	entries []domain.StoryTrayEntry

	mu        sync.Mutex
	state     State
	prevState State // state to resume into after Paused
	userIdx   int
	storyIdx  int

	// Image-path progress bookkeeping: elapsed accumulates across
	// pause/resume boundaries, startedAt anchors the running segment.
	elapsed   time.Duration
	startedAt time.Time

	videoPos time.Duration
	videoDur time.Duration

	// timerGen invalidates pending timers: a fire whose generation does
	// not match the current one is stale and ignored.
	timer    clockwork.Timer
	timerGen uint64

	onClose func()
}

type Opts struct {
	Entries    []domain.StoryTrayEntry
	StartIndex int
	Clock      clockwork.Clock
	Player     Player
	Seen       SeenRecorder
	Logger     logger.Logger
	// OnClose, if set, runs once after the machine reaches StateClosed.
	OnClose func()
}

// Open validates the session preconditions and starts the machine at the
// first story of the start entry.
func Open(opts Opts) (*Machine, error) {
	if len(opts.Entries) == 0 {
		return nil, ErrNoEntries
	}
	if opts.StartIndex < 0 || opts.StartIndex >= len(opts.Entries) {
		return nil, fmt.Errorf("open at %d of %d entries: %w", opts.StartIndex, len(opts.Entries), ErrIndexOutOfRange)
	}
	if len(opts.Entries[opts.StartIndex].Stories) == 0 {
		return nil, fmt.Errorf("open at %d (%s): %w", opts.StartIndex, opts.Entries[opts.StartIndex].UserID, ErrEmptyEntry)
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	m := &Machine{
		clock:   clock,
		player:  opts.Player,
		seen:    opts.Seen,
		logger:  log,
		entries: opts.Entries,
		onClose: opts.OnClose,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.enter(opts.StartIndex, 0)
	return m, nil
}

// enter moves the session onto entries[u].Stories[s] and begins loading
// it. Any pending timer is invalidated first, so the timer for story N is
// always dead before story N+1 starts.
func (m *Machine) enter(u, s int) {
	m.cancelTimer()

	m.userIdx = u
	m.storyIdx = s
	m.state = StateLoading
	m.elapsed = 0
	m.videoPos = 0
	m.videoDur = 0

	item := m.entries[u].Stories[s]
	if m.seen != nil {
		m.seen.MarkSeen(item.OwnerID, item.ID)
	}
	m.logger.Debug("Loading story", "owner_id", item.OwnerID, "story_id", item.ID, "media_type", string(item.MediaType))
	if m.player != nil {
		m.player.Load(item)
	}
}

func (m *Machine) cancelTimer() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// scheduleAdvance arms a one-shot timer that advances the story unless a
// transition has invalidated it in the meantime.
func (m *Machine) scheduleAdvance(d time.Duration) {
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.timerGen || m.state == StateClosed {
			return
		}
		m.advanceStory()
	})
}

// MediaReady is called by the player when the current asset can be shown.
func (m *Machine) MediaReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoading {
		return
	}

	item := m.current()
	m.startedAt = m.clock.Now()
	if item.MediaType == domain.MediaVideo {
		m.state = StatePlayingVideo
		if m.player != nil {
			m.player.Play()
		}
		return
	}
	// Image, text and link slides all run on the fixed image timing.
	m.state = StatePlayingImage
	m.scheduleAdvance(ImageDuration)
}

// MediaFailed is called by the player when the current asset cannot be
// fetched or decoded. The machine waits a bounded interval and then moves
// on rather than stalling the session on a broken asset.
func (m *Machine) MediaFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return
	}

	item := m.current()
	m.logger.Warn("Story media failed, advancing after fallback wait",
		"story_id", item.ID, "media_url", item.MediaURL, "error", err)
	m.state = StateLoading
	m.scheduleAdvance(MediaFallbackWait)
}

// VideoProgress is called by the player as native playback advances.
func (m *Machine) VideoProgress(position, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlayingVideo {
		return
	}
	m.videoPos = position
	m.videoDur = duration
	if duration > 0 && position >= duration {
		m.advanceStory()
	}
}

// VideoEnded is called by the player when native playback completes.
func (m *Machine) VideoEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlayingVideo {
		return
	}
	m.videoPos = m.videoDur
	m.advanceStory()
}

// Hold freezes progress while the user presses and holds.
func (m *Machine) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StatePlayingImage:
		m.elapsed += m.clock.Since(m.startedAt)
		m.cancelTimer()
	case StatePlayingVideo:
		if m.player != nil {
			m.player.Pause()
		}
	default:
		return
	}
	m.prevState = m.state
	m.state = StatePaused
}

// Release resumes playback after a Hold.
func (m *Machine) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePaused {
		return
	}
	m.state = m.prevState
	m.startedAt = m.clock.Now()
	switch m.state {
	case StatePlayingImage:
		remaining := ImageDuration - m.elapsed
		if remaining < 0 {
			remaining = 0
		}
		m.scheduleAdvance(remaining)
	case StatePlayingVideo:
		if m.player != nil {
			m.player.Play()
		}
	}
}

// Next is the explicit advance gesture (tap right edge). Requests that
// arrive while a transition is already loading are the double-fire case
// and are ignored.
func (m *Machine) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed || m.state == StateLoading {
		return
	}
	m.advanceStory()
}

// Prev is the explicit back gesture (tap left edge).
func (m *Machine) Prev() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed || m.state == StateLoading {
		return
	}
	if m.storyIdx > 0 {
		m.enter(m.userIdx, m.storyIdx-1)
		return
	}
	// First story of this user: fall back to the previous entry's last
	// story. Entries without stories (the empty self entry) are skipped.
	for u := m.userIdx - 1; u >= 0; u-- {
		if n := len(m.entries[u].Stories); n > 0 {
			m.enter(u, n-1)
			return
		}
	}
	// Already at the very beginning: stay put.
}

// advanceStory moves to the next story of the current user, or hands over
// to the next user, or closes at the end of the tray. Caller holds the lock.
func (m *Machine) advanceStory() {
	if m.storyIdx+1 < len(m.entries[m.userIdx].Stories) {
		m.enter(m.userIdx, m.storyIdx+1)
		return
	}
	m.advanceUser()
}

func (m *Machine) advanceUser() {
	for u := m.userIdx + 1; u < len(m.entries); u++ {
		if len(m.entries[u].Stories) > 0 {
			m.enter(u, 0)
			return
		}
	}
	m.close()
}

// Close ends the session from any state.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.close()
}

// close stops the timer and releases media synchronously; nothing may
// fire after this. Caller holds the lock.
func (m *Machine) close() {
	if m.state == StateClosed {
		return
	}
	m.cancelTimer()
	m.state = StateClosed
	if m.player != nil {
		m.player.Release()
	}
	if m.onClose != nil {
		m.onClose()
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns the current (entry, story) indexes.
func (m *Machine) Position() (userIdx, storyIdx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userIdx, m.storyIdx
}

// Current returns the story the session is on, or false once closed.
func (m *Machine) Current() (domain.StoryItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return domain.StoryItem{}, false
	}
	return m.current(), true
}

func (m *Machine) current() domain.StoryItem {
	return m.entries[m.userIdx].Stories[m.storyIdx]
}

// Progress reports the current story's progress in percent, clamped to
// [0,100]. Image slides advance linearly over ImageDuration; video tracks
// the native position/duration ratio.
func (m *Machine) Progress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var p float64
	switch m.state {
	case StatePlayingImage:
		p = float64(m.elapsed+m.clock.Since(m.startedAt)) / float64(ImageDuration) * 100
	case StatePlayingVideo:
		if m.videoDur > 0 {
			p = float64(m.videoPos) / float64(m.videoDur) * 100
		}
	case StatePaused:
		if m.prevState == StatePlayingVideo {
			if m.videoDur > 0 {
				p = float64(m.videoPos) / float64(m.videoDur) * 100
			}
		} else {
			p = float64(m.elapsed) / float64(ImageDuration) * 100
		}
	default:
		return 0
	}

	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
