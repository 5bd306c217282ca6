// Package stream turns the story repository into the push-based store
// adapter the tray consumes: subscribers receive an always-current
// snapshot of their filter whenever the underlying records change, plus a
// periodic refresh so expiry is eventually reflected even without writes.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/story"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"github.com/rameshsd/onlycreation-stories/pkg/retry"
)

// Filter scopes one subscription to a set of story owners.
type Filter struct {
	OwnerIDs []string
}

// Subscription delivers snapshots on C until its context is cancelled.
// Delivery is latest-wins: a slow consumer sees the newest snapshot, not
// every intermediate one.
type Subscription struct {
	C      <-chan []domain.StoryItem
	cancel context.CancelFunc
}

// Close stops the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
}

// Hub fans out story snapshots. One Hub serves the whole process; every
// open tray holds one subscription.
type Hub struct {
	repo    story.Repository
	logger  logger.Logger
	clock   clockwork.Clock
	refresh time.Duration

	mu      sync.Mutex
	nextID  uint64
	wakeups map[uint64]chan struct{}
}

type Opts struct {
	Repo    story.Repository
	Logger  logger.Logger
	Clock   clockwork.Clock
	Refresh time.Duration
}

func NewHub(opts Opts) *Hub {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		repo:    opts.Repo,
		logger:  log.WithComponent("StoryStream"),
		clock:   clock,
		refresh: refresh,
		wakeups: make(map[uint64]chan struct{}),
	}
}

// Invalidate tells every subscription that records changed. Each one
// re-queries and pushes a fresh snapshot.
func (h *Hub) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, wake := range h.wakeups {
		select {
		case wake <- struct{}{}:
		default: // a wakeup is already pending
		}
	}
}

// Subscribe starts a subscription for the given filter. The first
// snapshot is queried synchronously so the caller never starts from a
// blank tray; later snapshots arrive on record changes and on the
// periodic refresh tick.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	snapshot, err := h.query(ctx, filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []domain.StoryItem, 1)
	wake := make(chan struct{}, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.wakeups[id] = wake
	h.mu.Unlock()

	push(out, snapshot)

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.wakeups, id)
			h.mu.Unlock()
			close(out)
		}()

		ticker := h.clock.NewTicker(h.refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-ticker.Chan():
			}

			snapshot, err := h.query(ctx, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Error("Failed to refresh story snapshot", "error", err)
				continue
			}
			push(out, snapshot)
		}
	}()

	return &Subscription{C: out, cancel: cancel}, nil
}

// query reads the filter's current snapshot, retrying transient failures
// so one flaky read does not starve a subscriber.
func (h *Hub) query(ctx context.Context, filter Filter) ([]domain.StoryItem, error) {
	var snapshot []domain.StoryItem
	op := func() error {
		var opErr error
		snapshot, opErr = h.repo.ListActiveByOwners(ctx, filter.OwnerIDs, h.clock.Now())
		return opErr
	}
	if err := retry.Do(ctx, h.logger, "ListActiveByOwners", op, retry.DefaultConfig()); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// push replaces any undelivered snapshot with the newest one.
func push(out chan []domain.StoryItem, snapshot []domain.StoryItem) {
	for {
		select {
		case out <- snapshot:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
