package gameplay

import (
	"context"
	"sync"
	"time"

	"takserver/ids"
)

// DisconnectWatchers implements spec.md §4.C9: one watcher goroutine per
// disconnected player, indexed by PlayerId via a keyed-task registry so
// a new disconnect always supersedes any prior watcher for the same
// player, and reconnection cancels it outright. Grounded on the same
// single-producer-per-key idiom as the game timeout runner (§4.C8), just
// keyed by player instead of by game.
type DisconnectWatchers struct {
	svc *Service

	mu       sync.Mutex
	cancelFn map[ids.PlayerId]context.CancelFunc
}

// NewDisconnectWatchers constructs an empty registry bound to svc.
func NewDisconnectWatchers(svc *Service) *DisconnectWatchers {
	return &DisconnectWatchers{svc: svc, cancelFn: make(map[ids.PlayerId]context.CancelFunc)}
}

// Start arms a watcher for playerID, disconnected as of disconnectedAt.
// Any watcher already running for this player is canceled first.
func (d *DisconnectWatchers) Start(ctx context.Context, playerID ids.PlayerId, disconnectedAt time.Time) {
	d.Cancel(playerID)

	watchCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancelFn[playerID] = cancel
	d.mu.Unlock()

	go d.run(watchCtx, playerID, disconnectedAt)
}

// Cancel stops playerID's watcher, if one is running (reconnection path).
func (d *DisconnectWatchers) Cancel(playerID ids.PlayerId) {
	d.mu.Lock()
	cancel, ok := d.cancelFn[playerID]
	delete(d.cancelFn, playerID)
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *DisconnectWatchers) run(ctx context.Context, playerID ids.PlayerId, disconnectedAt time.Time) {
	for {
		games := d.svc.ActiveGamesFor(playerID)
		if len(games) == 0 {
			d.Cancel(playerID)
			return
		}

		now := time.Now()
		var soonest time.Duration
		haveSoonest := false

		for _, gameID := range games {
			result, ok := d.svc.checkDisconnectTimeout(gameID, playerID, disconnectedAt, now)
			if !ok || !result.applies || result.finished {
				continue
			}
			if !haveSoonest || result.retryAfter < soonest {
				soonest = result.retryAfter
				haveSoonest = true
			}
		}

		if !haveSoonest {
			d.Cancel(playerID)
			return
		}

		timer := time.NewTimer(soonest)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
