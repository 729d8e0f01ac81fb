package gameplay

import (
	"context"
	"time"
)

// runTimeoutWatcher implements spec.md §4.C8: one goroutine per ongoing
// game, sleeping until the active side's deadline, then asking the actor
// to re-check (serializing through the same command channel as
// do_action so the two can never race). It exits once the game reaches
// a terminal state or the server is shutting down.
func runTimeoutWatcher(ctx context.Context, a *gameActor) {
	for {
		finished, nextCheck, ok := a.svc.checkTimeout(a.id, time.Now())
		if !ok || finished {
			return
		}

		wait := time.Until(nextCheck)
		if wait < a.svc.minTimeoutRetryDelay {
			wait = a.svc.minTimeoutRetryDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-a.done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
