// Package seek implements the seek registry named in spec.md §4.C5: open
// challenges that live until accepted or cancelled. Grounded on the
// a matchmaking.Matchmaker waiting-client bookkeeping idiom, adapted
// from a single FIFO queue to per-player multi-seek registries with
// explicit create/cancel/remove/list operations.
package seek

import (
	"sync"

	"takserver/apperrors"
	"takserver/ids"
	"takserver/notify"
	"takserver/rules"
)

// Seek is an open challenge (spec.md §3).
type Seek struct {
	ID        ids.SeekId
	CreatorID ids.PlayerId
	// OpponentID, when set, directs this seek at a single opponent.
	OpponentID *ids.PlayerId
	// Color, when set, is the creator's preferred side.
	Color    *rules.Player
	Settings rules.GameSettings
	IsRated  bool
}

// Registry tracks open seeks. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	counter  ids.SeekCounter
	seeks    map[ids.SeekId]Seek
	byPlayer map[ids.PlayerId]map[ids.SeekId]struct{}

	notifier notify.Port
}

// NewRegistry constructs an empty seek registry publishing through notifier.
func NewRegistry(notifier notify.Port) *Registry {
	return &Registry{
		seeks:    make(map[ids.SeekId]Seek),
		byPlayer: make(map[ids.PlayerId]map[ids.SeekId]struct{}),
		notifier: notifier,
	}
}

// CreateSeek validates and inserts a new seek, emitting SeekCreated on
// success. A player may hold multiple outstanding seeks concurrently.
func (r *Registry) CreateSeek(creator ids.PlayerId, opponent *ids.PlayerId, color *rules.Player, settings rules.GameSettings, isRated bool) (Seek, error) {
	if !settings.IsValid() {
		return Seek{}, apperrors.ErrInvalidGameSettings
	}
	if opponent != nil && *opponent == creator {
		return Seek{}, apperrors.ErrInvalidOpponent
	}

	r.mu.Lock()
	s := Seek{
		ID:         r.counter.Next(),
		CreatorID:  creator,
		OpponentID: opponent,
		Color:      color,
		Settings:   settings,
		IsRated:    isRated,
	}
	r.seeks[s.ID] = s
	if r.byPlayer[creator] == nil {
		r.byPlayer[creator] = make(map[ids.SeekId]struct{})
	}
	r.byPlayer[creator][s.ID] = struct{}{}
	r.mu.Unlock()

	r.notifier.NotifyAll(notify.Message{Kind: notify.KindSeekCreated, Seek: s})
	return s, nil
}

// RemoveSeek deletes a seek by id (used on acceptance), emitting
// SeekCanceled. Returns false if the seek no longer exists.
func (r *Registry) RemoveSeek(id ids.SeekId) (Seek, bool) {
	r.mu.Lock()
	s, ok := r.seeks[id]
	if ok {
		delete(r.seeks, id)
		delete(r.byPlayer[s.CreatorID], id)
		if len(r.byPlayer[s.CreatorID]) == 0 {
			delete(r.byPlayer, s.CreatorID)
		}
	}
	r.mu.Unlock()
	if !ok {
		return Seek{}, false
	}
	r.notifier.NotifyAll(notify.Message{Kind: notify.KindSeekCanceled, Seek: s})
	return s, true
}

// CancelAllPlayerSeeks removes every seek created by player, emitting
// SeekCanceled for each. Used both on explicit cancel and on
// set_account_offline (spec.md §4.C4).
func (r *Registry) CancelAllPlayerSeeks(player ids.PlayerId) []Seek {
	r.mu.Lock()
	seekIDs := r.byPlayer[player]
	out := make([]Seek, 0, len(seekIDs))
	for id := range seekIDs {
		out = append(out, r.seeks[id])
		delete(r.seeks, id)
	}
	delete(r.byPlayer, player)
	r.mu.Unlock()

	for _, s := range out {
		r.notifier.NotifyAll(notify.Message{Kind: notify.KindSeekCanceled, Seek: s})
	}
	return out
}

// ListSeeks returns a snapshot of all open seeks; order is unspecified.
func (r *Registry) ListSeeks() []Seek {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Seek, 0, len(r.seeks))
	for _, s := range r.seeks {
		out = append(out, s)
	}
	return out
}
