// Package chat implements the chat rooms and content policy named in
// spec.md §4.C13. Rooms are named strings with many-to-many membership
// between room name and listener, grounded on
// original_source/tak-server-app/src/domain/chat.rs's ChatRoomService
// trait (there backed by a ConcurrentMultiMap; here by this repo's own
// concurrent.ManyMany, which is the same many-to-many-with-one-lock
// shape). Global and private delivery reuse the same notify.Port fan-out
// the rest of the server uses; only room membership is this package's
// own state.
package chat

import (
	"log/slog"

	"takserver/concurrent"
	"takserver/ids"
	"takserver/notify"
)

// SilenceChecker reports whether a player's account currently carries
// the Silenced moderation flag. A narrow view of player.Resolver's
// display mirror, kept separate so this package never depends on
// player/account directly (same cyclic-collaborator avoidance as
// gameplay.PlayerLocator and finalize.PlayerInfo).
type SilenceChecker interface {
	IsSilenced(playerID ids.PlayerId) bool
}

const silencedNotice = "you are silenced"

// Service owns chat room membership and message routing.
type Service struct {
	log      *slog.Logger
	rooms    *concurrent.ManyMany[string, ids.ListenerId]
	policy   ContentPolicy
	notifier notify.Port
	silence  SilenceChecker
}

// New constructs a chat service. policy filters outgoing message bodies;
// silence gates senders per spec.md §4.C13.
func New(log *slog.Logger, policy ContentPolicy, notifier notify.Port, silence SilenceChecker) *Service {
	return &Service{
		log:      log,
		rooms:    concurrent.NewManyMany[string, ids.ListenerId](),
		policy:   policy,
		notifier: notifier,
		silence:  silence,
	}
}

// JoinRoom binds listener into room. Idempotent.
func (s *Service) JoinRoom(room string, listener ids.ListenerId) {
	s.rooms.Insert(room, listener)
}

// LeaveRoom unbinds listener from room. Idempotent.
func (s *Service) LeaveRoom(room string, listener ids.ListenerId) {
	s.rooms.Remove(room, listener)
}

// LeaveAllRooms unbinds listener from every room it had joined, e.g. on
// disconnect.
func (s *Service) LeaveAllRooms(listener ids.ListenerId) {
	s.rooms.RemoveByValue(listener)
}

// ListenersInRoom returns a snapshot of listeners currently in room.
func (s *Service) ListenersInRoom(room string) []ids.ListenerId {
	return s.rooms.GetByKey(room)
}

// SendGlobal broadcasts body to every connected listener.
func (s *Service) SendGlobal(sender ids.PlayerId, senderListener ids.ListenerId, body string) {
	s.send(sender, senderListener, body, notify.SourceGlobal, "", func(msg notify.Message) {
		s.notifier.NotifyAll(msg)
	})
}

// SendRoom broadcasts body to every listener currently in room.
func (s *Service) SendRoom(room string, sender ids.PlayerId, senderListener ids.ListenerId, body string) {
	s.send(sender, senderListener, body, notify.SourceRoom, room, func(msg notify.Message) {
		s.notifier.NotifyListeners(s.rooms.GetByKey(room), msg)
	})
}

// SendPrivate delivers body to a single recipient listener.
func (s *Service) SendPrivate(sender ids.PlayerId, senderListener ids.ListenerId, recipient ids.ListenerId, body string) {
	s.send(sender, senderListener, body, notify.SourcePrivate, "", func(msg notify.Message) {
		s.notifier.NotifyListener(recipient, msg)
	})
}

// send applies the silencing gate and content policy shared by every
// send path, then hands the built Message to deliver.
func (s *Service) send(sender ids.PlayerId, senderListener ids.ListenerId, body string, source notify.Source, room string, deliver func(notify.Message)) {
	if s.silence != nil && s.silence.IsSilenced(sender) {
		s.notifier.NotifyListener(senderListener, notify.Message{
			Kind:     notify.KindChatMessage,
			ChatFrom: sender,
			ChatBody: silencedNotice,
			ChatSource: notify.SourcePrivate,
		})
		return
	}

	censored, flagged := s.policy.Filter(body)
	if flagged {
		s.log.Debug("chat: message censored", "player_id", sender)
	}

	deliver(notify.Message{
		Kind:       notify.KindChatMessage,
		ChatFrom:   sender,
		ChatBody:   censored,
		ChatSource: source,
		ChatRoom:   room,
	})
}
