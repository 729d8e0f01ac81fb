package chat

import (
	"io"
	"log/slog"
	"testing"

	"takserver/ids"
	"takserver/notify"
)

type fakeNotifier struct {
	toListener map[ids.ListenerId][]notify.Message
	toAll      []notify.Message
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{toListener: make(map[ids.ListenerId][]notify.Message)}
}

func (f *fakeNotifier) NotifyListener(listener ids.ListenerId, msg notify.Message) {
	f.toListener[listener] = append(f.toListener[listener], msg)
}

func (f *fakeNotifier) NotifyListeners(listeners []ids.ListenerId, msg notify.Message) {
	for _, l := range listeners {
		f.NotifyListener(l, msg)
	}
}

func (f *fakeNotifier) NotifyAll(msg notify.Message) {
	f.toAll = append(f.toAll, msg)
}

type fakeSilence struct {
	silenced map[ids.PlayerId]bool
}

func (f fakeSilence) IsSilenced(playerID ids.PlayerId) bool { return f.silenced[playerID] }

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestJoinLeaveRoomTracksMembership(t *testing.T) {
	s := New(testLog(), NewWordListPolicy(nil), newFakeNotifier(), nil)
	listener := ids.NewListenerId()

	s.JoinRoom("lobby", listener)
	if got := s.ListenersInRoom("lobby"); len(got) != 1 || got[0] != listener {
		t.Fatalf("listeners in room = %v, want [%v]", got, listener)
	}

	s.LeaveRoom("lobby", listener)
	if got := s.ListenersInRoom("lobby"); len(got) != 0 {
		t.Errorf("listeners in room after leave = %v, want empty", got)
	}
}

func TestLeaveAllRoomsRemovesEveryMembership(t *testing.T) {
	s := New(testLog(), NewWordListPolicy(nil), newFakeNotifier(), nil)
	listener := ids.NewListenerId()
	s.JoinRoom("lobby", listener)
	s.JoinRoom("tournament", listener)

	s.LeaveAllRooms(listener)

	if len(s.ListenersInRoom("lobby")) != 0 || len(s.ListenersInRoom("tournament")) != 0 {
		t.Errorf("expected no rooms to retain listener after LeaveAllRooms")
	}
}

func TestSendGlobalBroadcastsCensoredBody(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(testLog(), NewWordListPolicy([]string{"darn"}), notifier, nil)
	sender, senderListener := ids.NewPlayerId(), ids.NewListenerId()

	s.SendGlobal(sender, senderListener, "darn this game")

	if len(notifier.toAll) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(notifier.toAll))
	}
	if got := notifier.toAll[0].ChatBody; got != "**** this game" {
		t.Errorf("censored body = %q, want %q", got, "**** this game")
	}
}

func TestSendRoomOnlyReachesRoomMembers(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(testLog(), NewWordListPolicy(nil), notifier, nil)
	member, outsider := ids.NewListenerId(), ids.NewListenerId()
	s.JoinRoom("table-1", member)

	s.SendRoom("table-1", ids.NewPlayerId(), ids.NewListenerId(), "hi")

	if len(notifier.toListener[member]) != 1 {
		t.Errorf("room member received %d messages, want 1", len(notifier.toListener[member]))
	}
	if len(notifier.toListener[outsider]) != 0 {
		t.Errorf("non-member received a message, want none")
	}
}

func TestSilencedSenderGetsOnlyPrivateNotice(t *testing.T) {
	notifier := newFakeNotifier()
	sender := ids.NewPlayerId()
	silence := fakeSilence{silenced: map[ids.PlayerId]bool{sender: true}}
	s := New(testLog(), NewWordListPolicy(nil), notifier, silence)
	senderListener := ids.NewListenerId()

	s.SendGlobal(sender, senderListener, "hi")

	if len(notifier.toAll) != 0 {
		t.Errorf("expected no broadcast for a silenced sender, got %d", len(notifier.toAll))
	}
	msgs := notifier.toListener[senderListener]
	if len(msgs) != 1 || msgs[0].ChatBody != silencedNotice {
		t.Fatalf("sender notice = %+v, want a single %q message", msgs, silencedNotice)
	}
}
