package wsadapter

import (
	"takserver/notify"
)

// outboundFrame is the one wire shape every server-initiated
// notification is rendered into, mirroring notify.Message's own
// single-flat-struct convention so the wire format stays a direct
// reflection of the internal event, not a second parallel hierarchy.
type outboundFrame struct {
	Type string `json:"type"`

	Seek   any   `json:"seek,omitempty"`
	GameID int64 `json:"gameId,omitempty"`

	PlayerIDs []string `json:"playerIds,omitempty"`
	Result    any      `json:"result,omitempty"`
	Action    any      `json:"action,omitempty"`

	ChatFrom   string `json:"chatFrom,omitempty"`
	ChatBody   string `json:"chatBody,omitempty"`
	ChatSource string `json:"chatSource,omitempty"`
	ChatRoom   string `json:"chatRoom,omitempty"`

	AlertKind   string `json:"alertKind,omitempty"`
	AlertCustom string `json:"alertCustom,omitempty"`
}

var kindNames = map[notify.Kind]string{
	notify.KindSeekCreated:          "seek_created",
	notify.KindSeekCanceled:         "seek_canceled",
	notify.KindGameStarted:          "game_started",
	notify.KindGameEnded:            "game_ended",
	notify.KindPlayersOnline:        "players_online",
	notify.KindGameOver:             "game_over",
	notify.KindGameAction:           "game_action",
	notify.KindGameActionUndone:     "game_action_undone",
	notify.KindGameDrawOffered:      "game_draw_offered",
	notify.KindGameDrawRetracted:    "game_draw_retracted",
	notify.KindGameUndoRequested:    "game_undo_requested",
	notify.KindGameUndoRetracted:    "game_undo_retracted",
	notify.KindGameRematchRequested: "game_rematch_requested",
	notify.KindGameRematchRetracted: "game_rematch_retracted",
	notify.KindChatMessage:          "chat_message",
	notify.KindServerAlert:          "server_alert",
}

var chatSourceNames = map[notify.Source]string{
	notify.SourcePrivate: "private",
	notify.SourceGlobal:  "global",
	notify.SourceRoom:    "room",
}

var alertKindNames = map[notify.ServerAlertKind]string{
	notify.AlertShutdown: "shutdown",
	notify.AlertCustom:   "custom",
}

func outboundFrom(msg notify.Message) outboundFrame {
	frame := outboundFrame{
		Type:   kindNames[msg.Kind],
		Seek:   msg.Seek,
		GameID: int64(msg.GameID),
		Result: msg.Result,
		Action: msg.ActionRecord,
	}
	if msg.PlayerIDs != nil {
		ids := make([]string, len(msg.PlayerIDs))
		for i, p := range msg.PlayerIDs {
			ids[i] = string(p)
		}
		frame.PlayerIDs = ids
	}
	if msg.Kind == notify.KindChatMessage {
		frame.ChatFrom = string(msg.ChatFrom)
		frame.ChatBody = msg.ChatBody
		frame.ChatSource = chatSourceNames[msg.ChatSource]
		frame.ChatRoom = msg.ChatRoom
	}
	if msg.Kind == notify.KindServerAlert {
		frame.AlertKind = alertKindNames[msg.AlertKind]
		frame.AlertCustom = msg.AlertCustom
	}
	return frame
}
