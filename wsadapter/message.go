// Package wsadapter is the WebSocket protocol adapter named in spec.md
// §37 (a connection reaches the fabric, is dispatched to a use case).
// It is a collaborator included so fabric's contract is exercised
// end-to-end, not a specification of the wire format: spec.md §6 lists
// a long verb surface (Register/ResetToken/ResetPassword/ChangePassword)
// that depends on an out-of-scope SMTP port and the identity provider's
// own signup flow, so this adapter implements a representative subset
// — auth, matchmaking, gameplay, and chat — rather than every verb.
// Grounded on the ws package (hub.go/client.go/message.go),
// adapted from its per-game-two-player Client/Hub shape to a
// fabric-backed one connection↔one account model.
package wsadapter

import "encoding/json"

// InboundEnvelope captures a client message's type tag alongside its raw
// payload, exactly as ws/message.go's InboundEnvelope does.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-server payloads ---

type authMsg struct {
	Token      string `json:"token"`
	GuestToken string `json:"guestToken"`
}

type createSeekMsg struct {
	Opponent string `json:"opponent"` // player id; empty for an open seek
	Color    string `json:"color"`    // "white"|"black"; empty for random
	BoardSize int   `json:"boardSize"`
	HalfKomi  int   `json:"halfKomi"`
	Pieces    int   `json:"pieces"`
	Capstones int   `json:"capstones"`
	ContingentMS int64 `json:"contingentMs"`
	IncrementMS  int64 `json:"incrementMs"`
	IsRated      bool  `json:"isRated"`
}

type cancelSeekMsg struct {
	SeekID uint32 `json:"seekId"`
}

type acceptSeekMsg struct {
	SeekID uint32 `json:"seekId"`
}

type gameIDMsg struct {
	GameID int64 `json:"gameId"`
}

type gameActionMsg struct {
	GameID  int64  `json:"gameId"`
	Kind    string `json:"kind"` // "place"|"move"
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Variant string `json:"variant"`
	Dir     string `json:"dir"`
	Drops   []int  `json:"drops"`
}

type roomMsg struct {
	Room string `json:"room"`
}

type shoutMsg struct {
	Body string `json:"body"`
}

type tellMsg struct {
	Recipient string `json:"recipient"` // listener id of the target connection
	Body      string `json:"body"`
}

// --- Server-to-client payloads ---

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authOkMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

func newErrorMsg(message string) errorMsg {
	return errorMsg{Type: "error", Message: message}
}
