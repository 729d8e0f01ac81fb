package wsadapter

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"takserver/account"
	"takserver/fabric"
	"takserver/ids"
	"takserver/rules"
	"takserver/seek"
	"takserver/server"
)

// Time/size limits mirror ws/client.go's constants exactly.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection driven through the fabric. Unlike the
// a single-game Client (which tracks one *game.Game pointer because a
// connection is always exactly one player in exactly one game), this
// Client carries only identity: the game/seek/room state lives in the
// server-side services keyed by PlayerID, since one player may have many
// concurrent games and room memberships (spec.md §3's Player entity).
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID ids.ConnectionId
	send   chan []byte

	playerID ids.PlayerId
	listener ids.ListenerId
	authed   bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		connID: ids.NewConnectionId(),
		send:   make(chan []byte, 256),
	}
}

// ReadPump pumps inbound frames to handleMessage. Runs in its own
// goroutine per connection, grounded on ws/client.go's ReadPump.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read error", "tag", "wsadapter", "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// WritePump drains both the local send channel (direct replies such as
// errors) and the fabric connection's outbox (server-initiated
// notifications), writing each as one text frame. Grounded on
// ws/client.go's WritePump, generalized to a second source channel.
func (c *Client) WritePump(fabConn *fabric.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeFrame(message, ok) {
				return
			}
		case msg, ok := <-fabConn.Outbox():
			if !ok {
				return
			}
			data, err := json.Marshal(outboundFrom(msg))
			if err != nil {
				continue
			}
			if !c.writeFrame(data, true) {
				return
			}
		case <-fabConn.Closed():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeFrame(message []byte, ok bool) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !ok {
		c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}
	w.Write(message)
	return w.Close() == nil
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("invalid message format")
		return
	}

	if !c.authed && envelope.Type != "auth" {
		c.sendError("authentication required: send an auth message first")
		return
	}

	switch envelope.Type {
	case "auth":
		c.handleAuth(envelope.Raw)
	case "create_seek":
		c.handleCreateSeek(envelope.Raw)
	case "cancel_seek":
		c.handleCancelSeek(envelope.Raw)
	case "list_seeks":
		c.handleListSeeks()
	case "accept_seek":
		c.handleAcceptSeek(envelope.Raw)
	case "game_action":
		c.handleGameAction(envelope.Raw)
	case "offer_draw":
		c.handleGameIDOp(envelope.Raw, c.hub.server.Games.OfferDraw)
	case "retract_draw":
		c.handleGameIDOp(envelope.Raw, c.hub.server.Games.RetractDraw)
	case "request_undo":
		c.handleGameIDOp(envelope.Raw, func(gameID ids.GameId, playerID ids.PlayerId) error {
			return c.hub.server.Games.RequestUndo(gameID, playerID, time.Now())
		})
	case "retract_undo":
		c.handleGameIDOp(envelope.Raw, c.hub.server.Games.RetractUndo)
	case "resign":
		c.handleGameIDOp(envelope.Raw, c.hub.server.Games.Resign)
	case "rematch":
		c.handleRematch(envelope.Raw)
	case "observe":
		c.handleObserve(envelope.Raw)
	case "unobserve":
		c.handleUnobserve(envelope.Raw)
	case "join_room":
		c.handleJoinRoom(envelope.Raw)
	case "leave_room":
		c.handleLeaveRoom(envelope.Raw)
	case "shout":
		c.handleShout(envelope.Raw)
	case "shout_room":
		c.handleShoutRoom(envelope.Raw)
	case "tell":
		c.handleTell(envelope.Raw)
	default:
		c.sendError("unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	if c.authed {
		c.sendError("already authenticated")
		return
	}
	var msg authMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid auth message")
		return
	}

	var acct account.Account
	switch {
	case msg.Token != "":
		if c.hub.validator == nil {
			c.sendError("server auth not configured")
			return
		}
		claims, err := c.hub.validator.Validate(msg.Token)
		if err != nil {
			c.sendError("invalid or expired token")
			return
		}
		a, ok := c.hub.server.Accounts.GetAccount(claims.AccountID)
		if !ok {
			c.sendError("unknown account")
			return
		}
		acct = a
	case msg.GuestToken != "":
		acct = c.hub.server.Accounts.GetOrCreateGuest(msg.GuestToken)
	default:
		c.sendError("auth message needs a token or guestToken")
		return
	}

	if acct.HasFlag(account.FlagBanned) {
		c.sendError("account is banned")
		return
	}

	c.playerID = c.hub.server.Players.GetOrCreatePlayerID(acct.AccountID, ids.NewPlayerId)
	c.listener = c.hub.server.Fabric.SetConnectionOwner(c.connID, acct.AccountID)
	c.authed = true

	data, _ := json.Marshal(authOkMsg{Type: "auth_ok", PlayerID: string(c.playerID)})
	c.send <- data
}

func (c *Client) handleCreateSeek(raw json.RawMessage) {
	var msg createSeekMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid create_seek message")
		return
	}
	var opponent *ids.PlayerId
	if msg.Opponent != "" {
		p := ids.PlayerId(msg.Opponent)
		opponent = &p
	}
	var color *rules.Player
	switch msg.Color {
	case "white":
		w := rules.White
		color = &w
	case "black":
		b := rules.Black
		color = &b
	}
	settings := rules.GameSettings{
		Base: rules.BaseSettings{
			BoardSize: msg.BoardSize,
			HalfKomi:  msg.HalfKomi,
			Reserve:   rules.Reserve{Pieces: msg.Pieces, Capstones: msg.Capstones},
		},
		Time: rules.TimeControl{
			Contingent: time.Duration(msg.ContingentMS) * time.Millisecond,
			Increment:  time.Duration(msg.IncrementMS) * time.Millisecond,
		},
	}
	if _, err := c.hub.server.CreateSeek(c.playerID, opponent, color, settings, msg.IsRated); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleCancelSeek(raw json.RawMessage) {
	var msg cancelSeekMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid cancel_seek message")
		return
	}
	c.hub.server.CancelSeek(ids.SeekId(msg.SeekID))
}

func (c *Client) handleListSeeks() {
	seeks := c.hub.server.Seeks.ListSeeks()
	data, _ := json.Marshal(struct {
		Type  string      `json:"type"`
		Seeks []seek.Seek `json:"seeks"`
	}{"seeks", seeks})
	c.send <- data
}

func (c *Client) handleAcceptSeek(raw json.RawMessage) {
	var msg acceptSeekMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid accept_seek message")
		return
	}
	if _, err := c.hub.server.AcceptSeek(c.playerID, ids.SeekId(msg.SeekID), time.Now()); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleGameAction(raw json.RawMessage) {
	var msg gameActionMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid game_action message")
		return
	}
	action := rules.Action{Pos: rules.Pos{X: msg.X, Y: msg.Y}, Drops: msg.Drops}
	switch msg.Kind {
	case "place":
		action.Kind = rules.ActionPlace
		switch msg.Variant {
		case "standing":
			action.Variant = rules.Standing
		case "capstone":
			action.Variant = rules.Capstone
		default:
			action.Variant = rules.Flat
		}
	case "move":
		action.Kind = rules.ActionMove
		action.From = rules.Pos{X: msg.X, Y: msg.Y}
		switch msg.Dir {
		case "up":
			action.Dir = rules.Up
		case "down":
			action.Dir = rules.Down
		case "left":
			action.Dir = rules.Left
		case "right":
			action.Dir = rules.Right
		}
	default:
		c.sendError("game_action kind must be place or move")
		return
	}
	if err := c.hub.server.Games.PerformAction(ids.GameId(msg.GameID), c.playerID, action, time.Now()); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleGameIDOp(raw json.RawMessage, op func(gameID ids.GameId, playerID ids.PlayerId) error) {
	var msg gameIDMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid message: missing gameId")
		return
	}
	if err := op(ids.GameId(msg.GameID), c.playerID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleRematch(raw json.RawMessage) {
	var msg gameIDMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid rematch message")
		return
	}
	if _, _, err := c.hub.server.Rematch(c.playerID, ids.GameId(msg.GameID), time.Now()); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleObserve(raw json.RawMessage) {
	var msg gameIDMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid observe message")
		return
	}
	c.hub.server.Games.ObserveGame(ids.GameId(msg.GameID), c.listener)
}

func (c *Client) handleUnobserve(raw json.RawMessage) {
	var msg gameIDMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid unobserve message")
		return
	}
	c.hub.server.Games.UnobserveGame(ids.GameId(msg.GameID), c.listener)
}

func (c *Client) handleJoinRoom(raw json.RawMessage) {
	var msg roomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid join_room message")
		return
	}
	c.hub.server.Chat.JoinRoom(msg.Room, c.listener)
}

func (c *Client) handleLeaveRoom(raw json.RawMessage) {
	var msg roomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid leave_room message")
		return
	}
	c.hub.server.Chat.LeaveRoom(msg.Room, c.listener)
}

func (c *Client) handleShout(raw json.RawMessage) {
	var msg shoutMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid shout message")
		return
	}
	c.hub.server.Chat.SendGlobal(c.playerID, c.listener, msg.Body)
}

func (c *Client) handleShoutRoom(raw json.RawMessage) {
	var msg struct {
		roomMsg
		shoutMsg
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid shout_room message")
		return
	}
	c.hub.server.Chat.SendRoom(msg.Room, c.playerID, c.listener, msg.Body)
}

func (c *Client) handleTell(raw json.RawMessage) {
	var msg tellMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid tell message")
		return
	}
	c.hub.server.Chat.SendPrivate(c.playerID, c.listener, ids.ListenerId(msg.Recipient), msg.Body)
}

func (c *Client) sendError(message string) {
	data, _ := json.Marshal(newErrorMsg(message))
	select {
	case c.send <- data:
	default:
	}
}

// cleanup unwinds every server-side membership this connection held,
// mirroring a Hub.Run's "if the client was in a game, notify it"
// unregister-time cleanup, generalized to seeks/rooms/spectatorships.
func (c *Client) cleanup(srv *server.Server) {
	if !c.authed {
		return
	}
	srv.Fabric.Unbind(c.connID)
	srv.Games.UnobserveAllGames(c.listener)
	srv.Chat.LeaveAllRooms(c.listener)
}
