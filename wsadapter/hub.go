package wsadapter

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"takserver/auth"
	"takserver/server"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub upgrades incoming HTTP requests to WebSocket connections and wires
// each one into the fabric. Unlike a channel-driven Hub design, there is no
// Register/Unregister channel pair with a central Run loop: the fabric
// (takserver/fabric) already serializes connection bookkeeping behind
// its own mutex, so ServeWS talks to it directly and synchronously —
// the channel-and-select loop such a design needs to avoid races doesn't
// apply once that bookkeeping has moved into the fabric itself.
type Hub struct {
	log       *slog.Logger
	server    *server.Server
	validator *auth.Validator
}

// NewHub constructs a Hub. validator may be nil, in which case only
// guest-token authentication is accepted.
func NewHub(log *slog.Logger, srv *server.Server, validator *auth.Validator) *Hub {
	return &Hub{log: log, server: srv, validator: validator}
}

// ServeWS upgrades the request and spawns the per-connection pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "tag", "wsadapter", "error", err)
		return
	}

	client := newClient(h, conn)
	fabConn := h.server.Fabric.Accept()
	client.connID = fabConn.ID

	go client.WritePump(fabConn)
	go client.ReadPump()
}

// unregister is called from ReadPump's defer once the socket closes; it
// releases every server-side membership the connection held.
func (h *Hub) unregister(c *Client) {
	c.cleanup(h.server)
}
