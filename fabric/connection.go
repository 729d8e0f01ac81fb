package fabric

import (
	"sync"

	"takserver/ids"
	"takserver/notify"
)

// sendQueueCapacity bounds each connection's outbound queue. Spec.md §5
// permits an unbounded canonical implementation but requires a bounded
// variant to close the connection rather than block the server on a slow
// client; this implementation takes the bounded variant.
const sendQueueCapacity = 256

// Connection is one live socket bound into the fabric. Outbound delivery
// never blocks the caller: Enqueue is a non-blocking send that closes the
// connection's Closed channel when the queue is saturated, matching
// a wsutil.SafeSend non-blocking-select idiom generalized to a
// close-on-saturation policy.
type Connection struct {
	ID ids.ConnectionId

	outbox chan notify.Message
	closed chan struct{}
	once   sync.Once
}

// NewConnection allocates a connection with a bounded outbound queue.
func NewConnection(id ids.ConnectionId) *Connection {
	return &Connection{
		ID:     id,
		outbox: make(chan notify.Message, sendQueueCapacity),
		closed: make(chan struct{}),
	}
}

// Outbox is the channel an adapter's write pump drains to serialize and
// write messages to the socket.
func (c *Connection) Outbox() <-chan notify.Message { return c.outbox }

// Closed reports, via channel-close signaling, that this connection's
// outbound queue saturated and it must be torn down.
func (c *Connection) Closed() <-chan struct{} { return c.closed }

// Enqueue attempts a non-blocking delivery. If the outbox is full, the
// connection is marked closed and the message is dropped — never blocks.
func (c *Connection) Enqueue(msg notify.Message) {
	select {
	case c.outbox <- msg:
	default:
		c.once.Do(func() { close(c.closed) })
	}
}

// MarkClosed signals teardown explicitly (socket EOF, admin force-close).
func (c *Connection) MarkClosed() {
	c.once.Do(func() { close(c.closed) })
}
