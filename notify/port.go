package notify

import "takserver/ids"

// Port is the notification contract named in spec.md §4.C3. It never
// blocks its caller: delivery is best-effort per connection, FIFO per
// listener, with no cross-listener ordering guarantee. Implemented by
// the fabric package over the live connection set.
type Port interface {
	NotifyListener(listener ids.ListenerId, msg Message)
	NotifyListeners(listeners []ids.ListenerId, msg Message)
	NotifyAll(msg Message)
}
