// Package fabric implements the connection fabric named in spec.md §4.C4:
// the Conn→Listener→Account mapping, online-status tracking, and the
// notify.Port over live connections. Grounded on ws.Hub's
// (register/unregister bookkeeping) generalized from a single
// one-client-per-game model to the bijection/many-to-many model spec.md
// requires.
package fabric

import (
	"log/slog"
	"sync"

	"takserver/concurrent"
	"takserver/ids"
	"takserver/notify"
)

// OnlineHooks lets the use-case layer react to account online/offline
// transitions without the fabric importing the seek/gameplay packages
// (spec.md §9 "Cyclic collaborators": the fabric stays an observed
// dependency, never a caller into use cases it doesn't own).
type OnlineHooks interface {
	OnAccountOnline(account ids.AccountId)
	OnAccountOffline(account ids.AccountId)
}

type noopHooks struct{}

func (noopHooks) OnAccountOnline(ids.AccountId)  {}
func (noopHooks) OnAccountOffline(ids.AccountId) {}

// Fabric is the process-wide connection registry (spec.md §9 "the only
// process-wide singletons are the connection fabric and the service
// facades"). Safe for concurrent use; a fresh Fabric can be constructed
// per test scenario.
type Fabric struct {
	log   *slog.Logger
	hooks OnlineHooks

	listenerByAccount *concurrent.BiMap[ids.AccountId, ids.ListenerId]
	connsByListener   *concurrent.ManyMany[ids.ListenerId, ids.ConnectionId]

	connMu      sync.Mutex // guards connections and accountOf
	connections map[ids.ConnectionId]*Connection
	accountOf   map[ids.ConnectionId]ids.AccountId
}

// New constructs an empty fabric. Pass nil hooks to use a no-op
// implementation (useful in tests that don't exercise seek/game
// side effects).
func New(log *slog.Logger, hooks OnlineHooks) *Fabric {
	if hooks == nil {
		hooks = noopHooks{}
	}
	f := &Fabric{
		log:               log,
		hooks:             hooks,
		listenerByAccount: concurrent.NewBiMap[ids.AccountId, ids.ListenerId](),
		connsByListener:   concurrent.NewManyMany[ids.ListenerId, ids.ConnectionId](),
		connections:       make(map[ids.ConnectionId]*Connection),
		accountOf:         make(map[ids.ConnectionId]ids.AccountId),
	}
	return f
}

// Accept registers a brand-new, unbound connection and returns it. The
// adapter calls SetConnectionOwner once authentication (or guest-token
// assignment) resolves an account.
func (f *Fabric) Accept() *Connection {
	conn := NewConnection(ids.NewConnectionId())
	f.connMu.Lock()
	f.connections[conn.ID] = conn
	f.connMu.Unlock()
	return conn
}

// SetConnectionOwner implements spec.md §4.C4's bind protocol. Rebinding
// an already-bound connection first unbinds it from its prior listener.
func (f *Fabric) SetConnectionOwner(connID ids.ConnectionId, account ids.AccountId) ids.ListenerId {
	f.connMu.Lock()
	prevAccount, wasBound := f.accountOf[connID]
	f.connMu.Unlock()
	if wasBound {
		f.unbindConnectionFromAccount(connID, prevAccount)
	}

	listener, existed := f.listenerByAccount.GetByLeft(account)
	if !existed {
		listener = ids.NewListenerId()
		// Another goroutine may race to insert the same account's first
		// listener; TryInsert fails closed in that case and we re-read.
		if !f.listenerByAccount.TryInsert(account, listener) {
			listener, _ = f.listenerByAccount.GetByLeft(account)
		}
	}

	firstConnection := f.connsByListener.KeyCount(listener) == 0
	f.connsByListener.Insert(listener, connID)
	f.connMu.Lock()
	f.accountOf[connID] = account
	f.connMu.Unlock()

	if firstConnection {
		f.setAccountOnline(account)
	}
	return listener
}

// Unbind implements the socket-close path of spec.md §4.C4.
func (f *Fabric) Unbind(connID ids.ConnectionId) {
	f.connMu.Lock()
	account, ok := f.accountOf[connID]
	delete(f.connections, connID)
	delete(f.accountOf, connID)
	f.connMu.Unlock()
	if !ok {
		return
	}
	f.unbindConnectionFromAccount(connID, account)
}

func (f *Fabric) unbindConnectionFromAccount(connID ids.ConnectionId, account ids.AccountId) {
	listener, ok := f.listenerByAccount.GetByLeft(account)
	if !ok {
		return
	}
	f.connsByListener.Remove(listener, connID)
	if f.connsByListener.KeyCount(listener) == 0 {
		f.listenerByAccount.RemoveByLeft(account)
		f.setAccountOffline(account)
	}
}

func (f *Fabric) setAccountOnline(account ids.AccountId) {
	f.log.Info("account online", "account", string(account))
	f.NotifyAll(notify.Message{Kind: notify.KindPlayersOnline})
	f.hooks.OnAccountOnline(account)
}

func (f *Fabric) setAccountOffline(account ids.AccountId) {
	f.log.Info("account offline", "account", string(account))
	f.NotifyAll(notify.Message{Kind: notify.KindPlayersOnline})
	f.hooks.OnAccountOffline(account)
}

// ListenerFor returns the listener currently bound to account, if online.
func (f *Fabric) ListenerFor(account ids.AccountId) (ids.ListenerId, bool) {
	return f.listenerByAccount.GetByLeft(account)
}

// IsOnline reports whether account currently has a bound listener.
func (f *Fabric) IsOnline(account ids.AccountId) bool {
	_, ok := f.listenerByAccount.GetByLeft(account)
	return ok
}

// NotifyListener implements notify.Port: delivers to every connection
// bound to listener.
func (f *Fabric) NotifyListener(listener ids.ListenerId, msg notify.Message) {
	for _, connID := range f.connsByListener.GetByKey(listener) {
		f.deliver(connID, msg)
	}
}

// NotifyListeners implements notify.Port for a batch of listeners.
func (f *Fabric) NotifyListeners(listeners []ids.ListenerId, msg notify.Message) {
	for _, l := range listeners {
		f.NotifyListener(l, msg)
	}
}

// NotifyAll implements notify.Port: broadcast to every bound connection.
func (f *Fabric) NotifyAll(msg notify.Message) {
	f.connMu.Lock()
	targets := make([]ids.ConnectionId, 0, len(f.accountOf))
	for id := range f.accountOf {
		targets = append(targets, id)
	}
	f.connMu.Unlock()
	for _, connID := range targets {
		f.deliver(connID, msg)
	}
}

func (f *Fabric) deliver(connID ids.ConnectionId, msg notify.Message) {
	f.connMu.Lock()
	conn, ok := f.connections[connID]
	f.connMu.Unlock()
	if !ok {
		return
	}
	conn.Enqueue(msg.Clone())
}
