package httpruntime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// lockLevel orders the WSManager's three maps: connections (1) before
// ip_connections (2) before subscriptions (3). Every
// multi-map mutation goes through a Guard acquired by guard(), which
// locks in this order and unlocks in reverse; there is no exported way
// to take two of these locks other than through a Guard, so an
// out-of-order acquisition can only happen by editing this file.
type lockLevel int32

const (
	levelConnections lockLevel = iota + 1
	levelIPConnections
	levelSubscriptions
)

// wsDebugAssert is overridden by tests to verify the ordering
// invariant; production builds leave it nil (no-op).
var wsDebugAssert func(held []lockLevel)

// WSManager tracks live WebSocket connections, their owning IP (for
// ConnectionTracker-style accounting at the socket layer), and topic
// subscriptions, guarded by the fixed lock order connections ->
// ip_connections -> subscriptions.
type WSManager struct {
	connMu sync.Mutex
	conns  map[*websocket.Conn]string // conn -> ip

	ipMu sync.Mutex
	ip   map[string]int // ip -> connection count

	subMu sync.Mutex
	subs  map[string]map[*websocket.Conn]struct{} // topic -> subscribers
}

// NewWSManager constructs an empty WSManager.
func NewWSManager() *WSManager {
	return &WSManager{
		conns: make(map[*websocket.Conn]string),
		ip:    make(map[string]int),
		subs:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// wsGuard holds all three locks for the duration of a composite
// mutation and releases them in reverse acquisition order.
type wsGuard struct {
	m    *WSManager
	held []lockLevel
}

// guard acquires connMu, ipMu, and subMu in that fixed order.
func (m *WSManager) guard() *wsGuard {
	g := &wsGuard{m: m}
	m.connMu.Lock()
	g.held = append(g.held, levelConnections)
	m.ipMu.Lock()
	g.held = append(g.held, levelIPConnections)
	m.subMu.Lock()
	g.held = append(g.held, levelSubscriptions)
	if wsDebugAssert != nil {
		wsDebugAssert(g.held)
	}
	return g
}

func (g *wsGuard) release() {
	g.m.subMu.Unlock()
	g.m.ipMu.Unlock()
	g.m.connMu.Unlock()
}

// Register adds conn under ip with no subscriptions.
func (m *WSManager) Register(conn *websocket.Conn, ip string) {
	g := m.guard()
	defer g.release()
	m.conns[conn] = ip
	m.ip[ip]++
}

// Subscribe adds conn as a subscriber of topic. Registering twice for
// the same topic is harmless (map semantics dedupe it).
func (m *WSManager) Subscribe(conn *websocket.Conn, topic string) {
	g := m.guard()
	defer g.release()
	if _, ok := m.conns[conn]; !ok {
		return
	}
	if m.subs[topic] == nil {
		m.subs[topic] = make(map[*websocket.Conn]struct{})
	}
	m.subs[topic][conn] = struct{}{}
}

// Unsubscribe removes conn from topic's subscriber set.
func (m *WSManager) Unsubscribe(conn *websocket.Conn, topic string) {
	g := m.guard()
	defer g.release()
	delete(m.subs[topic], conn)
}

// Unregister removes conn entirely: its connection record, its share
// of the per-IP count, and every subscription it held.
func (m *WSManager) Unregister(conn *websocket.Conn) {
	g := m.guard()
	defer g.release()
	ip, ok := m.conns[conn]
	if !ok {
		return
	}
	delete(m.conns, conn)
	if m.ip[ip] > 0 {
		m.ip[ip]--
	}
	if m.ip[ip] == 0 {
		delete(m.ip, ip)
	}
	for topic, set := range m.subs {
		delete(set, conn)
		if len(set) == 0 {
			delete(m.subs, topic)
		}
	}
}

// Subscribers returns the current subscriber connections for topic.
func (m *WSManager) Subscribers(topic string) []*websocket.Conn {
	g := m.guard()
	defer g.release()
	set := m.subs[topic]
	out := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectionsFromIP returns how many live connections ip currently
// holds.
func (m *WSManager) ConnectionsFromIP(ip string) int {
	g := m.guard()
	defer g.release()
	return m.ip[ip]
}

// Count returns the total number of registered connections.
func (m *WSManager) Count() int {
	g := m.guard()
	defer g.release()
	return len(m.conns)
}
