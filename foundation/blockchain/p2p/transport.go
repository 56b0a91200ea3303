// Package p2p implements the framed message transport between nodes. Every
// connection is a websocket carrying JSON frames, opened with a handshake
// that declares the remote's node id and listening address. The transport
// owns the peer table; gossip logic lives above it.
package p2p

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
)

// DialTimeout bounds each stage of opening a connection: the websocket
// upgrade, and the write and the read of the protocol handshake frame.
const DialTimeout = 5 * time.Second

const (
	p2pPath    = "/p2p"
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// EventHandler defines a function that is called when events occur in the
// processing of connections.
type EventHandler func(v string, args ...any)

// Handlers are the callbacks the transport fires into the layer above. All
// of them are invoked from connection goroutines.
type Handlers struct {
	OnMessage          func(from peer.Peer, msg Message)
	OnPeerConnected    func(p peer.Peer)
	OnPeerDisconnected func(p peer.Peer)
}

// Config represents the configuration required to construct a transport.
type Config struct {
	NodeID     string
	ListenHost string // empty disables the listener (wallet clients)
	Advertise  string // the listening address told to peers
	EvHandler  EventHandler
}

// =============================================================================

// conn wraps one websocket with its writer queue and teardown guard. The
// send channel is never closed; done signals the writer to stop so a
// concurrent broadcast can never hit a closed channel.
type conn struct {
	ws   *websocket.Conn
	peer peer.Peer
	send chan Message
	done chan struct{}
	once sync.Once
}

// Transport maintains the listening endpoint and all open connections.
type Transport struct {
	nodeID     string
	listenHost string
	advertise  string
	ev         EventHandler
	handlers   Handlers

	table *peer.Table

	mu    sync.RWMutex
	conns map[string]*conn

	listener net.Listener
	srv      *http.Server
}

// New constructs a transport. Start must be called before the node can
// accept connections; dial-only clients skip Start.
func New(cfg Config, handlers Handlers) *Transport {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	t := Transport{
		nodeID:     cfg.NodeID,
		listenHost: cfg.ListenHost,
		advertise:  cfg.Advertise,
		ev:         ev,
		handlers:   handlers,
		table:      peer.NewTable(),
		conns:      make(map[string]*conn),
	}

	return &t
}

// Table exposes the peer table.
func (t *Transport) Table() *peer.Table {
	return t.table
}

// Addr returns the bound listener address, useful when listening on port 0.
func (t *Transport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// =============================================================================

// Start binds the listening endpoint and begins accepting connections.
func (t *Transport) Start() error {
	listener, err := net.Listen("tcp", t.bindHost())
	if err != nil {
		return fmt.Errorf("binding p2p listener: %w", err)
	}
	t.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(p2pPath, t.handleUpgrade)

	t.srv = &http.Server{Handler: mux}

	go func() {
		if err := t.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.ev("p2p: listener closed: ERROR: %s", err)
		}
	}()

	t.ev("p2p: listening: %s", listener.Addr())

	return nil
}

// Shutdown closes the listener and every open connection.
func (t *Transport) Shutdown() {
	t.ev("p2p: shutdown: started")
	defer t.ev("p2p: shutdown: completed")

	if t.srv != nil {
		t.srv.Close()
	}

	t.mu.RLock()
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.RUnlock()

	for _, c := range conns {
		t.teardown(c)
	}
}

// =============================================================================

// Dial opens a connection to the specified listening address and performs
// the handshake. Dials to ourselves or to addresses already connected or in
// flight are suppressed.
func (t *Transport) Dial(address string) error {
	if address == t.advertise {
		return nil
	}

	if !t.table.MarkKnown(address) {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: DialTimeout}
	ws, _, err := dialer.Dial("ws://"+address+p2pPath, nil)
	if err != nil {
		t.table.UnmarkKnown(address)
		return fmt.Errorf("dialing %s: %w", address, err)
	}

	if err := t.writeHandshake(ws); err != nil {
		t.table.UnmarkKnown(address)
		ws.Close()
		return err
	}

	hs, err := readHandshake(ws)
	if err != nil {
		t.table.UnmarkKnown(address)
		ws.Close()
		return err
	}

	if err := t.register(ws, hs); err != nil {
		t.table.UnmarkKnown(address)
		ws.Close()
		return err
	}

	return nil
}

// handleUpgrade accepts an inbound connection: upgrade, wait for the
// remote's handshake, answer with ours, then register.
func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.ev("p2p: upgrade failed: %s: ERROR: %s", r.RemoteAddr, err)
		return
	}

	hs, err := readHandshake(ws)
	if err != nil {
		t.ev("p2p: handshake failed: %s: ERROR: %s", r.RemoteAddr, err)
		ws.Close()
		return
	}

	if err := t.writeHandshake(ws); err != nil {
		t.ev("p2p: handshake reply failed: %s: ERROR: %s", r.RemoteAddr, err)
		ws.Close()
		return
	}

	if err := t.register(ws, hs); err != nil {
		t.ev("p2p: register failed: %s: ERROR: %s", r.RemoteAddr, err)
		ws.Close()
		return
	}
}

// register places the handshaken connection in the table and starts its
// reader and writer goroutines.
func (t *Transport) register(ws *websocket.Conn, hs HandshakePayload) error {
	if hs.NodeID == t.nodeID {
		return errors.New("connection to self")
	}

	p := peer.New(hs.NodeID, ws.RemoteAddr().String(), hs.ListeningAddress)

	c := &conn{
		ws:   ws,
		peer: p,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	if _, exists := t.conns[p.NodeID]; exists {
		t.mu.Unlock()
		return fmt.Errorf("duplicate connection for node %s", p.NodeID)
	}
	t.conns[p.NodeID] = c
	t.mu.Unlock()

	t.table.Add(p)

	go t.writeLoop(c)
	go t.readLoop(c)

	t.ev("p2p: peer connected: node[%s]: listening[%s]: wallet[%t]", p.NodeID, p.ListeningAddress, p.IsWallet())

	if t.handlers.OnPeerConnected != nil {
		t.handlers.OnPeerConnected(p)
	}

	return nil
}

// =============================================================================

// readLoop delivers inbound frames until the connection dies. Any read or
// decode error tears the specific connection down; the node carries on.
func (t *Transport) readLoop(c *conn) {
	defer t.teardown(c)

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			t.ev("p2p: read: node[%s]: closed: %s", c.peer.NodeID, err)
			return
		}

		if msg.Type == TypeHandshake {
			continue
		}

		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(c.peer, msg)
		}
	}
}

// writeLoop drains the send queue. One writer per connection keeps the
// websocket write side single threaded.
func (t *Transport) writeLoop(c *conn) {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				t.ev("p2p: write: node[%s]: ERROR: %s", c.peer.NodeID, err)
				c.ws.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// teardown removes the connection exactly once and notifies the layer above.
func (t *Transport) teardown(c *conn) {
	c.once.Do(func() {
		t.mu.Lock()
		delete(t.conns, c.peer.NodeID)
		t.mu.Unlock()

		t.table.Remove(c.peer.NodeID)
		close(c.done)
		c.ws.Close()

		t.ev("p2p: peer disconnected: node[%s]", c.peer.NodeID)

		if t.handlers.OnPeerDisconnected != nil {
			t.handlers.OnPeerDisconnected(c.peer)
		}
	})
}

// =============================================================================

// Broadcast queues the message for every connected full node. Wallet
// connections never receive gossip.
func (t *Transport) Broadcast(msg Message) {
	t.BroadcastExcept(msg, "")
}

// BroadcastExcept queues the message for every connected full node except
// the named one, typically the sender of the frame being relayed.
func (t *Transport) BroadcastExcept(msg Message, exceptNodeID string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for nodeID, c := range t.conns {
		if nodeID == exceptNodeID || c.peer.IsWallet() {
			continue
		}
		t.queue(c, msg)
	}
}

// SendTo queues the message for one connection, full node or wallet.
func (t *Transport) SendTo(nodeID string, msg Message) error {
	t.mu.RLock()
	c, exists := t.conns[nodeID]
	t.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no connection for node %s", nodeID)
	}

	t.queue(c, msg)
	return nil
}

// queue drops the message when the peer's queue is full. A peer that slow
// is better served by the next chain sync than by blocking the node.
func (t *Transport) queue(c *conn, msg Message) {
	select {
	case c.send <- msg:
	default:
		t.ev("p2p: send queue full: node[%s]: dropping %s", c.peer.NodeID, msg.Type)
	}
}

// =============================================================================

// writeHandshake sends our own handshake frame.
func (t *Transport) writeHandshake(ws *websocket.Conn) error {
	hs := HandshakePayload{
		NodeID:           t.nodeID,
		ListeningAddress: t.advertise,
	}

	msg, err := NewMessage(TypeHandshake, hs, t.nodeID)
	if err != nil {
		return err
	}

	ws.SetWriteDeadline(time.Now().Add(DialTimeout))
	defer ws.SetWriteDeadline(time.Time{})

	return ws.WriteJSON(msg)
}

// readHandshake waits for the remote's handshake frame.
func readHandshake(ws *websocket.Conn) (HandshakePayload, error) {
	ws.SetReadDeadline(time.Now().Add(DialTimeout))
	defer ws.SetReadDeadline(time.Time{})

	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		return HandshakePayload{}, fmt.Errorf("reading handshake: %w", err)
	}

	if msg.Type != TypeHandshake {
		return HandshakePayload{}, fmt.Errorf("expected handshake, got %s", msg.Type)
	}

	var hs HandshakePayload
	if err := msg.Decode(&hs); err != nil {
		return HandshakePayload{}, fmt.Errorf("decoding handshake: %w", err)
	}

	if hs.NodeID == "" {
		return HandshakePayload{}, errors.New("handshake carries no node id")
	}

	return hs, nil
}

// bindHost returns the address to bind. It falls back to the advertised
// address when no explicit listen host is configured.
func (t *Transport) bindHost() string {
	if t.listenHost != "" {
		return t.listenHost
	}
	return t.advertise
}
