// Package peer maintains the peer related information such as the set of
// known peers and their connection details.
package peer

import (
	"strings"
	"sync"
)

// WalletSentinel is the listening address marker a wallet client presents in
// its handshake. Wallets never accept connections, so they advertise port 0.
const WalletSentinel = "localhost:0"

// Peer represents information about a node in the network.
type Peer struct {
	NodeID           string `json:"node_id"`
	RemoteAddress    string `json:"remote_address,omitempty"`
	ListeningAddress string `json:"listening_address"`
}

// New constructs a new peer value.
func New(nodeID string, remoteAddress string, listeningAddress string) Peer {
	return Peer{
		NodeID:           nodeID,
		RemoteAddress:    remoteAddress,
		ListeningAddress: listeningAddress,
	}
}

// IsWallet reports whether this connection is an attached wallet rather than
// a full node.
func (p Peer) IsWallet() bool {
	return IsWalletAddress(p.ListeningAddress)
}

// IsWalletAddress reports whether a listening address carries the wallet
// sentinel.
func IsWalletAddress(address string) bool {
	return strings.Contains(address, WalletSentinel)
}

// =============================================================================

// Table maintains the set of connected peers keyed by node id. Full nodes
// and attached wallets are tracked separately: wallets are excluded from
// peer lists and gossip fan-out.
type Table struct {
	mu      sync.RWMutex
	peers   map[string]Peer
	wallets map[string]Peer
	known   map[string]struct{}
}

// NewTable constructs a table to manage node peer information.
func NewTable() *Table {
	return &Table{
		peers:   make(map[string]Peer),
		wallets: make(map[string]Peer),
		known:   make(map[string]struct{}),
	}
}

// Add places the peer in the table, routing wallets to their own set. It
// reports whether the node id was new.
func (t *Table) Add(p Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.peers
	if p.IsWallet() {
		set = t.wallets
	}

	if _, exists := set[p.NodeID]; exists {
		return false
	}

	set[p.NodeID] = p
	if !p.IsWallet() {
		t.known[p.ListeningAddress] = struct{}{}
	}

	return true
}

// Remove drops the peer with the specified node id from either set.
func (t *Table) Remove(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, exists := t.peers[nodeID]; exists {
		delete(t.peers, nodeID)
		delete(t.known, p.ListeningAddress)
		return
	}

	delete(t.wallets, nodeID)
}

// Peer looks up a connected peer or wallet by node id.
func (t *Table) Peer(nodeID string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, exists := t.peers[nodeID]; exists {
		return p, true
	}

	p, exists := t.wallets[nodeID]
	return p, exists
}

// Copy returns a list of the connected full nodes.
func (t *Table) Copy() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}

	return peers
}

// Wallets returns a list of the attached wallet connections.
func (t *Table) Wallets() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	wallets := make([]Peer, 0, len(t.wallets))
	for _, p := range t.wallets {
		wallets = append(wallets, p)
	}

	return wallets
}

// Count returns the number of connected full nodes.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.peers)
}

// =============================================================================

// MarkKnown optimistically records a listening address before dialing it, so
// concurrent discovery messages don't trigger duplicate dials. It reports
// whether the address was unknown.
func (t *Table) MarkKnown(address string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.known[address]; exists {
		return false
	}

	t.known[address] = struct{}{}
	return true
}

// UnmarkKnown removes a listening address after a failed dial so a later
// discovery can retry it.
func (t *Table) UnmarkKnown(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.known, address)
}
