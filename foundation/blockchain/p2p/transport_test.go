package p2p_test

import (
	"sync"
	"testing"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/p2p"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
)

// recorder collects transport callbacks for assertions.
type recorder struct {
	mu        sync.Mutex
	connected []peer.Peer
	messages  []p2p.Message
}

func (r *recorder) handlers() p2p.Handlers {
	return p2p.Handlers{
		OnMessage: func(from peer.Peer, msg p2p.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		OnPeerConnected: func(p peer.Peer) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connected = append(r.connected, p)
		},
	}
}

func (r *recorder) waitConnected(t *testing.T) peer.Peer {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.connected) > 0 {
			p := r.connected[0]
			r.mu.Unlock()
			return p
		}
		r.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("Should see a peer connect before the deadline.")
	return peer.Peer{}
}

func (r *recorder) waitMessage(t *testing.T) p2p.Message {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.messages) > 0 {
			msg := r.messages[0]
			r.mu.Unlock()
			return msg
		}
		r.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("Should receive a message before the deadline.")
	return p2p.Message{}
}

func startTransport(t *testing.T, nodeID string, rec *recorder) *p2p.Transport {
	t.Helper()

	tr := p2p.New(p2p.Config{
		NodeID:     nodeID,
		ListenHost: "127.0.0.1:0",
	}, rec.handlers())

	if err := tr.Start(); err != nil {
		t.Fatalf("Should be able to start the transport: %s", err)
	}
	t.Cleanup(tr.Shutdown)

	return tr
}

// =============================================================================

func Test_HandshakeAndMessage(t *testing.T) {
	recA := &recorder{}
	recB := &recorder{}

	trA := startTransport(t, "node-a", recA)
	trB := startTransport(t, "node-b", recB)

	if err := trB.Dial(trA.Addr()); err != nil {
		t.Fatalf("Should be able to dial node A: %s", err)
	}

	pa := recA.waitConnected(t)
	if pa.NodeID != "node-b" {
		t.Fatalf("Should learn node B's id from the handshake, got %q.", pa.NodeID)
	}

	pb := recB.waitConnected(t)
	if pb.NodeID != "node-a" {
		t.Fatalf("Should learn node A's id from the handshake, got %q.", pb.NodeID)
	}

	msg, err := p2p.NewMessage(p2p.TypeChainRequest, nil, "node-b")
	if err != nil {
		t.Fatalf("Should be able to build a message: %s", err)
	}

	if err := trB.SendTo("node-a", msg); err != nil {
		t.Fatalf("Should be able to send to node A: %s", err)
	}

	got := recA.waitMessage(t)
	if got.Type != p2p.TypeChainRequest || got.Sender != "node-b" {
		t.Fatalf("Should deliver the frame intact, got type %s sender %s.", got.Type, got.Sender)
	}
}

func Test_DuplicateDialSuppressed(t *testing.T) {
	recA := &recorder{}
	recB := &recorder{}

	trA := startTransport(t, "node-a", recA)
	trB := startTransport(t, "node-b", recB)

	if err := trB.Dial(trA.Addr()); err != nil {
		t.Fatalf("Should be able to dial node A: %s", err)
	}
	recB.waitConnected(t)

	if err := trB.Dial(trA.Addr()); err != nil {
		t.Fatalf("Should silently suppress a duplicate dial, got %s.", err)
	}

	if trB.Table().Count() != 1 {
		t.Fatalf("Should hold a single connection, got %d.", trB.Table().Count())
	}
}

func Test_WalletConnection(t *testing.T) {
	recNode := &recorder{}
	trNode := startTransport(t, "node-a", recNode)

	recWallet := &recorder{}
	trWallet := p2p.New(p2p.Config{
		NodeID:    "wallet-1",
		Advertise: "localhost:0",
	}, recWallet.handlers())
	t.Cleanup(trWallet.Shutdown)

	if err := trWallet.Dial(trNode.Addr()); err != nil {
		t.Fatalf("Should be able to attach the wallet: %s", err)
	}

	p := recNode.waitConnected(t)
	if !p.IsWallet() {
		t.Fatalf("Should classify the sentinel handshake as a wallet.")
	}

	if trNode.Table().Count() != 0 {
		t.Fatalf("Should not count the wallet as a peer, got %d.", trNode.Table().Count())
	}

	// Gossip must skip wallets; a direct send must still reach them.
	msg, err := p2p.NewMessage(p2p.TypeBlock, nil, "node-a")
	if err != nil {
		t.Fatalf("Should be able to build a message: %s", err)
	}
	trNode.Broadcast(msg)

	direct, err := p2p.NewMessage(p2p.TypeChainResponse, nil, "node-a")
	if err != nil {
		t.Fatalf("Should be able to build a message: %s", err)
	}
	if err := trNode.SendTo("wallet-1", direct); err != nil {
		t.Fatalf("Should be able to send directly to the wallet: %s", err)
	}

	got := recWallet.waitMessage(t)
	if got.Type != p2p.TypeChainResponse {
		t.Fatalf("Should deliver only the direct send to the wallet, got %s.", got.Type)
	}
}
