package state

import (
	"context"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/p2p"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
)

// handlePeerConnected reacts to a completed handshake. New full nodes are
// announced to the rest of the network and asked for their chain. Attached
// wallets stay invisible to gossip.
func (s *State) handlePeerConnected(p peer.Peer) {
	if p.IsWallet() {
		s.evHandler("state: peer connected: wallet[%s] attached", p.NodeID)
		return
	}

	s.evHandler("state: peer connected: node[%s]: listening[%s]", p.NodeID, p.ListeningAddress)

	if !s.walletMode {
		discovery, err := p2p.NewMessage(p2p.TypePeerDiscovery, p2p.DiscoveryPayload{Peers: []peer.Peer{p}}, s.nodeID)
		if err == nil {
			s.transport.Broadcast(discovery)
		}
	}

	request, err := p2p.NewMessage(p2p.TypeChainRequest, nil, s.nodeID)
	if err != nil {
		return
	}
	if err := s.transport.SendTo(p.NodeID, request); err != nil {
		s.evHandler("state: peer connected: chain request to node[%s]: ERROR: %s", p.NodeID, err)
	}
}

// handlePeerDisconnected reacts to a torn down connection. The transport
// already removed the peer from the table.
func (s *State) handlePeerDisconnected(p peer.Peer) {
	s.evHandler("state: peer disconnected: node[%s]", p.NodeID)
}

// =============================================================================

// handleMessage is the gossip state machine. Invalid input from peers is
// logged and dropped; the wire is assumed adversarial.
func (s *State) handleMessage(from peer.Peer, msg p2p.Message) {
	switch msg.Type {
	case p2p.TypePeerDiscovery:
		s.handlePeerDiscovery(msg)

	case p2p.TypeChainRequest:
		s.handleChainRequest(from)

	case p2p.TypeChainResponse:
		s.handleChainResponse(msg)

	case p2p.TypeBlock:
		s.handleBlock(from, msg)

	case p2p.TypeTransaction:
		s.handleTransaction(from, msg)

	case p2p.TypeMempoolRequest:
		s.handleMempoolRequest(from)

	case p2p.TypeMempoolResponse:
		s.handleMempoolResponse(msg)

	default:
		s.evHandler("state: message: node[%s]: unknown type %s dropped", from.NodeID, msg.Type)
	}
}

// handlePeerDiscovery dials advertised peers we don't know yet. Wallet
// clients ignore discovery entirely; wallet sentinels and our own address
// are never dialed.
func (s *State) handlePeerDiscovery(msg p2p.Message) {
	if s.walletMode {
		return
	}

	var discovery p2p.DiscoveryPayload
	if err := msg.Decode(&discovery); err != nil {
		s.evHandler("state: discovery: malformed payload dropped: %s", err)
		return
	}

	for _, adv := range discovery.Peers {
		if adv.IsWallet() || adv.ListeningAddress == s.advertise {
			continue
		}

		// Dial marks the address known before connecting and unmarks
		// it on failure, so concurrent discoveries won't double dial.
		go func(address string) {
			if err := s.transport.Dial(address); err != nil {
				s.evHandler("state: discovery: dial %s: ERROR: %s", address, err)
			}
		}(adv.ListeningAddress)
	}
}

// handleChainRequest answers with our entire chain.
func (s *State) handleChainRequest(from peer.Peer) {
	response, err := p2p.NewMessage(p2p.TypeChainResponse, p2p.ChainResponsePayload{Chain: s.db.Chain()}, s.nodeID)
	if err != nil {
		return
	}

	if err := s.transport.SendTo(from.NodeID, response); err != nil {
		s.evHandler("state: chain request: reply to node[%s]: ERROR: %s", from.NodeID, err)
	}
}

// handleChainResponse adopts a received chain when it is strictly longer
// and fully valid. The mempool is purged of anything the new chain already
// confirmed.
func (s *State) handleChainResponse(msg p2p.Message) {
	defer s.signalChainSynced()

	var response p2p.ChainResponsePayload
	if err := msg.Decode(&response); err != nil {
		s.evHandler("state: chain response: malformed payload dropped: %s", err)
		return
	}

	if err := s.db.ReplaceChain(response.Chain); err != nil {
		s.evHandler("state: chain response: not adopted: %s", err)
		return
	}

	for _, block := range response.Chain {
		s.mempool.RemoveMany(block.Transactions)
	}

	s.evHandler("state: chain response: adopted chain: height[%d]", len(response.Chain))
}

// handleBlock validates a gossiped block as the new head and relays it
// onward, preempting any mining in flight.
func (s *State) handleBlock(from peer.Peer, msg p2p.Message) {
	var payload p2p.BlockPayload
	if err := msg.Decode(&payload); err != nil {
		s.evHandler("state: block: malformed payload dropped: %s", err)
		return
	}

	if err := s.ProcessPeerBlock(payload.Block, from.NodeID); err != nil {
		s.evHandler("state: block: blk[%d] from node[%s] dropped: %s", payload.Block.Index, from.NodeID, err)
	}
}

// handleTransaction admits a gossiped transaction and relays it onward.
// Anything the mempool refuses stops here.
func (s *State) handleTransaction(from peer.Peer, msg p2p.Message) {
	var payload p2p.TransactionPayload
	if err := msg.Decode(&payload); err != nil {
		s.evHandler("state: transaction: malformed payload dropped: %s", err)
		return
	}

	if err := s.mempool.Add(payload.Transaction); err != nil {
		s.evHandler("state: transaction: %s from node[%s] not admitted: %s", payload.Transaction, from.NodeID, err)
		return
	}

	s.evHandler("state: transaction: %s admitted: mempool[%d]", payload.Transaction, s.mempool.Count())

	relay, err := p2p.NewMessage(p2p.TypeTransaction, payload, s.nodeID)
	if err != nil {
		return
	}
	s.transport.BroadcastExcept(relay, from.NodeID)
}

// handleMempoolRequest answers with our pending transactions.
func (s *State) handleMempoolRequest(from peer.Peer) {
	response, err := p2p.NewMessage(p2p.TypeMempoolResponse, p2p.MempoolResponsePayload{Transactions: s.mempool.Copy()}, s.nodeID)
	if err != nil {
		return
	}

	if err := s.transport.SendTo(from.NodeID, response); err != nil {
		s.evHandler("state: mempool request: reply to node[%s]: ERROR: %s", from.NodeID, err)
	}
}

// handleMempoolResponse routes a peer's mempool to whoever is waiting on a
// QueryPeerMempools call.
func (s *State) handleMempoolResponse(msg p2p.Message) {
	var response p2p.MempoolResponsePayload
	if err := msg.Decode(&response); err != nil {
		s.evHandler("state: mempool response: malformed payload dropped: %s", err)
		return
	}

	s.waiterMu.Lock()
	defer s.waiterMu.Unlock()

	for _, ch := range s.waiters {
		select {
		case ch <- response.Transactions:
		default:
		}
	}
}

// =============================================================================

// SubmitTransaction admits a locally constructed transaction and gossips it
// to the network.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if err := s.mempool.Add(tx); err != nil {
		// A wallet client holds no chain funds knowledge of its own
		// until synced and still must forward the transaction.
		if !s.walletMode {
			return err
		}
		s.evHandler("state: submit: local admission skipped: %s", err)
	}

	msg, err := p2p.NewMessage(p2p.TypeTransaction, p2p.TransactionPayload{Transaction: tx}, s.nodeID)
	if err != nil {
		return err
	}

	s.transport.Broadcast(msg)
	s.evHandler("state: submit: %s broadcast", tx)

	return nil
}

// QueryPeerMempools asks every connected peer for its mempool and gathers
// the responses until each peer answered or the context expires.
func (s *State) QueryPeerMempools(ctx context.Context) []database.Tx {
	expected := s.transport.Table().Count()
	if expected == 0 {
		return nil
	}

	ch := make(chan []database.Tx, expected)

	s.waiterMu.Lock()
	s.waiters = append(s.waiters, ch)
	s.waiterMu.Unlock()

	defer func() {
		s.waiterMu.Lock()
		defer s.waiterMu.Unlock()
		for i, waiter := range s.waiters {
			if waiter == ch {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				break
			}
		}
	}()

	request, err := p2p.NewMessage(p2p.TypeMempoolRequest, nil, s.nodeID)
	if err != nil {
		return nil
	}
	s.transport.Broadcast(request)

	var trans []database.Tx
	for answered := 0; answered < expected; answered++ {
		select {
		case batch := <-ch:
			trans = append(trans, batch...)
		case <-ctx.Done():
			return trans
		}
	}

	return trans
}
