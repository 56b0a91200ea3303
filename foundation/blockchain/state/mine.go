package state

import (
	"context"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/p2p"
)

// MineNewBlock builds a candidate from the mempool, performs the proof of
// work and, if the chain hasn't moved underneath it, appends and gossips
// the block.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	if s.miner == nil {
		return database.Block{}, ErrNoMiner
	}

	s.evHandler("state: MineNewBlock: MINING: build candidate")

	index := s.db.LatestBlock().Index + 1

	coinbase, err := s.miner.SignTransaction(database.NewCoinbaseTx(s.miner.Address(), index))
	if err != nil {
		return database.Block{}, err
	}

	pending := s.mempool.PickOldest(database.MaxTransactionsPerBlock - 1)
	trans := append([]database.Tx{coinbase}, pending...)

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(trans))

	block, err := s.db.MineBlock(ctx, trans, s.miner.Address(), coinbase.Amount)
	if err != nil {
		return database.Block{}, err
	}

	// One more check we were not cancelled before touching state.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	// Append runs the same validation a received block gets. If a peer
	// block landed while we were mining, this fails and the worker
	// restarts against the new tip.
	if err := s.db.AppendBlock(block); err != nil {
		return database.Block{}, err
	}

	s.mempool.RemoveMany(pending)

	msg, err := p2p.NewMessage(p2p.TypeBlock, p2p.BlockPayload{Block: block}, s.nodeID)
	if err != nil {
		return database.Block{}, err
	}
	s.transport.Broadcast(msg)

	s.evHandler("state: MineNewBlock: MINING: blk[%d] appended and broadcast", block.Index)

	return block, nil
}

// ProcessPeerBlock takes a block received from a peer, validates it as the
// new head and, if it passes, appends it, purges its transactions from the
// mempool and relays it to everyone but the sender. Any mining in flight is
// cancelled first and restarted against the new tip.
func (s *State) ProcessPeerBlock(block database.Block, fromNodeID string) error {

	// If a mining operation is running it needs to stop before the chain
	// moves. The worker won't start the next operation until done is
	// called, which lets this function finish its state changes first.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: ProcessPeerBlock: signal mining to restart")
			done()
			s.Worker.SignalStartMining()
		}()
	}

	if err := s.db.AppendBlock(block); err != nil {
		return err
	}

	s.mempool.RemoveMany(block.Transactions)

	relay, err := p2p.NewMessage(p2p.TypeBlock, p2p.BlockPayload{Block: block}, s.nodeID)
	if err == nil {
		s.transport.BroadcastExcept(relay, fromNodeID)
	}

	s.evHandler("state: ProcessPeerBlock: blk[%d] from node[%s] accepted", block.Index, fromNodeID)

	return nil
}
