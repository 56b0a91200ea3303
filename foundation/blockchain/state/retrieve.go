package state

import (
	"context"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
)

// ListeningAddress returns the address this node advertises to peers.
func (s *State) ListeningAddress() string {
	return s.advertise
}

// RetrieveGenesis returns a copy of the genesis block.
func (s *State) RetrieveGenesis() database.Block {
	return s.db.GenesisBlock()
}

// RetrieveLatestBlock returns the current tip of the chain.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a copy of the full block sequence.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Chain()
}

// RetrieveMempool returns the pending transactions, oldest first.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.Copy()
}

// RetrieveKnownPeers returns the connected full nodes.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.transport.Table().Copy()
}

// QueryMempoolLength returns the current number of pending transactions.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryAccountBalance returns the derived balance for one address.
func (s *State) QueryAccountBalance(address string) database.Balance {
	return s.db.AccountBalance(address)
}

// QueryBalances returns the balances of every known address.
func (s *State) QueryBalances() map[string]database.Balance {
	return s.db.CopyBalances()
}

// QueryTransactionHistory returns every chain transaction the address took
// part in.
func (s *State) QueryTransactionHistory(address string) []database.Tx {
	return s.db.TransactionHistory(address)
}

// QueryTransactionStatus reports the lifecycle state of a transaction:
// confirmed on the chain, pending in our or any peer's mempool, or rejected.
func (s *State) QueryTransactionStatus(ctx context.Context, txID string) string {
	if _, exists := s.db.TransactionConfirmation(txID); exists {
		return database.StatusConfirmed
	}

	if s.mempool.Contains(txID) {
		return database.StatusPending
	}

	for _, tx := range s.QueryPeerMempools(ctx) {
		if tx.ID == txID {
			return database.StatusPending
		}
	}

	return database.StatusRejected
}

// QueryTransactionConfirmation reports the inclusion depth for a
// transaction on the chain.
func (s *State) QueryTransactionConfirmation(txID string) (database.Confirmation, bool) {
	return s.db.TransactionConfirmation(txID)
}

// CleanupMempool drops pending transactions older than the timeout.
func (s *State) CleanupMempool() int {
	return s.mempool.Cleanup()
}

// DialPeer opens a connection to the specified listening address.
func (s *State) DialPeer(address string) error {
	return s.transport.Dial(address)
}
