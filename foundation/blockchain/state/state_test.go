package state_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/wallet"
)

const testDifficulty = 1

// freeAddr reserves an ephemeral port so a node can both bind and
// advertise the same address.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Should be able to reserve a port: %s", err)
	}
	addr := l.Addr().String()
	l.Close()

	return addr
}

func newNode(t *testing.T, nodeID string, miner state.SigningAuthority, knownPeers ...string) *state.State {
	t.Helper()

	addr := freeAddr(t)

	st := state.New(state.Config{
		NodeID:     nodeID,
		ListenHost: addr,
		Advertise:  addr,
		Difficulty: testDifficulty,
		KnownPeers: knownPeers,
		Miner:      miner,
	})

	if err := st.Start(); err != nil {
		t.Fatalf("Should be able to start node %s: %s", nodeID, err)
	}
	t.Cleanup(st.Shutdown)

	return st
}

func newWallet(t *testing.T) *wallet.Wallet {
	t.Helper()

	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	return wallet.New(idn)
}

func waitFor(t *testing.T, what string, check func() bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("Should observe %s before the deadline.", what)
}

func mine(t *testing.T, st *state.State) database.Block {
	t.Helper()

	block, err := st.MineNewBlock(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	return block
}

// =============================================================================

func Test_GenesisOnBoot(t *testing.T) {
	nodeA := newNode(t, "node-a", nil)

	chain := nodeA.RetrieveChain()
	if len(chain) != 1 {
		t.Fatalf("Should boot with just the genesis block, got %d.", len(chain))
	}

	if chain[0].Hash != database.Genesis(testDifficulty).Hash {
		t.Fatalf("Should boot with the canonical genesis block.")
	}
}

func Test_ChainConvergence(t *testing.T) {
	minerW := newWallet(t)

	nodeA := newNode(t, "node-a", minerW)
	mine(t, nodeA)
	mine(t, nodeA)

	nodeB := newNode(t, "node-b", nil, nodeA.ListeningAddress())

	waitFor(t, "node B adopting node A's chain", func() bool {
		return len(nodeB.RetrieveChain()) == 3
	})

	chainA := nodeA.RetrieveChain()
	chainB := nodeB.RetrieveChain()
	for i := range chainA {
		if chainA[i].Hash != chainB[i].Hash {
			t.Fatalf("Should hold identical chains, differ at block %d.", i)
		}
	}

	if got := nodeB.QueryAccountBalance(minerW.Address()).Confirmed; got != 100 {
		t.Fatalf("Should derive the miner's balance from the adopted chain, got %g.", got)
	}

	waitFor(t, "the peer tables filling", func() bool {
		return len(nodeA.RetrieveKnownPeers()) == 1 && len(nodeB.RetrieveKnownPeers()) == 1
	})
}

func Test_BlockPropagation(t *testing.T) {
	minerW := newWallet(t)

	nodeA := newNode(t, "node-a", minerW)
	nodeB := newNode(t, "node-b", nil, nodeA.ListeningAddress())

	waitFor(t, "the nodes connecting", func() bool {
		return len(nodeA.RetrieveKnownPeers()) == 1
	})

	block := mine(t, nodeA)

	waitFor(t, "node B accepting the gossiped block", func() bool {
		return nodeB.RetrieveLatestBlock().Hash == block.Hash
	})
}

func Test_TransactionGossip(t *testing.T) {
	minerW := newWallet(t)
	bob := newWallet(t)

	nodeA := newNode(t, "node-a", minerW)
	mine(t, nodeA)

	nodeB := newNode(t, "node-b", nil, nodeA.ListeningAddress())

	waitFor(t, "node B syncing the chain", func() bool {
		return len(nodeB.RetrieveChain()) == 2
	})

	tx, err := minerW.SubmitTransaction(nodeA, bob.Address(), 10)
	if err != nil {
		t.Fatalf("Should be able to submit a transaction: %s", err)
	}

	waitFor(t, "the transaction reaching node B's mempool", func() bool {
		return nodeB.QueryMempoolLength() == 1
	})

	pool := nodeB.RetrieveMempool()
	if pool[0].ID != tx.ID {
		t.Fatalf("Should gossip the submitted transaction.")
	}

	// The next mined block takes the transfer out of both mempools.
	block := mine(t, nodeA)
	if len(block.Transactions) != 2 {
		t.Fatalf("Should mine the coinbase plus the transfer, got %d transactions.", len(block.Transactions))
	}

	waitFor(t, "both mempools draining", func() bool {
		return nodeA.QueryMempoolLength() == 0 && nodeB.QueryMempoolLength() == 0
	})

	waitFor(t, "the balances settling on node B", func() bool {
		return nodeB.QueryAccountBalance(bob.Address()).Confirmed == 10
	})
}

func Test_WalletAttachment(t *testing.T) {
	minerW := newWallet(t)
	other := newWallet(t)

	nodeA := newNode(t, "node-a", minerW)
	mine(t, nodeA)

	addr := nodeA.ListeningAddress()

	client := state.New(state.Config{
		NodeID:     "wallet-client",
		Advertise:  peer.WalletSentinel,
		Difficulty: testDifficulty,
		KnownPeers: []string{addr},
		WalletMode: true,
	})
	if err := client.Start(); err != nil {
		t.Fatalf("Should be able to attach the wallet client: %s", err)
	}
	t.Cleanup(client.Shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.WaitForChainSync(ctx); err != nil {
		t.Fatalf("Should sync the chain within the timeout: %s", err)
	}

	if got := client.QueryAccountBalance(minerW.Address()).Confirmed; got != 50 {
		t.Fatalf("Should read the miner's balance through the wallet client, got %g.", got)
	}

	if len(nodeA.RetrieveKnownPeers()) != 0 {
		t.Fatalf("Should not list the wallet as a peer.")
	}

	// A transfer from an unfunded identity must die at the node's mempool.
	tx, err := other.CreateTransaction(minerW.Address(), 10)
	if err != nil {
		t.Fatalf("Should be able to construct the transaction: %s", err)
	}
	if err := client.SubmitTransaction(tx); err != nil {
		t.Fatalf("Should still forward the transaction from a wallet client: %s", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := nodeA.QueryMempoolLength(); got != 0 {
		t.Fatalf("Should reject the unfunded transfer at the node, mempool %d.", got)
	}

	// A funded transfer from the mining wallet is accepted.
	if _, err := minerW.SubmitTransaction(client, other.Address(), 30); err != nil {
		t.Fatalf("Should be able to submit through the wallet client: %s", err)
	}

	waitFor(t, "the node admitting the funded transfer", func() bool {
		return nodeA.QueryMempoolLength() == 1
	})
}

func Test_AdversarialBlockRejected(t *testing.T) {
	minerW := newWallet(t)
	nodeA := newNode(t, "node-a", minerW)

	tip := nodeA.RetrieveLatestBlock()

	bad := database.Block{
		Index:        tip.Index + 1,
		PreviousHash: tip.Hash,
		Timestamp:    time.Now().UnixMilli(),
		Transactions: []database.Tx{},
		Miner:        minerW.Address(),
	}
	bad.Hash = strings.Repeat("f", 64)

	if err := nodeA.ProcessPeerBlock(bad, "node-evil"); err == nil {
		t.Fatalf("Should reject a block that fails the difficulty target.")
	}

	if nodeA.RetrieveLatestBlock().Hash != tip.Hash {
		t.Fatalf("Should leave the chain unchanged after the rejection.")
	}

	// Mining continues on the same tip.
	block := mine(t, nodeA)
	if block.PreviousHash != tip.Hash {
		t.Fatalf("Should keep mining on the original tip.")
	}
}
