// Package state is the core API for the node and implements the gossip
// rules that keep chains convergent across peers. It owns the blockchain
// database, the mempool and the transport; workers and handlers drive it.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/mempool"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/p2p"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and messages.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// SigningAuthority provides the identity a miner mints rewards to. The
// state never sees private key material, only signed transactions.
type SigningAuthority interface {
	Address() string
	SignTransaction(tx database.Tx) (database.Tx, error)
}

// ErrNoMiner is returned when a mining operation runs on a node without a
// mining identity attached.
var ErrNoMiner = errors.New("no mining identity attached")

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	NodeID     string
	ListenHost string
	Advertise  string
	Difficulty uint
	KnownPeers []string
	WalletMode bool
	Miner      SigningAuthority
	EvHandler  EventHandler
}

// State manages the blockchain node.
type State struct {
	nodeID     string
	advertise  string
	walletMode bool
	knownPeers []string
	miner      SigningAuthority
	evHandler  EventHandler

	db        *database.Database
	mempool   *mempool.Mempool
	transport *p2p.Transport

	syncOnce    sync.Once
	chainSynced chan struct{}

	waiterMu sync.Mutex
	waiters  []chan []database.Tx

	// The Worker is not set here. The call to worker.Run will assign
	// itself and start the mining loop for the node.
	Worker Worker
}

// New constructs the state for managing the node. Start must be called to
// open the transport and reach out to the known peers.
func New(cfg Config) *State {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	difficulty := cfg.Difficulty
	if difficulty == 0 {
		difficulty = database.InitialDifficulty
	}

	db := database.New(difficulty, database.EventHandler(ev))

	s := State{
		nodeID:      cfg.NodeID,
		advertise:   cfg.Advertise,
		walletMode:  cfg.WalletMode,
		knownPeers:  cfg.KnownPeers,
		miner:       cfg.Miner,
		evHandler:   ev,
		db:          db,
		mempool:     mempool.New(db),
		chainSynced: make(chan struct{}),
	}

	s.transport = p2p.New(
		p2p.Config{
			NodeID:     cfg.NodeID,
			ListenHost: cfg.ListenHost,
			Advertise:  cfg.Advertise,
			EvHandler:  p2p.EventHandler(ev),
		},
		p2p.Handlers{
			OnMessage:          s.handleMessage,
			OnPeerConnected:    s.handlePeerConnected,
			OnPeerDisconnected: s.handlePeerDisconnected,
		},
	)

	return &s
}

// Start opens the listening endpoint unless running as a wallet client, then
// dials the configured bootstrap peers.
func (s *State) Start() error {
	if !s.walletMode {
		if err := s.transport.Start(); err != nil {
			return err
		}
	}

	for _, address := range s.knownPeers {
		if err := s.transport.Dial(address); err != nil {
			s.evHandler("state: start: dial %s: ERROR: %s", address, err)
		}
	}

	return nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.transport.Shutdown()
}

// =============================================================================

// NodeID returns the node's self declared identifier.
func (s *State) NodeID() string {
	return s.nodeID
}

// IsMiner reports whether a mining identity is attached.
func (s *State) IsMiner() bool {
	return s.miner != nil
}

// WaitForChainSync blocks until the first chain response has been processed
// or the context expires. Wallet commands use this before reading balances.
func (s *State) WaitForChainSync(ctx context.Context) error {
	select {
	case <-s.chainSynced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signalChainSynced marks the first completed chain exchange.
func (s *State) signalChainSynced() {
	s.syncOnce.Do(func() {
		close(s.chainSynced)
	})
}
