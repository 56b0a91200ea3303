// Package database maintains the blockchain: the authoritative block
// sequence plus the derived account balance and transaction confirmation
// indices. The sequence is the source of truth; the indices are caches
// rebuilt whenever the sequence changes wholesale.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// ErrNotLonger is returned from ReplaceChain when the replacement chain
// isn't strictly longer than the one we hold.
var ErrNotLonger = errors.New("replacement chain is not longer")

// ErrBadGenesis is returned when a received chain doesn't start from our
// genesis block.
var ErrBadGenesis = errors.New("chain does not start from the canonical genesis")

// =============================================================================

// Database manages the block sequence and its derived indices.
type Database struct {
	mu sync.RWMutex

	difficulty uint
	chain      []Block
	balances   map[string]float64
	heights    map[string]uint64

	evHandler EventHandler
}

// New constructs a Database holding just the genesis block for the
// specified difficulty.
func New(difficulty uint, evHandler EventHandler) *Database {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		difficulty: difficulty,
		chain:      []Block{Genesis(difficulty)},
		balances:   make(map[string]float64),
		heights:    make(map[string]uint64),
		evHandler:  ev,
	}

	return &db
}

// Difficulty returns the fixed difficulty the chain was constructed with.
func (db *Database) Difficulty() uint {
	return db.difficulty
}

// Height returns the number of blocks in the chain.
func (db *Database) Height() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.chain)
}

// LatestBlock returns the current tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.chain[len(db.chain)-1]
}

// GenesisBlock returns the block at index 0.
func (db *Database) GenesisBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.chain[0]
}

// Chain returns a copy of the full block sequence.
func (db *Database) Chain() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	chain := make([]Block, len(db.chain))
	copy(chain, db.chain)
	return chain
}

// =============================================================================

// CreateBlock assembles a candidate on the current tip, mines it and appends
// it. The tip is captured before mining and not locked during it, so a block
// accepted from a peer mid-mine makes the final append fail instead of
// forking the chain.
func (db *Database) CreateBlock(ctx context.Context, trans []Tx, miner string, reward float64) (Block, error) {
	block, err := db.MineBlock(ctx, trans, miner, reward)
	if err != nil {
		return Block{}, err
	}

	if err := db.AppendBlock(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// MineBlock assembles and mines a candidate block without appending it.
func (db *Database) MineBlock(ctx context.Context, trans []Tx, miner string, reward float64) (Block, error) {
	tip := db.LatestBlock()

	block := newCandidate(tip, trans, miner, reward)
	if err := block.performPOW(ctx, db.difficulty, db.evHandler); err != nil {
		return Block{}, err
	}

	return block, nil
}

// AppendBlock validates the block as the new head and commits it along with
// the derived index updates.
func (db *Database) AppendBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tip := db.chain[len(db.chain)-1]
	if err := block.ValidateNext(tip, db.difficulty); err != nil {
		return err
	}

	scratch := copyBalances(db.balances)
	if err := applyBlock(scratch, block); err != nil {
		return err
	}

	db.chain = append(db.chain, block)
	db.balances = scratch
	for _, tx := range block.Transactions {
		db.heights[tx.ID] = block.Index
	}

	db.evHandler("database: AppendBlock: blk[%d]: hash[%s]: txs[%d]", block.Index, block.Hash, len(block.Transactions))

	return nil
}

// =============================================================================

// ReplaceChain swaps the local chain for the received one when the received
// chain is strictly longer and fully valid. Nothing is committed unless the
// whole replacement validates.
func (db *Database) ReplaceChain(newChain []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(newChain) <= len(db.chain) {
		return ErrNotLonger
	}

	balances, heights, err := replay(newChain, db.difficulty)
	if err != nil {
		return err
	}

	chain := make([]Block, len(newChain))
	copy(chain, newChain)

	db.chain = chain
	db.balances = balances
	db.heights = heights

	db.evHandler("database: ReplaceChain: adopted chain: height[%d]: tip[%s]", len(chain), chain[len(chain)-1].Hash)

	return nil
}

// Validate walks the whole chain checking linkage, proof of work, coinbase
// and transaction rules. A nil error means every block holds up.
func (db *Database) Validate() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, _, err := replay(db.chain, db.difficulty)
	return err
}

// =============================================================================

// ValidateTransaction checks a transaction against the current chain state.
// Coinbase transactions are validated against the next block height.
func (db *Database) ValidateTransaction(tx Tx) error {
	if tx.IsCoinbase {
		return ValidateCoinbase(tx, db.LatestBlock().Index+1)
	}

	if err := validateTxShape(tx); err != nil {
		return err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	sender := signature.Normalize(tx.Sender)
	if db.balances[sender] < tx.Amount {
		return fmt.Errorf("transaction %s: insufficient funds, have %g, need %g", tx, db.balances[sender], tx.Amount)
	}

	return nil
}

// AccountBalance returns the derived balance for the address. Confirmed is
// the net over the whole chain; Pending is the net over blocks that haven't
// reached the required confirmation depth yet.
func (db *Database) AccountBalance(address string) Balance {
	db.mu.RLock()
	defer db.mu.RUnlock()

	address = signature.Normalize(address)

	return Balance{
		Confirmed:   db.balances[address],
		Pending:     db.pendingLocked(address),
		LastUpdated: time.Now().UnixMilli(),
	}
}

// CopyBalances returns the confirmed balances of every known address.
func (db *Database) CopyBalances() map[string]Balance {
	db.mu.RLock()
	defer db.mu.RUnlock()

	now := time.Now().UnixMilli()
	balances := make(map[string]Balance, len(db.balances))
	for address, confirmed := range db.balances {
		balances[address] = Balance{
			Confirmed:   confirmed,
			Pending:     db.pendingLocked(address),
			LastUpdated: now,
		}
	}

	return balances
}

// TransactionHistory returns every chain transaction the address took part
// in, in chain order.
func (db *Database) TransactionHistory(address string) []Tx {
	db.mu.RLock()
	defer db.mu.RUnlock()

	address = signature.Normalize(address)

	var history []Tx
	for _, block := range db.chain {
		for _, tx := range block.Transactions {
			if signature.SameAddress(tx.Sender, address) || signature.SameAddress(tx.Recipient, address) {
				history = append(history, tx)
			}
		}
	}

	return history
}

// TransactionConfirmation reports the inclusion state of a transaction by id.
func (db *Database) TransactionConfirmation(txID string) (Confirmation, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	height, exists := db.heights[txID]
	if !exists {
		return Confirmation{}, false
	}

	tip := db.chain[len(db.chain)-1].Index
	count := tip - height + 1

	status := StatusPending
	if count >= RequiredConfirmations {
		status = StatusConfirmed
	}

	return Confirmation{
		BlockHeight:   height,
		Confirmations: count,
		Status:        status,
	}, true
}

// =============================================================================

// pendingLocked sums the net movement for an address over blocks shallower
// than the required confirmation depth. Callers must hold at least a
// read lock.
func (db *Database) pendingLocked(address string) float64 {
	tip := db.chain[len(db.chain)-1].Index

	start := uint64(1)
	if tip >= RequiredConfirmations {
		start = tip - RequiredConfirmations + 2
	}

	var pending float64
	for i := start; i <= tip; i++ {
		for _, tx := range db.chain[i].Transactions {
			if signature.SameAddress(tx.Recipient, address) {
				pending += tx.Amount
			}
			if !tx.IsCoinbase && signature.SameAddress(tx.Sender, address) {
				pending -= tx.Amount
			}
		}
	}

	return pending
}

// replay validates a full chain from genesis and produces the derived
// indices that a successful adoption commits. The error names the offending
// block height.
func replay(chain []Block, difficulty uint) (map[string]float64, map[string]uint64, error) {
	if len(chain) == 0 {
		return nil, nil, ErrBadGenesis
	}

	gen := Genesis(difficulty)
	first := chain[0]
	if first.Hash != gen.Hash || first.ComputeHash() != first.Hash {
		return nil, nil, ErrBadGenesis
	}

	balances := make(map[string]float64)
	heights := make(map[string]uint64)

	for i := 1; i < len(chain); i++ {
		block := chain[i]

		if err := block.ValidateNext(chain[i-1], difficulty); err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", i, err)
		}

		if err := applyBlock(balances, block); err != nil {
			return nil, nil, err
		}

		for _, tx := range block.Transactions {
			heights[tx.ID] = block.Index
		}
	}

	return balances, heights, nil
}

// applyBlock moves the block's value through the scratch balance map,
// refusing any transaction its sender can't cover. The coinbase is credited
// after the block's transfers, so a block's reward can't fund a spend in the
// same block.
func applyBlock(scratch map[string]float64, block Block) error {
	var minted []Tx
	for _, tx := range block.Transactions {
		recipient := signature.Normalize(tx.Recipient)

		if tx.IsCoinbase {
			minted = append(minted, tx)
			continue
		}

		sender := signature.Normalize(tx.Sender)
		if scratch[sender] < tx.Amount {
			return fmt.Errorf("block %d: transaction %s: insufficient funds, have %g, need %g", block.Index, tx, scratch[sender], tx.Amount)
		}

		scratch[sender] -= tx.Amount
		scratch[recipient] += tx.Amount
	}

	for _, tx := range minted {
		scratch[signature.Normalize(tx.Recipient)] += tx.Amount
	}

	return nil
}

// copyBalances duplicates the confirmed balance map.
func copyBalances(balances map[string]float64) map[string]float64 {
	scratch := make(map[string]float64, len(balances))
	for address, amount := range balances {
		scratch[address] = amount
	}
	return scratch
}
