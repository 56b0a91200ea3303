// Package mempool maintains the set of unconfirmed transactions waiting for
// inclusion in a block. Selection is oldest first: with no fee market there
// is nothing to bid with, so arrival time is the only fair ordering.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

const (
	// MaxTransactions is the hard cap on pool entries.
	MaxTransactions = 5000

	// TransactionTimeout is how long an entry may wait before it is
	// considered stale.
	TransactionTimeout = time.Hour
)

// Admission errors callers can test against.
var (
	ErrFull      = errors.New("mempool is full")
	ErrDuplicate = errors.New("transaction already in mempool")
	ErrCoinbase  = errors.New("coinbase transactions are not accepted")
	ErrExpired   = errors.New("transaction is too old")
)

// Ledger is the chain level view the mempool needs for admission.
type Ledger interface {
	ValidateTransaction(tx database.Tx) error
	AccountBalance(address string) database.Balance
}

// =============================================================================

// Mempool represents a cache of transactions keyed by id.
type Mempool struct {
	mu     sync.RWMutex
	pool   map[string]database.Tx
	ledger Ledger
}

// New constructs a mempool validating admissions against the specified ledger.
func New(ledger Ledger) *Mempool {
	return &Mempool{
		pool:   make(map[string]database.Tx),
		ledger: ledger,
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the pool holds the transaction id.
func (mp *Mempool) Contains(txID string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[txID]
	return exists
}

// =============================================================================

// Add admits a transaction to the pool. A transaction is refused when the
// pool is full, the id is already present, it is a coinbase, it is older
// than the timeout, the chain rejects it, or the sender's queued spending
// plus this amount would exceed their confirmed balance.
func (mp *Mempool) Add(tx database.Tx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.pool) >= MaxTransactions {
		return ErrFull
	}

	if _, exists := mp.pool[tx.ID]; exists {
		return ErrDuplicate
	}

	if tx.IsCoinbase {
		return ErrCoinbase
	}

	if time.Now().UnixMilli()-tx.Timestamp > TransactionTimeout.Milliseconds() {
		return ErrExpired
	}

	if err := mp.ledger.ValidateTransaction(tx); err != nil {
		return err
	}

	// The pending debit check only sums what the sender is already
	// spending, never what they may receive. Queued inbound credits don't
	// loosen admission.
	confirmed := mp.ledger.AccountBalance(tx.Sender).Confirmed
	if mp.pendingDebits(tx.Sender)+tx.Amount > confirmed {
		return fmt.Errorf("transaction %s: pending spending exceeds confirmed balance %g", tx, confirmed)
	}

	mp.pool[tx.ID] = tx

	return nil
}

// PickOldest returns up to limit transactions ordered by arrival timestamp
// ascending. A limit of -1 returns everything.
func (mp *Mempool) PickOldest(limit int) []database.Tx {
	mp.mu.RLock()
	trans := make([]database.Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		trans = append(trans, tx)
	}
	mp.mu.RUnlock()

	sort.SliceStable(trans, func(i, j int) bool {
		return trans[i].Timestamp < trans[j].Timestamp
	})

	if limit >= 0 && len(trans) > limit {
		trans = trans[:limit]
	}

	return trans
}

// Copy returns every transaction in the pool, oldest first.
func (mp *Mempool) Copy() []database.Tx {
	return mp.PickOldest(-1)
}

// Remove clears a transaction from the pool.
func (mp *Mempool) Remove(txID string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, txID)
}

// RemoveMany clears every transaction in the list, typically after block
// inclusion.
func (mp *Mempool) RemoveMany(trans []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range trans {
		delete(mp.pool, tx.ID)
	}
}

// Cleanup drops entries older than the timeout and returns how many
// were dropped.
func (mp *Mempool) Cleanup() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	cutoff := time.Now().UnixMilli() - TransactionTimeout.Milliseconds()

	var dropped int
	for id, tx := range mp.pool {
		if tx.Timestamp < cutoff {
			delete(mp.pool, id)
			dropped++
		}
	}

	return dropped
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// =============================================================================

// pendingDebits sums the amounts already queued from the sender. Callers
// must hold the lock.
func (mp *Mempool) pendingDebits(sender string) float64 {
	var total float64
	for _, tx := range mp.pool {
		if signature.SameAddress(tx.Sender, sender) {
			total += tx.Amount
		}
	}

	return total
}
