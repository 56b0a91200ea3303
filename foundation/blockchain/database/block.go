package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

// Block represents a group of transactions batched together with the proof
// of work that links it to the previous block.
type Block struct {
	Index        uint64  `json:"index"`
	PreviousHash string  `json:"previous_hash"`
	Timestamp    int64   `json:"timestamp"`
	Transactions []Tx    `json:"transactions"`
	Nonce        uint64  `json:"nonce"`
	Hash         string  `json:"hash"`
	Miner        string  `json:"miner"`
	Reward       float64 `json:"reward"`
}

// hashBlock is the canonical hashed form of a block: the wire fields in fixed
// order with the hash itself excluded.
type hashBlock struct {
	Index        uint64  `json:"index"`
	PreviousHash string  `json:"previous_hash"`
	Timestamp    int64   `json:"timestamp"`
	Transactions []Tx    `json:"transactions"`
	Nonce        uint64  `json:"nonce"`
	Miner        string  `json:"miner"`
	Reward       float64 `json:"reward"`
}

// ComputeHash returns the SHA-256 hash over the canonical form of the block.
func (b Block) ComputeHash() string {
	return signature.Hash(hashBlock{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		Nonce:        b.Nonce,
		Miner:        b.Miner,
		Reward:       b.Reward,
	})
}

// =============================================================================

// newCandidate assembles an unmined block on top of the specified tip.
func newCandidate(tip Block, trans []Tx, miner string, reward float64) Block {
	if trans == nil {
		trans = []Tx{}
	}

	return Block{
		Index:        tip.Index + 1,
		PreviousHash: tip.Hash,
		Timestamp:    time.Now().UnixMilli(),
		Transactions: trans,
		Nonce:        0,
		Miner:        signature.Normalize(miner),
		Reward:       reward,
	}
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered. The
// search checks for cancellation between every powBatch hashes so an
// accepted peer block can preempt the miner.
func (b *Block) performPOW(ctx context.Context, difficulty uint, ev func(v string, args ...any)) error {
	ev("database: performPOW: MINING: started: blk[%d]", b.Index)
	defer ev("database: performPOW: MINING: completed: blk[%d]", b.Index)

	const powBatch = 4096

	var attempts uint64
	for {
		if ctx.Err() != nil {
			ev("database: performPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		for range powBatch {
			attempts++

			hash := b.ComputeHash()
			if isHashSolved(difficulty, hash) {
				b.Hash = hash
				ev("database: performPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PreviousHash, hash, attempts)
				return nil
			}

			b.Nonce++
		}
	}
}

// isHashSolved checks the hash complies with the POW rules. The first
// difficulty hex digits must be zero.
func isHashSolved(difficulty uint, hash string) bool {
	if len(hash) != 64 || int(difficulty) > len(hash) {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}

// =============================================================================

// ValidateNext takes a block and validates it to be the next block after the
// specified previous block.
func (b Block) ValidateNext(prevBlock Block, difficulty uint) error {
	nextIndex := prevBlock.Index + 1
	if b.Index != nextIndex {
		return fmt.Errorf("block %d is not the next block, exp %d", b.Index, nextIndex)
	}

	if b.PreviousHash != prevBlock.Hash {
		return fmt.Errorf("block %d parent hash doesn't match our known parent, got %s, exp %s", b.Index, b.PreviousHash, prevBlock.Hash)
	}

	if hash := b.ComputeHash(); hash != b.Hash {
		return fmt.Errorf("block %d hash doesn't match its contents, got %s, exp %s", b.Index, b.Hash, hash)
	}

	if !isHashSolved(difficulty, b.Hash) {
		return fmt.Errorf("block %d hash %s doesn't meet difficulty %d", b.Index, b.Hash, difficulty)
	}

	return b.validateTransactions()
}

// validateTransactions checks the block carries exactly one coinbase as its
// first transaction and that every transaction is well formed and signed.
// Balance checks are chain level concerns handled by the Database.
func (b Block) validateTransactions() error {
	if len(b.Transactions) == 0 || !b.Transactions[0].IsCoinbase {
		return fmt.Errorf("block %d does not begin with a coinbase transaction", b.Index)
	}

	for i, tx := range b.Transactions {
		if i > 0 && tx.IsCoinbase {
			return fmt.Errorf("block %d holds more than one coinbase transaction", b.Index)
		}

		if tx.IsCoinbase {
			if err := ValidateCoinbase(tx, b.Index); err != nil {
				return fmt.Errorf("block %d: %w", b.Index, err)
			}
			continue
		}

		if err := validateTxShape(tx); err != nil {
			return fmt.Errorf("block %d: %w", b.Index, err)
		}
	}

	return nil
}

// =============================================================================

// ValidateCoinbase checks a coinbase transaction minting the reward for a
// block at the specified index.
func ValidateCoinbase(tx Tx, blockIndex uint64) error {
	if !tx.IsCoinbase {
		return fmt.Errorf("transaction %s is not a coinbase", tx)
	}

	if tx.Sender != "" {
		return fmt.Errorf("coinbase %s carries a sender", tx)
	}

	if reward := BlockReward(blockIndex); tx.Amount != reward {
		return fmt.Errorf("coinbase %s amount %g doesn't match reward %g for block %d", tx, tx.Amount, reward, blockIndex)
	}

	if err := tx.VerifySignature(); err != nil {
		return fmt.Errorf("coinbase %s: %w", tx, err)
	}

	return nil
}

// validateTxShape checks the stateless rules for an ordinary transaction:
// present sender and recipient, positive amount, valid signature.
func validateTxShape(tx Tx) error {
	if tx.IsCoinbase {
		return fmt.Errorf("transaction %s is a coinbase", tx)
	}

	if tx.Sender == "" {
		return fmt.Errorf("transaction %s has no sender", tx)
	}

	if tx.Recipient == "" {
		return fmt.Errorf("transaction %s has no recipient", tx)
	}

	if tx.Amount <= 0 {
		return fmt.Errorf("transaction %s amount %g is not positive", tx, tx.Amount)
	}

	if err := tx.VerifySignature(); err != nil {
		return fmt.Errorf("transaction %s: %w", tx, err)
	}

	return nil
}
