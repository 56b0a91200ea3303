package database

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

// Transaction status values reported to wallets.
const (
	StatusConfirmed = "CONFIRMED"
	StatusPending   = "PENDING"
	StatusRejected  = "REJECTED"
)

// =============================================================================

// Tx is the transactional information between two parties. Sender and
// Recipient are PEM encoded public keys. A coinbase transaction has no sender
// and mints the block reward to the recipient.
type Tx struct {
	ID         string
	Sender     string
	Recipient  string
	Amount     float64
	Timestamp  int64
	Signature  string
	IsCoinbase bool
}

// wireTx is the JSON shape of a transaction. The sender field must encode to
// null for coinbase transactions, so the wire form carries it as a pointer.
type wireTx struct {
	ID         string  `json:"id"`
	Sender     *string `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
	Timestamp  int64   `json:"timestamp"`
	Signature  string  `json:"signature,omitempty"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// MarshalJSON implements the json.Marshaler interface.
func (tx Tx) MarshalJSON() ([]byte, error) {
	wtx := wireTx{
		ID:         tx.ID,
		Recipient:  tx.Recipient,
		Amount:     tx.Amount,
		Timestamp:  tx.Timestamp,
		Signature:  tx.Signature,
		IsCoinbase: tx.IsCoinbase,
	}
	if !tx.IsCoinbase {
		sender := tx.Sender
		wtx.Sender = &sender
	}

	return json.Marshal(wtx)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (tx *Tx) UnmarshalJSON(data []byte) error {
	var wtx wireTx
	if err := json.Unmarshal(data, &wtx); err != nil {
		return err
	}

	tx.ID = wtx.ID
	tx.Sender = ""
	if wtx.Sender != nil {
		tx.Sender = *wtx.Sender
	}
	tx.Recipient = wtx.Recipient
	tx.Amount = wtx.Amount
	tx.Timestamp = wtx.Timestamp
	tx.Signature = wtx.Signature
	tx.IsCoinbase = wtx.IsCoinbase

	return nil
}

// =============================================================================

// signTx is the canonical signed form of a transaction: the wire fields in
// fixed order with the signature excluded. Signing and verification must
// marshal the exact same bytes.
type signTx struct {
	ID         string  `json:"id"`
	Sender     *string `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
	Timestamp  int64   `json:"timestamp"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// canonical returns the value whose JSON encoding is signed and verified.
func (tx Tx) canonical() signTx {
	stx := signTx{
		ID:         tx.ID,
		Recipient:  tx.Recipient,
		Amount:     tx.Amount,
		Timestamp:  tx.Timestamp,
		IsCoinbase: tx.IsCoinbase,
	}
	if !tx.IsCoinbase {
		sender := tx.Sender
		stx.Sender = &sender
	}

	return stx
}

// =============================================================================

// NewTx constructs a transaction from one party to another. The transaction
// still needs to be signed before it can enter the network.
func NewTx(sender string, recipient string, amount float64) Tx {
	return Tx{
		ID:        randomID(),
		Sender:    signature.Normalize(sender),
		Recipient: signature.Normalize(recipient),
		Amount:    amount,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewCoinbaseTx constructs the reward transaction for a block at the
// specified index, minting to the miner's public key.
func NewCoinbaseTx(recipient string, blockIndex uint64) Tx {
	return Tx{
		ID:         randomID(),
		Recipient:  signature.Normalize(recipient),
		Amount:     BlockReward(blockIndex),
		Timestamp:  time.Now().UnixMilli(),
		IsCoinbase: true,
	}
}

// Sign produces a copy of the transaction carrying a detached signature over
// its canonical form.
func (tx Tx) Sign(privateKey *rsa.PrivateKey) (Tx, error) {
	sig, err := signature.Sign(tx.canonical(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Signature = sig
	return tx, nil
}

// VerifySignature checks the detached signature. Coinbase transactions are
// verified against the recipient's key, everything else against the sender's.
func (tx Tx) VerifySignature() error {
	if tx.Signature == "" {
		return errors.New("transaction is not signed")
	}

	key := tx.Sender
	if tx.IsCoinbase {
		key = tx.Recipient
	}

	return signature.Verify(tx.canonical(), tx.Signature, key)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	kind := "tx"
	if tx.IsCoinbase {
		kind = "coinbase"
	}

	id := tx.ID
	if len(id) > 8 {
		id = id[:8]
	}

	return fmt.Sprintf("%s[%s]:%g", kind, id, tx.Amount)
}

// =============================================================================

// randomID returns 256 bits of entropy hex encoded for use as a
// transaction id.
func randomID() string {
	id := make([]byte, 32)
	rand.Read(id)
	return hex.EncodeToString(id)
}
