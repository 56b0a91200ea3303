// Package wallet turns an identity into a signing authority: it constructs
// and signs transactions and drives a node's state API to submit them and
// follow their fate. The wallet consults nothing about the network; the
// state is handed in by the caller.
package wallet

import (
	"context"
	"fmt"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
)

// Wallet wraps one identity for transacting on the chain.
type Wallet struct {
	identity identity.Identity
}

// New constructs a wallet around the specified identity.
func New(idn identity.Identity) *Wallet {
	return &Wallet{identity: idn}
}

// Identity returns the wrapped identity.
func (w *Wallet) Identity() identity.Identity {
	return w.identity
}

// Address returns the normalized public key the chain knows this wallet by.
func (w *Wallet) Address() string {
	return w.identity.Address()
}

// SignTransaction signs any transaction with the wallet's private key. This
// is what miners use to sign their coinbase.
func (w *Wallet) SignTransaction(tx database.Tx) (database.Tx, error) {
	privateKey, err := w.identity.Private()
	if err != nil {
		return database.Tx{}, err
	}

	return tx.Sign(privateKey)
}

// CreateTransaction constructs a signed transfer from this wallet to the
// specified recipient.
func (w *Wallet) CreateTransaction(recipient string, amount float64) (database.Tx, error) {
	if amount < database.MinTransaction {
		return database.Tx{}, fmt.Errorf("amount %g is below the minimum transaction of %g", amount, database.MinTransaction)
	}

	if recipient == "" {
		return database.Tx{}, fmt.Errorf("no recipient specified")
	}

	tx := database.NewTx(w.identity.PublicKey, recipient, amount)

	signed, err := w.SignTransaction(tx)
	if err != nil {
		return database.Tx{}, err
	}

	w.identity.Touch()

	return signed, nil
}

// SubmitTransaction constructs, signs and gossips a transfer through the
// specified node state.
func (w *Wallet) SubmitTransaction(st *state.State, recipient string, amount float64) (database.Tx, error) {
	tx, err := w.CreateTransaction(recipient, amount)
	if err != nil {
		return database.Tx{}, err
	}

	if err := st.SubmitTransaction(tx); err != nil {
		return database.Tx{}, err
	}

	return tx, nil
}

// TransactionStatus reports whether a transaction is confirmed on the
// chain, pending in a mempool somewhere, or gone.
func (w *Wallet) TransactionStatus(ctx context.Context, st *state.State, txID string) string {
	return st.QueryTransactionStatus(ctx, txID)
}

// Balance reads this wallet's balance from the specified node state.
func (w *Wallet) Balance(st *state.State) database.Balance {
	return st.QueryAccountBalance(w.Address())
}
