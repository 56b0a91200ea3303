package wallet_test

import (
	"testing"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/wallet"
)

func newWallet(t *testing.T) *wallet.Wallet {
	t.Helper()

	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	return wallet.New(idn)
}

func Test_CreateTransaction(t *testing.T) {
	alice := newWallet(t)
	bob := newWallet(t)

	tx, err := alice.CreateTransaction(bob.Address(), 25)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %s", err)
	}

	if tx.Sender != alice.Address() || tx.Recipient != bob.Address() {
		t.Fatalf("Should carry the wallet addresses.")
	}

	if tx.IsCoinbase {
		t.Fatalf("Should never create a coinbase from a wallet.")
	}

	if err := tx.VerifySignature(); err != nil {
		t.Fatalf("Should produce a verifiable signature: %s", err)
	}
}

func Test_CreateTransactionRejectsDust(t *testing.T) {
	alice := newWallet(t)
	bob := newWallet(t)

	if _, err := alice.CreateTransaction(bob.Address(), 0); err == nil {
		t.Fatalf("Should refuse a zero amount.")
	}

	if _, err := alice.CreateTransaction(bob.Address(), 1e-12); err == nil {
		t.Fatalf("Should refuse an amount below the minimum transaction.")
	}

	if _, err := alice.CreateTransaction("", 5); err == nil {
		t.Fatalf("Should refuse an empty recipient.")
	}
}
