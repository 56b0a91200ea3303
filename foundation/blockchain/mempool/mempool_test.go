package mempool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/mempool"
)

const testDifficulty = 1

// fundedLedger builds a chain where the miner identity holds one block
// reward of confirmed balance.
func fundedLedger(t *testing.T, miner identity.Identity) *database.Database {
	t.Helper()

	db := database.New(testDifficulty, nil)

	privateKey, err := miner.Private()
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	coinbase, err := database.NewCoinbaseTx(miner.PublicKey, 1).Sign(privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign the coinbase: %s", err)
	}

	if _, err := db.CreateBlock(context.Background(), []database.Tx{coinbase}, miner.PublicKey, coinbase.Amount); err != nil {
		t.Fatalf("Should be able to mine the funding block: %s", err)
	}

	return db
}

func signedTransfer(t *testing.T, from identity.Identity, to identity.Identity, amount float64) database.Tx {
	t.Helper()

	privateKey, err := from.Private()
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	tx, err := database.NewTx(from.PublicKey, to.PublicKey, amount).Sign(privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return tx
}

func newIdentity(t *testing.T) identity.Identity {
	t.Helper()

	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	return idn
}

// =============================================================================

func Test_AddIdempotence(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	tx := signedTransfer(t, alice, bob, 10)

	if err := mp.Add(tx); err != nil {
		t.Fatalf("Should admit a valid transaction on the first call: %s", err)
	}

	if err := mp.Add(tx); !errors.Is(err, mempool.ErrDuplicate) {
		t.Fatalf("Should reject the same id on the second call, got %v.", err)
	}

	if mp.Count() != 1 {
		t.Fatalf("Should hold exactly one entry, got %d.", mp.Count())
	}
}

func Test_RejectCoinbase(t *testing.T) {
	alice := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	privateKey, err := alice.Private()
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	coinbase, err := database.NewCoinbaseTx(alice.PublicKey, 2).Sign(privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign the coinbase: %s", err)
	}

	if err := mp.Add(coinbase); !errors.Is(err, mempool.ErrCoinbase) {
		t.Fatalf("Should reject coinbase transactions, got %v.", err)
	}
}

func Test_RejectExpired(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	tx := signedTransfer(t, alice, bob, 10)
	tx.Timestamp = time.Now().Add(-2 * mempool.TransactionTimeout).UnixMilli()

	if err := mp.Add(tx); !errors.Is(err, mempool.ErrExpired) {
		t.Fatalf("Should reject a transaction older than the timeout, got %v.", err)
	}
}

func Test_PendingDebits(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	if err := mp.Add(signedTransfer(t, alice, bob, 30)); err != nil {
		t.Fatalf("Should admit the first transfer: %s", err)
	}

	if err := mp.Add(signedTransfer(t, alice, bob, 30)); err == nil {
		t.Fatalf("Should refuse queued spending beyond the confirmed balance.")
	}

	if err := mp.Add(signedTransfer(t, alice, bob, 20)); err != nil {
		t.Fatalf("Should admit spending up to the confirmed balance: %s", err)
	}
}

func Test_SelectionOldestFirst(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	privateKey, err := alice.Private()
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	// Backdate the transactions before signing so the timestamps are part
	// of what each signature covers.
	now := time.Now().UnixMilli()
	aged := func(age int64) database.Tx {
		tx := database.NewTx(alice.PublicKey, bob.PublicKey, 10)
		tx.Timestamp = now - age

		signed, err := tx.Sign(privateKey)
		if err != nil {
			t.Fatalf("Should be able to sign the transaction: %s", err)
		}
		return signed
	}

	tx1 := aged(3000)
	tx2 := aged(2000)
	tx3 := aged(1000)

	// Admission order shouldn't matter, only the timestamps.
	for _, tx := range []database.Tx{tx3, tx1, tx2} {
		if err := mp.Add(tx); err != nil {
			t.Fatalf("Should admit transaction %s: %s", tx, err)
		}
	}

	picked := mp.PickOldest(2)
	if len(picked) != 2 {
		t.Fatalf("Should pick two transactions, got %d.", len(picked))
	}
	if picked[0].ID != tx1.ID || picked[1].ID != tx2.ID {
		t.Fatalf("Should pick the oldest transactions first.")
	}
}

func Test_RemoveOnInclusion(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	tx1 := signedTransfer(t, alice, bob, 10)
	tx2 := signedTransfer(t, alice, bob, 10)

	for _, tx := range []database.Tx{tx1, tx2} {
		if err := mp.Add(tx); err != nil {
			t.Fatalf("Should admit transaction %s: %s", tx, err)
		}
	}

	mp.RemoveMany([]database.Tx{tx1, tx2})
	if mp.Count() != 0 {
		t.Fatalf("Should be empty after removing included transactions, got %d.", mp.Count())
	}
}

func Test_Cleanup(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	mp := mempool.New(fundedLedger(t, alice))

	fresh := signedTransfer(t, alice, bob, 10)
	if err := mp.Add(fresh); err != nil {
		t.Fatalf("Should admit the fresh transaction: %s", err)
	}

	if dropped := mp.Cleanup(); dropped != 0 {
		t.Fatalf("Should drop nothing while entries are fresh, dropped %d.", dropped)
	}

	if mp.Count() != 1 {
		t.Fatalf("Should keep the fresh entry, got %d.", mp.Count())
	}
}
