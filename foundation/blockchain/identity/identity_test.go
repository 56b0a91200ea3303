package identity_test

import (
	"testing"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

func Test_NewIdentity(t *testing.T) {
	idn, err := identity.New("miner1")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	if len(idn.ID) != 32 {
		t.Fatalf("Should have a 128 bit hex id, got %d characters.", len(idn.ID))
	}

	if idn.Name != "miner1" {
		t.Fatalf("Should keep the provided name, got %q.", idn.Name)
	}

	if idn.CreatedAt == 0 {
		t.Fatalf("Should record the creation time.")
	}

	if _, err := idn.Private(); err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	if _, err := signature.DecodePublicKey(idn.PublicKey); err != nil {
		t.Fatalf("Should be able to decode the public key: %s", err)
	}
}

func Test_Sign(t *testing.T) {
	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	value := struct {
		Amount float64 `json:"amount"`
	}{
		Amount: 10,
	}

	privateKey, err := idn.Private()
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	sig, err := signature.Sign(value, privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign with the identity: %s", err)
	}

	if err := signature.Verify(value, sig, idn.PublicKey); err != nil {
		t.Fatalf("Should verify under the identity's public key: %s", err)
	}
}

func Test_Touch(t *testing.T) {
	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	if idn.LastUsed != 0 {
		t.Fatalf("Should start with no last used time.")
	}

	idn.Touch()
	if idn.LastUsed == 0 {
		t.Fatalf("Should record the last used time after Touch.")
	}
}
