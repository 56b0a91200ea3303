package keystore_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/keystore"
)

func Test_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")

	idn, err := identity.New("alice")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	if err := keystore.Save(path, "correct horse", []identity.Identity{idn}); err != nil {
		t.Fatalf("Should be able to save the keystore: %s", err)
	}

	identities, err := keystore.Load(path, "correct horse")
	if err != nil {
		t.Fatalf("Should be able to load the keystore: %s", err)
	}

	if len(identities) != 1 {
		t.Fatalf("Should load one identity, got %d.", len(identities))
	}

	if identities[0].ID != idn.ID || identities[0].PrivateKey != idn.PrivateKey {
		t.Fatalf("Should round trip the identity unchanged.")
	}
}

func Test_WrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")

	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	if err := keystore.Save(path, "correct horse", []identity.Identity{idn}); err != nil {
		t.Fatalf("Should be able to save the keystore: %s", err)
	}

	if _, err := keystore.Load(path, "battery staple"); !errors.Is(err, keystore.ErrWrongPassword) {
		t.Fatalf("Should fail with ErrWrongPassword, got %v.", err)
	}
}

func Test_ShortPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")

	idn, err := identity.New("")
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	if err := keystore.Save(path, "short", []identity.Identity{idn}); !errors.Is(err, keystore.ErrPasswordTooShort) {
		t.Fatalf("Should reject a password under %d characters, got %v.", keystore.MinPasswordLen, err)
	}
}
