// Package identity manages the key pairs that represent accounts on the
// blockchain. An identity is the unit a wallet stores and a miner is paid to.
package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

// Identity represents a key pair plus the metadata a wallet tracks for it.
// Keys are carried in PEM form so the identity round trips through JSON and
// the keystore without loss.
type Identity struct {
	ID         string `json:"id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Name       string `json:"name,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	LastUsed   int64  `json:"last_used,omitempty"`
}

// New generates a fresh RSA key pair and wraps it with identity metadata.
func New(name string) (Identity, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, signature.KeyBits)
	if err != nil {
		return Identity{}, fmt.Errorf("generating key pair: %w", err)
	}

	uid := uuid.New()

	ident := Identity{
		ID:         hex.EncodeToString(uid[:]),
		PublicKey:  signature.EncodePublicKey(&privateKey.PublicKey),
		PrivateKey: signature.EncodePrivateKey(privateKey),
		Name:       name,
		CreatedAt:  time.Now().UnixMilli(),
	}

	return ident, nil
}

// Private decodes the PEM private key for signing operations.
func (idn Identity) Private() (*rsa.PrivateKey, error) {
	return signature.DecodePrivateKey(idn.PrivateKey)
}

// Address returns the normalized public key, which is how the identity is
// referred to on the chain.
func (idn Identity) Address() string {
	return signature.Normalize(idn.PublicKey)
}

// Touch records that the identity was just used.
func (idn *Identity) Touch() {
	idn.LastUsed = time.Now().UnixMilli()
}
