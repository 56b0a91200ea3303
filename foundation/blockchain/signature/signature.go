// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// KeyBits is the size of the RSA keys used for all identities.
const KeyBits = 2048

// =============================================================================

// Hash returns a unique string for the value. The value is marshaled into its
// canonical JSON form before hashing, so any struct whose fields are declared
// in wire order hashes identically on every node.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Sign uses the specified private key to produce a detached RSA-SHA256
// signature over the canonical JSON form of the value.
func Sign(value any, privateKey *rsa.PrivateKey) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(data)

	sig, err := rsa.SignPKCS1v15(nil, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}

// Verify checks the hex encoded signature against the canonical JSON form of
// the value under the specified PEM encoded public key.
func Verify(value any, sigHex string, publicPEM string) error {
	publicKey, err := DecodePublicKey(publicPEM)
	if err != nil {
		return err
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(data)

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return errors.New("invalid signature")
	}

	return nil
}

// =============================================================================

// EncodePrivateKey converts a private key to its PEM encoding.
func EncodePrivateKey(privateKey *rsa.PrivateKey) string {
	block := pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return string(pem.EncodeToMemory(&block))
}

// DecodePrivateKey converts a PEM encoding back into a private key.
func DecodePrivateKey(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return privateKey, nil
}

// EncodePublicKey converts a public key to its PEM encoding. The PEM string
// is the account address used throughout the system.
func EncodePublicKey(publicKey *rsa.PublicKey) string {
	block := pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(publicKey),
	}

	return string(pem.EncodeToMemory(&block))
}

// DecodePublicKey converts a PEM encoding back into a public key.
func DecodePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(Normalize(publicPEM)))
	if block == nil {
		return nil, errors.New("no PEM block found in public key")
	}

	publicKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	return publicKey, nil
}

// =============================================================================

// Normalize prepares a PEM address for comparison. Keys travel through JSON,
// files and terminals that disagree about line endings, so every comparison
// in the system goes through this function first.
func Normalize(address string) string {
	return strings.TrimSpace(strings.ReplaceAll(address, "\r\n", "\n"))
}

// SameAddress reports whether two PEM addresses refer to the same key.
func SameAddress(a string, b string) bool {
	return Normalize(a) == Normalize(b)
}
