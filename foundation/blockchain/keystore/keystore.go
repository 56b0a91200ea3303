// Package keystore reads and writes identities to an encrypted file on disk.
// Each record is AES-256-GCM ciphertext of the JSON encoded identity, keyed
// by PBKDF2-SHA256 over the wallet password.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	saltBytes     = 16
	ivBytes       = 12
	keyBytes      = 32

	// MinPasswordLen is the shortest password the store accepts.
	MinPasswordLen = 8
)

// ErrPasswordTooShort is returned when creating a store with a weak password.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)

// ErrWrongPassword is returned when a record cannot be decrypted.
var ErrWrongPassword = errors.New("wrong password or corrupt keystore")

// =============================================================================

// Save encrypts the identities and writes them to the specified path, one
// record per line.
func Save(path string, password string, identities []identity.Identity) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}

	var sb strings.Builder
	for _, idn := range identities {
		record, err := encrypt(idn, password)
		if err != nil {
			return err
		}
		sb.WriteString(record)
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("writing keystore: %w", err)
	}

	return nil
}

// Load reads the encrypted file at the specified path and decrypts every
// identity in it.
func Load(path string, password string) ([]identity.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	var identities []identity.Identity
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		idn, err := decrypt(line, password)
		if err != nil {
			return nil, err
		}
		identities = append(identities, idn)
	}

	if len(identities) == 0 {
		return nil, errors.New("keystore holds no identities")
	}

	return identities, nil
}

// =============================================================================

// encrypt produces a record in the form hex(salt):hex(iv):hex(tag):hex(cipher).
func encrypt(idn identity.Identity, password string) (string, error) {
	data, err := json.Marshal(idn)
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	iv := make([]byte, ivBytes)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}

	// Seal appends the 16 byte auth tag to the ciphertext.
	sealed := gcm.Seal(nil, iv, data, nil)
	tagAt := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagAt], sealed[tagAt:]

	record := fmt.Sprintf("%s:%s:%s:%s",
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	)

	return record, nil
}

// decrypt reverses encrypt for a single record.
func decrypt(record string, password string) (identity.Identity, error) {
	parts := strings.Split(record, ":")
	if len(parts) != 4 {
		return identity.Identity{}, errors.New("malformed keystore record")
	}

	fields := make([][]byte, 4)
	for i, part := range parts {
		data, err := hex.DecodeString(part)
		if err != nil {
			return identity.Identity{}, errors.New("malformed keystore record")
		}
		fields[i] = data
	}
	salt, iv, tag, ciphertext := fields[0], fields[1], fields[2], fields[3]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return identity.Identity{}, err
	}

	data, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return identity.Identity{}, ErrWrongPassword
	}

	var idn identity.Identity
	if err := json.Unmarshal(data, &idn); err != nil {
		return identity.Identity{}, fmt.Errorf("decoding identity: %w", err)
	}

	return idn, nil
}

// newGCM derives the AES key from the password and salt and constructs the
// AEAD used for both directions.
func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, keyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
