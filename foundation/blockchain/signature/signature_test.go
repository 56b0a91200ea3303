package signature_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/signature"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, signature.KeyBits)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	return privateKey
}

// =============================================================================

func Test_SignVerify(t *testing.T) {
	value := struct {
		Name string `json:"name"`
	}{
		Name: "Bill",
	}

	privateKey := genKey(t)
	publicPEM := signature.EncodePublicKey(&privateKey.PublicKey)

	sig, err := signature.Sign(value, privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if err := signature.Verify(value, sig, publicPEM); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}
}

func Test_VerifyTamperedValue(t *testing.T) {
	value := struct {
		Name string `json:"name"`
	}{
		Name: "Bill",
	}

	privateKey := genKey(t)
	publicPEM := signature.EncodePublicKey(&privateKey.PublicKey)

	sig, err := signature.Sign(value, privateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	value.Name = "Jill"
	if err := signature.Verify(value, sig, publicPEM); err == nil {
		t.Fatalf("Should not verify a signature over tampered data.")
	}

	otherKey := genKey(t)
	otherPEM := signature.EncodePublicKey(&otherKey.PublicKey)

	value.Name = "Bill"
	if err := signature.Verify(value, sig, otherPEM); err == nil {
		t.Fatalf("Should not verify a signature under the wrong key.")
	}
}

func Test_Hash(t *testing.T) {
	value := struct {
		Name string `json:"name"`
	}{
		Name: "Bill",
	}

	h1 := signature.Hash(value)
	h2 := signature.Hash(value)

	if h1 != h2 {
		t.Logf("got: %s", h2)
		t.Logf("exp: %s", h1)
		t.Fatalf("Should get back the same hash twice.")
	}

	if len(h1) != 64 {
		t.Fatalf("Should produce a 64 hex character hash, got %d.", len(h1))
	}
}

func Test_KeyRoundTrip(t *testing.T) {
	privateKey := genKey(t)

	privatePEM := signature.EncodePrivateKey(privateKey)
	publicPEM := signature.EncodePublicKey(&privateKey.PublicKey)

	pk, err := signature.DecodePrivateKey(privatePEM)
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}
	if !pk.Equal(privateKey) {
		t.Fatalf("Should get back the same private key.")
	}

	pub, err := signature.DecodePublicKey(publicPEM)
	if err != nil {
		t.Fatalf("Should be able to decode the public key: %s", err)
	}
	if !pub.Equal(&privateKey.PublicKey) {
		t.Fatalf("Should get back the same public key.")
	}
}

func Test_Normalize(t *testing.T) {
	privateKey := genKey(t)
	publicPEM := signature.EncodePublicKey(&privateKey.PublicKey)

	crlf := strings.ReplaceAll(publicPEM, "\n", "\r\n")
	padded := "  " + publicPEM + "\n\n"

	if !signature.SameAddress(publicPEM, crlf) {
		t.Fatalf("Should treat CRLF and LF encodings as the same address.")
	}

	if !signature.SameAddress(publicPEM, padded) {
		t.Fatalf("Should ignore surrounding whitespace when comparing addresses.")
	}

	if _, err := signature.DecodePublicKey(crlf); err != nil {
		t.Fatalf("Should be able to decode a CRLF encoded public key: %s", err)
	}
}
