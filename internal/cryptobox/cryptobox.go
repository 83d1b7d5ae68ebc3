// Package cryptobox provides authenticated public-key encryption between
// Ed25519 identities, converting each identity to X25519 on the fly so
// counterparties who have not published a dedicated encryption key can
// still be reached by encrypting directly to their identity key.
package cryptobox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the size of an Ed25519 or X25519 key in bytes.
	KeySize = 32

	// NonceSize is the size of the nacl/box nonce in bytes.
	NonceSize = 24

	// Overhead is the Poly1305 authentication tag appended by box.Seal.
	Overhead = box.Overhead
)

// edPublicToX25519 converts an Ed25519 public key to its X25519 Montgomery
// form using the standard birational map between the twisted Edwards curve
// and its Montgomery equivalent.
func edPublicToX25519(edPub []byte) (*[KeySize]byte, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("cryptobox: bad ed25519 public key length: %d", len(edPub))
	}

	p, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: invalid ed25519 public key: %w", err)
	}

	var out [KeySize]byte
	copy(out[:], p.BytesMontgomery())
	return &out, nil
}

// edSecretToX25519 converts an Ed25519 seed (the 32-byte private key
// material, not the 64-byte expanded form) to an X25519 scalar via
// RFC 8032 §5.1.5's SHA-512 expansion and standard clamping.
func edSecretToX25519(edSeed []byte) (*[KeySize]byte, error) {
	if len(edSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("cryptobox: bad ed25519 seed length: %d", len(edSeed))
	}

	h := sha512.Sum512(edSeed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	var out [KeySize]byte
	copy(out[:], h[:KeySize])
	return &out, nil
}

// Encrypt seals plaintext so only the holder of the recipient's encryption
// secret (or, if unregistered, identity secret) can open it. senderIdentitySecret
// is the sender's 32-byte Ed25519 seed; recipientEncryptionPublic is the
// recipient's 32-byte Ed25519 public key (an encryption key if one is
// registered, otherwise the recipient's raw identity key). Returns the
// ciphertext and the nonce used, so callers can place both on the wire.
func Encrypt(plaintext, senderIdentitySecret, recipientEncryptionPublic []byte) (ciphertext, nonce []byte, err error) {
	senderX, err := edSecretToX25519(senderIdentitySecret)
	if err != nil {
		return nil, nil, err
	}

	recipientX, err := edPublicToX25519(recipientEncryptionPublic)
	if err != nil {
		return nil, nil, err
	}

	var n [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return nil, nil, fmt.Errorf("cryptobox: generate nonce: %w", err)
	}

	ciphertext = box.Seal(nil, plaintext, &n, recipientX, senderX)
	return ciphertext, n[:], nil
}

// Decrypt opens a ciphertext produced by Encrypt. counterpartyIdentityPublic
// is the sender's Ed25519 identity public key (always the identity key, per
// the messenger's "identity is what counterparties see on-chain" rule,
// regardless of which secret the sender used to encrypt); myEncryptionSecret
// is this process's own 32-byte Ed25519 encryption seed. Returns (nil, false)
// on authentication failure; never panics.
func Decrypt(ciphertext, nonce, counterpartyIdentityPublic, myEncryptionSecret []byte) ([]byte, bool) {
	if len(nonce) != NonceSize {
		return nil, false
	}

	counterpartyX, err := edPublicToX25519(counterpartyIdentityPublic)
	if err != nil {
		return nil, false
	}

	myX, err := edSecretToX25519(myEncryptionSecret)
	if err != nil {
		return nil, false
	}

	var n [NonceSize]byte
	copy(n[:], nonce)

	plaintext, ok := box.Open(nil, ciphertext, &n, counterpartyX, myX)
	if !ok {
		return nil, false
	}
	return plaintext, true
}
