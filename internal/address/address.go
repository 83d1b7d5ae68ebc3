// Package address derives the registry account address for an identity:
// a deterministic, off-curve program-derived address computed from the
// program id and a fixed seed prefix, with no network round trip.
package address

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// pdaMarker is the domain separator the host chain's PDA algorithm appends
// to every candidate hash, ensuring a PDA can never collide with a real
// Ed25519 public key that some keypair could actually sign for.
const pdaMarker = "ProgramDerivedAddress"

// SeedPrefix is the fixed first seed of the registry account's PDA.
const SeedPrefix = "messenger"

// ErrNoValidBump is returned in the astronomically unlikely case that no
// bump seed in [0, 255] yields an off-curve candidate.
var ErrNoValidBump = errors.New("address: no off-curve bump seed found")

// AddressSize is the size of a derived address in bytes.
const AddressSize = 32

// Address is a 32-byte on-chain address.
type Address [AddressSize]byte

// DeriveRegistryPDA computes the registry account address for identityKey
// under programID: SHA-256(SeedPrefix ‖ identityKey ‖ bump ‖ programID ‖
// pdaMarker), walking the bump seed down from 255 until the candidate
// hash does not decompress to a point on the Ed25519 curve, the PDA
// scheme's way of guaranteeing no real keypair could ever sign for this
// address. Deterministic for a given (programID, identityKey); no network
// call.
func DeriveRegistryPDA(programID, identityKey Address) (addr Address, bump byte, err error) {
	for b := 255; b >= 0; b-- {
		candidate := hashSeeds(programID, identityKey, byte(b))
		if !onCurve(candidate) {
			copy(addr[:], candidate)
			return addr, byte(b), nil
		}
	}
	return Address{}, 0, ErrNoValidBump
}

func hashSeeds(programID, identityKey Address, bump byte) []byte {
	h := sha256.New()
	h.Write([]byte(SeedPrefix))
	h.Write(identityKey[:])
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	return h.Sum(nil)
}

// onCurve reports whether candidate decompresses to a valid point on the
// Ed25519 curve. A PDA is valid precisely when this is false.
func onCurve(candidate []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(candidate)
	return err == nil
}
