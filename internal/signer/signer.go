// Package signer abstracts over who holds the identity secret: a local
// process (self-custody) or an external service reached through a
// callback (custodial mode). Both compile the same unsigned transaction
// message; only how the signature is produced differs.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// Signer builds and signs a transaction carrying the given instructions
// against the given blockhash, returning signed transaction bytes ready
// for submission.
type Signer interface {
	// PublicKey is the identity's Ed25519 public key (the fee payer).
	PublicKey() [32]byte
	SignTransaction(ctx context.Context, instructions []wire.Instruction, blockhash [32]byte) ([]byte, error)
}

// CompileMessage serializes a version-0 transaction message: fee payer,
// blockhash, then each instruction's program id, account list, and data.
// This is the exact byte sequence both LocalSigner and ExternalSigner
// sign over, so a custodial signer sees precisely what a local signer
// would have signed.
func CompileMessage(feePayer [32]byte, blockhash [32]byte, instructions []wire.Instruction) []byte {
	const version = 0

	buf := []byte{version}
	buf = append(buf, feePayer[:]...)
	buf = append(buf, blockhash[:]...)

	numIx := make([]byte, 2)
	binary.BigEndian.PutUint16(numIx, uint16(len(instructions)))
	buf = append(buf, numIx...)

	for _, ix := range instructions {
		buf = append(buf, ix.ProgramID[:]...)

		numAccounts := make([]byte, 2)
		binary.BigEndian.PutUint16(numAccounts, uint16(len(ix.Accounts)))
		buf = append(buf, numAccounts...)

		for _, acc := range ix.Accounts {
			buf = append(buf, acc.PublicKey[:]...)
			var flags byte
			if acc.IsSigner {
				flags |= 0x01
			}
			if acc.IsWritable {
				flags |= 0x02
			}
			buf = append(buf, flags)
		}

		dataLen := make([]byte, 4)
		binary.BigEndian.PutUint32(dataLen, uint32(len(ix.Data)))
		buf = append(buf, dataLen...)
		buf = append(buf, ix.Data...)
	}

	return buf
}

// LocalSigner holds the Ed25519 identity private key in process memory
// and signs transactions directly.
type LocalSigner struct {
	publicKey [32]byte
	secretKey ed25519.PrivateKey
}

// NewLocalSigner builds a LocalSigner from a 64-byte Ed25519 private key
// (32-byte seed plus 32-byte public key, matching crypto/ed25519's form).
func NewLocalSigner(secretKey [64]byte) *LocalSigner {
	priv := ed25519.PrivateKey(append([]byte(nil), secretKey[:]...))
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &LocalSigner{publicKey: pub, secretKey: priv}
}

// PublicKey returns the identity's public key.
func (s *LocalSigner) PublicKey() [32]byte {
	return s.publicKey
}

// SignTransaction compiles the message and signs it with the in-memory
// identity secret. Output is signature(64) ‖ message.
func (s *LocalSigner) SignTransaction(_ context.Context, instructions []wire.Instruction, blockhash [32]byte) ([]byte, error) {
	msg := CompileMessage(s.publicKey, blockhash, instructions)
	sig := ed25519.Sign(s.secretKey, msg)

	out := make([]byte, 0, len(sig)+len(msg))
	out = append(out, sig...)
	out = append(out, msg...)
	return out, nil
}

// Callback matches the configuration's signer_callback shape: given the
// unsigned transaction bytes, the blockhash, and the fee payer, it returns
// signed transaction bytes. It never receives the encryption secret: the
// identity key's holder can pay and sign, but cannot read traffic.
type Callback func(ctx context.Context, unsignedTx []byte, blockhash [32]byte, feePayer [32]byte) ([]byte, error)

// ExternalSigner holds only the identity's public address; the private
// key lives behind callback, e.g. a custodial service.
type ExternalSigner struct {
	publicKey [32]byte
	callback  Callback
}

// NewExternalSigner builds an ExternalSigner for the given public address.
func NewExternalSigner(publicKey [32]byte, callback Callback) (*ExternalSigner, error) {
	if callback == nil {
		return nil, fmt.Errorf("signer: external signer requires a non-nil callback")
	}
	return &ExternalSigner{publicKey: publicKey, callback: callback}, nil
}

// PublicKey returns the identity's public key.
func (s *ExternalSigner) PublicKey() [32]byte {
	return s.publicKey
}

// SignTransaction compiles the message and hands it to the callback.
func (s *ExternalSigner) SignTransaction(ctx context.Context, instructions []wire.Instruction, blockhash [32]byte) ([]byte, error) {
	msg := CompileMessage(s.publicKey, blockhash, instructions)
	return s.callback(ctx, msg, blockhash, s.publicKey)
}
