// Package wire encodes the four on-chain instructions the messenger issues
// and decodes the two data shapes it reads back: the MessageSent event
// emitted in transaction logs, and the registry account layout. All
// discriminators, account orderings, and byte layouts are a locked ABI;
// this package is a byte-exact transcription of that contract, not a
// general-purpose codec.
package wire

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// AddressSize is the size of every on-chain address in bytes.
const AddressSize = 32

// Address is a 32-byte on-chain address (program id, account, or pubkey).
type Address [AddressSize]byte

// DiscriminatorSize is the size of an instruction or event discriminator.
const DiscriminatorSize = 8

// Discriminator is a fixed 8-byte instruction or event tag.
type Discriminator [DiscriminatorSize]byte

// Instruction discriminators, fixed by the deployed program's ABI.
var (
	DiscSendMessage         = Discriminator{0x39, 0x28, 0x22, 0xB2, 0xBD, 0x0A, 0x41, 0x1A}
	DiscRegister            = Discriminator{0xD3, 0x7C, 0x43, 0x0F, 0xD3, 0xC2, 0xB2, 0xF0}
	DiscUpdateEncryptionKey = Discriminator{0x5C, 0xE9, 0x1D, 0x65, 0x98, 0x61, 0x6E, 0xEB}
	DiscDeregister          = Discriminator{0xA1, 0xB2, 0x27, 0xBD, 0xE7, 0xE0, 0x0D, 0xBB}
)

// DiscMessageSent is the event discriminator for MessageSent log entries.
var DiscMessageSent = Discriminator{0x74, 0x46, 0xE0, 0x4C, 0x80, 0x1C, 0x6E, 0x37}

// ProgramDataPrefix is the exact log-line prefix an event entry must begin with.
const ProgramDataPrefix = "Program data: "

// ProgramVariant selects which account-list shape send_message targets.
// The client is always told which variant the deployed program expects;
// it never probes the network to infer it.
type ProgramVariant int

const (
	// VariantMinimal is the bare `[sender]` account list.
	VariantMinimal ProgramVariant = iota
	// VariantFeeExtended adds config/fee_vault/recipient_registry/recipient_wallet/system_program.
	VariantFeeExtended
)

// AccountMeta describes one account reference in an instruction's account list.
type AccountMeta struct {
	PublicKey  Address
	IsSigner   bool
	IsWritable bool
}

// Instruction is a fully built on-chain instruction ready to be placed in a
// transaction and signed.
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// SendMessageAccounts carries the accounts send_message needs. Sender is
// always required; the fee-extended fields are required only when variant
// is VariantFeeExtended.
type SendMessageAccounts struct {
	Sender            Address
	Config            Address
	FeeVault          Address
	RecipientRegistry Address
	RecipientWallet   Address
	SystemProgram     Address
}

// BuildSendMessage encodes a send_message instruction: disc(8) ‖
// recipient(32) ‖ ct_len(u32 LE) ‖ ciphertext(ct_len) ‖ nonce(24).
func BuildSendMessage(programID Address, variant ProgramVariant, accounts SendMessageAccounts, recipient Address, ciphertext, nonce []byte) (Instruction, error) {
	if len(nonce) != 24 {
		return Instruction{}, fmt.Errorf("wire: send_message nonce must be 24 bytes, got %d", len(nonce))
	}

	data := make([]byte, 0, DiscriminatorSize+AddressSize+4+len(ciphertext)+24)
	data = append(data, DiscSendMessage[:]...)
	data = append(data, recipient[:]...)

	ctLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(ctLen, uint32(len(ciphertext)))
	data = append(data, ctLen...)
	data = append(data, ciphertext...)
	data = append(data, nonce...)

	metas := []AccountMeta{
		{PublicKey: accounts.Sender, IsSigner: true, IsWritable: true},
	}
	if variant == VariantFeeExtended {
		metas = append(metas,
			AccountMeta{PublicKey: accounts.Config, IsSigner: false, IsWritable: false},
			AccountMeta{PublicKey: accounts.FeeVault, IsSigner: false, IsWritable: true},
			AccountMeta{PublicKey: accounts.RecipientRegistry, IsSigner: false, IsWritable: false},
			AccountMeta{PublicKey: accounts.RecipientWallet, IsSigner: false, IsWritable: true},
			AccountMeta{PublicKey: accounts.SystemProgram, IsSigner: false, IsWritable: false},
		)
	}

	return Instruction{ProgramID: programID, Accounts: metas, Data: data}, nil
}

// BuildRegister encodes a register instruction: disc(8) ‖ encryption_pubkey(32).
// Accounts: [registry_pda(rw), owner(rw signer), system_program(ro)].
func BuildRegister(programID, registryPDA, owner, systemProgram, encryptionPubkey Address) Instruction {
	data := make([]byte, 0, DiscriminatorSize+AddressSize)
	data = append(data, DiscRegister[:]...)
	data = append(data, encryptionPubkey[:]...)

	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: registryPDA, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: true},
			{PublicKey: systemProgram, IsSigner: false, IsWritable: false},
		},
		Data: data,
	}
}

// BuildUpdateEncryptionKey encodes an update_encryption_key instruction:
// disc(8) ‖ new_encryption_pubkey(32). Accounts: [registry_pda(rw), owner(ro signer)].
func BuildUpdateEncryptionKey(programID, registryPDA, owner, newEncryptionPubkey Address) Instruction {
	data := make([]byte, 0, DiscriminatorSize+AddressSize)
	data = append(data, DiscUpdateEncryptionKey[:]...)
	data = append(data, newEncryptionPubkey[:]...)

	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: registryPDA, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		Data: data,
	}
}

// BuildDeregister encodes a deregister instruction: disc(8) only.
// Accounts: [registry_pda(rw), owner(rw signer)].
func BuildDeregister(programID, registryPDA, owner Address) Instruction {
	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: registryPDA, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: true},
		},
		Data: append([]byte{}, DiscDeregister[:]...),
	}
}

// MessageSentEvent is one decoded MessageSent log entry.
type MessageSentEvent struct {
	Sender     Address
	Recipient  Address
	Ciphertext []byte
	Nonce      []byte
	Timestamp  int64
}

// DecodeEvents scans transaction log lines for MessageSent events. Lines
// that do not start with ProgramDataPrefix, fail to base64-decode, or whose
// leading 8 bytes don't match DiscMessageSent are silently skipped; this is
// the receive path's liveness guarantee against adversarial or unrelated
// log noise.
func DecodeEvents(logs []string) []MessageSentEvent {
	var events []MessageSentEvent

	for _, line := range logs {
		if !strings.HasPrefix(line, ProgramDataPrefix) {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, ProgramDataPrefix))
		if err != nil {
			continue
		}

		ev, ok := decodeMessageSent(raw)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	return events
}

func decodeMessageSent(raw []byte) (MessageSentEvent, bool) {
	const fixedLen = DiscriminatorSize + AddressSize + AddressSize + 4
	if len(raw) < fixedLen {
		return MessageSentEvent{}, false
	}
	if !hasDiscriminator(raw, DiscMessageSent) {
		return MessageSentEvent{}, false
	}

	off := DiscriminatorSize
	var ev MessageSentEvent
	copy(ev.Sender[:], raw[off:off+AddressSize])
	off += AddressSize
	copy(ev.Recipient[:], raw[off:off+AddressSize])
	off += AddressSize

	ctLen := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4

	tail := off + int(ctLen) + 24 + 8
	if tail > len(raw) {
		return MessageSentEvent{}, false
	}

	ev.Ciphertext = append([]byte(nil), raw[off:off+int(ctLen)]...)
	off += int(ctLen)

	ev.Nonce = append([]byte(nil), raw[off:off+24]...)
	off += 24

	ev.Timestamp = int64(binary.LittleEndian.Uint64(raw[off : off+8]))

	return ev, true
}

func hasDiscriminator(raw []byte, want Discriminator) bool {
	if len(raw) < DiscriminatorSize {
		return false
	}
	for i := 0; i < DiscriminatorSize; i++ {
		if raw[i] != want[i] {
			return false
		}
	}
	return true
}

// RegistryAccountFixedSize is the byte length of the fields every client needs.
const RegistryAccountFixedSize = DiscriminatorSize + AddressSize + AddressSize

// RegistryAccount is the decoded registry account for one identity.
type RegistryAccount struct {
	Owner          Address
	EncryptionKey  Address
	CreatedAt      int64
	UpdatedAt      int64
	MinFeeLamports uint64
	HasTrailer     bool
}

// DecodeRegistryAccount reads discriminator(8) ‖ owner(32) ‖
// encryption_key(32), then opportunistically reads created_at(8) ‖
// updated_at(8) ‖ min_fee_lamports(8) if present. Clients that only need
// the encryption key never fail on an account lacking the trailer.
func DecodeRegistryAccount(data []byte) (RegistryAccount, error) {
	if len(data) < RegistryAccountFixedSize {
		return RegistryAccount{}, fmt.Errorf("wire: registry account too short: %d bytes", len(data))
	}

	var acc RegistryAccount
	off := DiscriminatorSize
	copy(acc.Owner[:], data[off:off+AddressSize])
	off += AddressSize
	copy(acc.EncryptionKey[:], data[off:off+AddressSize])
	off += AddressSize

	const trailerSize = 8 + 8 + 8
	if len(data) >= off+trailerSize {
		acc.CreatedAt = int64(binary.LittleEndian.Uint64(data[off : off+8]))
		acc.UpdatedAt = int64(binary.LittleEndian.Uint64(data[off+8 : off+16]))
		acc.MinFeeLamports = binary.LittleEndian.Uint64(data[off+16 : off+24])
		acc.HasTrailer = true
	}

	return acc, nil
}
