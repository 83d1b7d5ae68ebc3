package messenger

import (
	"github.com/sabersally/solana-messenger-go/internal/address"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// derivePDA derives an identity's registry account address under
// programID, converting between the address and wire packages' identical
// [32]byte address types.
func derivePDA(programID wire.Address, identity [32]byte) (wire.Address, byte, error) {
	pda, bump, err := address.DeriveRegistryPDA(address.Address(programID), address.Address(identity))
	return wire.Address(pda), bump, err
}
