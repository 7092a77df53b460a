package blockchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates an EVM address and returns it lower-cased.
// Checksum casing is accepted but not enforced.
func NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", false
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), true
}

// IsZeroAddress reports whether address is the zero address
func IsZeroAddress(address string) bool {
	return common.HexToAddress(address) == (common.Address{})
}
