package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// IsValidAddress reports whether address is 0x followed by 40 hex
// characters. Checksums are not verified.
func IsValidAddress(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	for _, c := range address[2:] {
		if !isHexChar(c) {
			return false
		}
	}
	return true
}

// ParseAddress validates address and returns it. Mixed-case input must carry
// a correct EIP-55 checksum; all-lower and all-upper input is accepted as is.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !IsValidAddress(address) {
		return common.Address{}, satchelerr.WithDetails(satchelerr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}

	hexPart := address[2:]
	addr := common.HexToAddress(address)
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) && addr.Hex() != address {
		return common.Address{}, satchelerr.WithDetails(satchelerr.ErrInvalidAddress, map[string]string{
			"address":  address,
			"expected": addr.Hex(),
			"reason":   "checksum mismatch",
		})
	}
	return addr, nil
}

// ToChecksumAddress converts a valid address to EIP-55 form and returns
// anything else unchanged.
func ToChecksumAddress(address string) string {
	if !IsValidAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
