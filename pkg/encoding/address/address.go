/*
Package address implements parsing and formatting of Ethereum account
addresses with EIP-55 checksum validation.
*/
package address

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidFormat is returned for strings that are not 20-byte hex
	// addresses.
	ErrInvalidFormat = errors.New("invalid address format")
	// ErrInvalidChecksum is returned for mixed-case addresses with a wrong
	// EIP-55 checksum.
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// StringToAddress parses the given 0x-prefixed (or unprefixed) hex address.
// All-lowercase and all-uppercase addresses are accepted as is, mixed-case ones
// must have a valid EIP-55 checksum.
func StringToAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidFormat
	}
	a := common.HexToAddress(s)
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw != strings.ToLower(raw) && raw != strings.ToUpper(raw) {
		if raw != strings.TrimPrefix(a.Hex(), "0x") {
			return common.Address{}, ErrInvalidChecksum
		}
	}
	return a, nil
}

// AddressToString returns the EIP-55 checksummed representation of the
// address.
func AddressToString(a common.Address) string {
	return a.Hex()
}

// IsValid checks whether the given string is an acceptable address.
func IsValid(s string) bool {
	_, err := StringToAddress(s)
	return err == nil
}

// Equal compares two address strings case-insensitively. Malformed addresses
// are never equal to anything.
func Equal(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// Short returns abbreviated address representation like 0x1234…abcd.
func Short(a common.Address) string {
	s := a.Hex()
	return s[:6] + "…" + s[len(s)-4:]
}
