/*
Package unwrap provides a set of proxy methods to process call results.

Functions implemented there are intended to be used as wrappers for other
functions that return ([]any, error) pair (like invoker.Invoker.Call). These
functions will check for error, check the number of results, cast them to
appropriate type (if everything is OK) and then return a result or error.
They're mostly useful for other higher-level contract-specific packages.
*/
package unwrap

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNull is returned when the call result is empty.
var ErrNull = errors.New("empty result")

// Item returns the single value from the call result.
func Item(r []any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if len(r) == 0 {
		return nil, ErrNull
	}
	if len(r) > 1 {
		return nil, fmt.Errorf("too many results: %d", len(r))
	}
	return r[0], nil
}

func typed[T any](r []any, err error) (T, error) {
	var res T
	itm, err := Item(r, err)
	if err != nil {
		return res, err
	}
	res, ok := itm.(T)
	if !ok {
		return res, fmt.Errorf("unexpected result type %T, expected %T", itm, res)
	}
	return res, nil
}

// BigInt expects a single integer value of 9..256 bits.
func BigInt(r []any, err error) (*big.Int, error) {
	return typed[*big.Int](r, err)
}

// Bool expects a single bool value.
func Bool(r []any, err error) (bool, error) {
	return typed[bool](r, err)
}

// Uint64 expects a single integer value that fits into uint64. ABI uint64 and
// smaller unsigned types are accepted as well as bigger ones with a value in
// range.
func Uint64(r []any, err error) (uint64, error) {
	itm, err := Item(r, err)
	if err != nil {
		return 0, err
	}
	switch v := itm.(type) {
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case *big.Int:
		if v.Sign() < 0 || !v.IsUint64() {
			return 0, errors.New("uint64 overflow")
		}
		return v.Uint64(), nil
	}
	return 0, fmt.Errorf("unexpected result type %T, expected integer", itm)
}

// Uint8 expects a single uint8 value (like ERC20 decimals).
func Uint8(r []any, err error) (uint8, error) {
	return typed[uint8](r, err)
}

// Hash expects a single bytes32 value.
func Hash(r []any, err error) (common.Hash, error) {
	b, err := typed[[32]byte](r, err)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(b), nil
}

// Address expects a single address value.
func Address(r []any, err error) (common.Address, error) {
	return typed[common.Address](r, err)
}

// UTF8String expects a single string value that is a valid UTF-8 string.
func UTF8String(r []any, err error) (string, error) {
	s, err := typed[string](r, err)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(s) {
		return "", errors.New("not a UTF-8 string")
	}
	return s, nil
}

// PrintableASCIIString is UTF8String that additionally checks for the string
// to only contain ASCII characters in printable range.
func PrintableASCIIString(r []any, err error) (string, error) {
	s, err := UTF8String(r, err)
	if err != nil {
		return "", err
	}
	for _, c := range s {
		if c < 32 || c >= 127 {
			return "", errors.New("not a printable ASCII string")
		}
	}
	return s, nil
}
