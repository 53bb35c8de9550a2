/*
Package fixedn implements fixed-point decimal numbers stored as big integers,
as used by ERC20-style tokens.
*/
package fixedn

import (
	"errors"
	"math/big"
	"strings"
)

// DefaultDecimals is the number of decimals used by the EcoToken and by the
// reduction amounts of eco actions.
const DefaultDecimals = 18

const maxAllowedPrecision = 77

var (
	errInvalidString    = errors.New("fixed-point number must have digits")
	errTooBigPrecision  = errors.New("precision is too big")
	errInvalidPrecision = errors.New("precision must be between 0 and 77")
)

var bigTen = big.NewInt(10)

// Pow10 returns 10^precision.
func Pow10(precision int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(precision)), nil)
}

// ToString converts a big integer with the specified precision to the string
// representation, trailing fractional zeroes are trimmed.
func ToString(bi *big.Int, precision int) string {
	if bi == nil {
		return "0"
	}
	var dp, fp big.Int
	dp.QuoRem(bi, Pow10(precision), &fp)

	var s = dp.String()
	if fp.Sign() == 0 {
		return s
	}
	frac := new(big.Int).Abs(&fp).String()
	frac = strings.TrimRight(strings.Repeat("0", precision-len(frac))+frac, "0")
	if bi.Sign() < 0 && dp.Sign() == 0 {
		s = "-" + s
	}
	return s + "." + frac
}

// FromString converts a string to a big integer with the specified
// precision. Numbers with more fractional digits than precision are rejected.
func FromString(s string, precision int) (*big.Int, error) {
	if precision < 0 || precision > maxAllowedPrecision {
		return nil, errInvalidPrecision
	}
	s = strings.TrimSpace(s)
	var neg bool
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 2 && len(parts[1]) > precision {
		return nil, errTooBigPrecision
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return nil, errInvalidString
	}
	for _, p := range parts {
		if strings.ContainsFunc(p, func(r rune) bool { return r < '0' || r > '9' }) {
			return nil, errInvalidString
		}
	}
	digits := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	digits += frac + strings.Repeat("0", precision-len(frac))
	bi, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, errInvalidString
	}
	if neg {
		bi.Neg(bi)
	}
	return bi, nil
}
