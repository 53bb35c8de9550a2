package console

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"text/tabwriter"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ecotrack/eco-go/pkg/encoding/evidence"
	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMissingParameter is returned when there is nothing to parse.
var ErrMissingParameter = errors.New("missing argument")

// Parse converts its argument to other formats. Token amounts use the given
// number of decimals.
func Parse(args []string, decimals int) (string, error) {
	if len(args) < 1 {
		return "", ErrMissingParameter
	}
	arg := args[0]
	buf := bytes.NewBuffer(nil)
	if val, ok := new(big.Int).SetString(arg, 10); ok {
		buf.WriteString(fmt.Sprintf("Integer to Hex\t0x%s\n", val.Text(16)))
		buf.WriteString(fmt.Sprintf("Integer to Tokens\t%s\n", fixedn.ToString(val, decimals)))
	}
	if val, err := fixedn.FromString(arg, decimals); err == nil {
		buf.WriteString(fmt.Sprintf("Tokens to Integer\t%s\n", val))
	}
	if a, err := address.StringToAddress(arg); err == nil {
		buf.WriteString(fmt.Sprintf("Address\t%s\n", address.AddressToString(a)))
	} else if errors.Is(err, address.ErrInvalidChecksum) {
		buf.WriteString(fmt.Sprintf("Address (bad checksum)\t%s\n", common.HexToAddress(arg).Hex()))
	}
	noX := strings.TrimPrefix(arg, "0x")
	if raw, err := hex.DecodeString(noX); err == nil && len(raw) > 0 {
		buf.WriteString(fmt.Sprintf("Hex to Integer\t%s\n", new(big.Int).SetBytes(raw)))
		buf.WriteString(fmt.Sprintf("Hex to String\t%q\n", string(raw)))
		if len(raw) == common.HashLength {
			if r := roles.DefaultHashes().Role(common.BytesToHash(raw)); r != roles.Unknown {
				buf.WriteString(fmt.Sprintf("Hash to Role\t%s\n", r))
			}
		}
	}
	if d, err := evidence.Digest(arg); err == nil {
		buf.WriteString(fmt.Sprintf("Evidence to Digest\t0x%s\n", hex.EncodeToString(d)))
	}
	if r, ok := roles.FromString(arg); ok {
		buf.WriteString(fmt.Sprintf("Role to Hash\t%s\n", r.DefaultHash().Hex()))
	}

	buf.WriteString(fmt.Sprintf("String to Hex\t0x%s\n", hex.EncodeToString([]byte(arg))))
	buf.WriteString(fmt.Sprintf("String to Keccak256\t%s\n", crypto.Keccak256Hash([]byte(arg)).Hex()))
	buf.WriteString(fmt.Sprintf("String to Evidence\t%s\n", evidence.FromBytes([]byte(arg))))

	out := buf.Bytes()
	buf = bytes.NewBuffer(nil)
	w := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	if _, err := w.Write(out); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
