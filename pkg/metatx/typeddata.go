package metatx

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PrimaryType is the EIP-712 struct name of TransferRequest.
const PrimaryType = "Transfer"

// Domain is an EIP-712 signing domain of the meta-transfer contract.
type Domain struct {
	Name              string         `yaml:"Name"`
	Version           string         `yaml:"Version"`
	ChainID           uint64         `yaml:"-"`
	VerifyingContract common.Address `yaml:"-"`
}

// Types returns EIP-712 type definitions used to sign TransferRequest.
func Types() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		PrimaryType: {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "amount", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
}

// TypedData returns the complete typed-data structure to be signed for the
// given request.
func (d Domain) TypedData(r TransferRequest) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       Types(),
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(d.ChainID)),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":     r.From.Hex(),
			"to":       r.To.Hex(),
			"amount":   bigString(r.Amount),
			"nonce":    bigString(r.Nonce),
			"deadline": strconv.FormatUint(r.Deadline, 10),
		},
	}
}

// Hash returns the EIP-712 digest of the request in the domain.
func (d Domain) Hash(r TransferRequest) (common.Hash, error) {
	if err := r.Validate(); err != nil {
		return common.Hash{}, err
	}
	return HashTypedData(d.TypedData(r))
}

// HashTypedData returns keccak256("\x19\x01" || domainSeparator || hashStruct(message))
// for arbitrary typed data.
func HashTypedData(td apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("domain: %w", err)
	}
	msgHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("message: %w", err)
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(msgHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, msgHash...)
	return crypto.Keccak256Hash(raw), nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
