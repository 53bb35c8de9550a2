package metatx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Quantity is a JSON number that can be encoded either as a JSON number or as
// a string holding a decimal or 0x-prefixed hexadecimal number. It's always
// marshaled as a decimal string, so that values above 2^53 survive any JSON
// implementation.
type Quantity big.Int

// NewQuantity returns v as Quantity.
func NewQuantity(v *big.Int) *Quantity {
	return (*Quantity)(new(big.Int).Set(v))
}

// Big returns a copy of q as big.Int.
func (q *Quantity) Big() *big.Int {
	if q == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(q))
}

// MarshalJSON implements the json.Marshaler interface.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal((*big.Int)(&q).String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	s = strings.TrimSpace(s)
	var (
		v  = new(big.Int)
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok {
		return fmt.Errorf("invalid number %q", s)
	}
	*q = Quantity(*v)
	return nil
}

// RelayRequest is the body of a relay-transfer request.
type RelayRequest struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    *Quantity `json:"amount"`
	Nonce     *Quantity `json:"nonce"`
	Deadline  *Quantity `json:"deadline"`
	Signature string    `json:"signature"`
}

// RelayResponse is the body of a relay-transfer response. Successful
// responses have Success set and TxHash filled, failed ones carry Error.
type RelayResponse struct {
	Success bool         `json:"success"`
	TxHash  *common.Hash `json:"txHash,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewRelayRequest converts a signed request into its wire form.
func NewRelayRequest(r TransferRequest, sig []byte) RelayRequest {
	return RelayRequest{
		From:      r.From.Hex(),
		To:        r.To.Hex(),
		Amount:    NewQuantity(r.Amount),
		Nonce:     NewQuantity(r.Nonce),
		Deadline:  NewQuantity(new(big.Int).SetUint64(r.Deadline)),
		Signature: hexutil.Encode(sig),
	}
}

// Missing returns the names of the absent request fields.
func (r RelayRequest) Missing() []string {
	var res []string
	for _, f := range []struct {
		name    string
		present bool
	}{
		{"from", r.From != ""},
		{"to", r.To != ""},
		{"amount", r.Amount != nil},
		{"nonce", r.Nonce != nil},
		{"deadline", r.Deadline != nil},
		{"signature", r.Signature != ""},
	} {
		if !f.present {
			res = append(res, f.name)
		}
	}
	return res
}

// DecodeSignature parses the hex-encoded 65-byte signature.
func (r RelayRequest) DecodeSignature() ([]byte, error) {
	sig, err := hexutil.Decode(r.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}
	return sig, nil
}

// ErrBadDeadline is returned for deadlines that are not valid timestamps.
var ErrBadDeadline = errors.New("deadline is not a valid timestamp")

// Request converts numeric fields of the wire request into TransferRequest
// with the given (already validated) addresses.
func (r RelayRequest) Request(from, to common.Address) (TransferRequest, error) {
	d := r.Deadline.Big()
	if d == nil || d.Sign() < 0 || !d.IsUint64() {
		return TransferRequest{}, ErrBadDeadline
	}
	res := TransferRequest{
		From:     from,
		To:       to,
		Amount:   r.Amount.Big(),
		Nonce:    r.Nonce.Big(),
		Deadline: d.Uint64(),
	}
	return res, res.Validate()
}
