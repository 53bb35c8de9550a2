package metatx

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLen is the length of a raw r || s || v signature.
const SignatureLen = crypto.SignatureLength

// ErrInvalidSignature is returned when the signature can't be parsed or the
// signer can't be recovered from it.
var ErrInvalidSignature = errors.New("invalid signature")

// ToWire converts a signature with recovery id v in {0, 1} to the wire
// format with v in {27, 28}. Signatures already in the wire format are
// returned as is (copied).
func ToWire(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}
	res := common.CopyBytes(sig)
	if res[64] < 27 {
		res[64] += 27
	}
	return res, nil
}

// FromWire converts a wire-format signature (v in {27, 28} or {0, 1}) to the
// form with v in {0, 1} expected by recovery functions.
func FromWire(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}
	res := common.CopyBytes(sig)
	if res[64] >= 27 {
		res[64] -= 27
	}
	if res[64] > 1 {
		return nil, fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig[64])
	}
	return res, nil
}

// RecoverHash returns the address of the key that produced the signature
// over the given digest.
func RecoverHash(digest common.Hash, sig []byte) (common.Address, error) {
	s, err := FromWire(sig)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest.Bytes(), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Recover returns the signer of the request in the given domain.
func (d Domain) Recover(r TransferRequest, sig []byte) (common.Address, error) {
	digest, err := d.Hash(r)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverHash(digest, sig)
}

// Verify checks that the request is signed by its From address.
func (d Domain) Verify(r TransferRequest, sig []byte) error {
	signer, err := d.Recover(r, sig)
	if err != nil {
		return err
	}
	if signer != r.From {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}
	return nil
}
