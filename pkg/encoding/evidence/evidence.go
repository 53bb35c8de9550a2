/*
Package evidence computes content identifiers of eco action evidence
documents. Identifiers are base58-encoded sha2-256 multihashes (the form used
by IPFS CIDv0, starting with "Qm"), so a document stored in IPFS can be found
by the hash recorded on chain.
*/
package evidence

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58"
)

const (
	// sha2-256 multihash code and digest length.
	hashCode = 0x12
	hashLen  = sha256.Size
)

// ErrInvalidHash is returned for strings that are not evidence identifiers.
var ErrInvalidHash = errors.New("invalid evidence hash")

// FromBytes returns the identifier of the given document.
func FromBytes(data []byte) string {
	d := sha256.Sum256(data)
	return encode(d[:])
}

// FromReader returns the identifier of the document read from r.
func FromReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return encode(h.Sum(nil)), nil
}

// FromFile returns the identifier of the file.
func FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(f)
}

func encode(digest []byte) string {
	return base58.Encode(append([]byte{hashCode, hashLen}, digest...))
}

// Digest decodes the identifier returning the sha2-256 digest.
func Digest(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(b) != hashLen+2 || b[0] != hashCode || b[1] != hashLen {
		return nil, fmt.Errorf("%w: not a sha2-256 multihash", ErrInvalidHash)
	}
	return b[2:], nil
}

// IsValid checks whether s is a well-formed identifier.
func IsValid(s string) bool {
	_, err := Digest(s)
	return err == nil
}

// Matches checks whether the identifier corresponds to the document.
func Matches(s string, data []byte) bool {
	d, err := Digest(s)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return bytes.Equal(d, sum[:])
}
