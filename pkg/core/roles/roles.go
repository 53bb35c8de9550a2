/*
Package roles contains the closed set of EcoToken access-control roles and
the mapping between them and the 32-byte role identifiers used on chain.
*/
package roles

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role represents a role that can be granted to an account by the EcoToken
// contract.
type Role byte

// Role enumeration. Unknown is used for any on-chain identifier that doesn't
// correspond to one of the known roles.
const (
	Unknown Role = iota
	Admin
	Manufacturer
	Auditor
)

// All lists every known role in the order they're presented to users.
var All = []Role{Admin, Manufacturer, Auditor}

var (
	roleNames = map[Role]string{
		Unknown:      "Unknown",
		Admin:        "Admin",
		Manufacturer: "Manufacturer",
		Auditor:      "Auditor",
	}
	roleGetters = map[Role]string{
		Admin:        "DEFAULT_ADMIN_ROLE",
		Manufacturer: "MANUFACTURER_ROLE",
		Auditor:      "AUDITOR_ROLE",
	}
)

// String implements the fmt.Stringer interface.
func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return roleNames[Unknown]
}

// FromString returns the role with the given name. Unknown (as a name) is not
// a valid role.
func FromString(s string) (Role, bool) {
	for r, name := range roleNames {
		if r != Unknown && name == s {
			return r, true
		}
	}
	return Unknown, false
}

// Getter returns the name of the contract method returning the identifier of
// the role, an empty string for Unknown.
func (r Role) Getter() string {
	return roleGetters[r]
}

// DefaultHash returns the identifier AccessControl-based contracts use for
// the role: zero for Admin and keccak256 of the getter name for the others.
func (r Role) DefaultHash() common.Hash {
	switch r {
	case Admin:
		return common.Hash{}
	case Manufacturer, Auditor:
		return crypto.Keccak256Hash([]byte(r.Getter()))
	default:
		return common.Hash{0xff}
	}
}

// Hashes maps on-chain role identifiers to roles.
type Hashes map[common.Hash]Role

// DefaultHashes returns Hashes built from DefaultHash values of every known
// role.
func DefaultHashes() Hashes {
	h := make(Hashes, len(All))
	for _, r := range All {
		h[r.DefaultHash()] = r
	}
	return h
}

// Role returns the role for the given identifier or Unknown.
func (h Hashes) Role(id common.Hash) Role {
	if r, ok := h[id]; ok {
		return r
	}
	return Unknown
}

// Hash returns the identifier of the given role.
func (h Hashes) Hash(r Role) (common.Hash, bool) {
	for id, role := range h {
		if role == r {
			return id, true
		}
	}
	return common.Hash{}, false
}
