package state

import (
	"github.com/ecotrack/eco-go/pkg/core/roles"
)

// RoleSet is a set of roles an account has at some block height. It's always
// derived from a single batch of chain queries made at Height.
type RoleSet struct {
	IsManufacturer bool   `json:"isManufacturer"`
	IsAdmin        bool   `json:"isAdmin"`
	IsAuditor      bool   `json:"isAuditor"`
	Height         uint64 `json:"height"`
}

// Has checks whether the set contains the given role.
func (s RoleSet) Has(r roles.Role) bool {
	switch r {
	case roles.Admin:
		return s.IsAdmin
	case roles.Manufacturer:
		return s.IsManufacturer
	case roles.Auditor:
		return s.IsAuditor
	default:
		return false
	}
}

// Set returns a copy of the set with the given role flag changed.
func (s RoleSet) Set(r roles.Role, v bool) RoleSet {
	switch r {
	case roles.Admin:
		s.IsAdmin = v
	case roles.Manufacturer:
		s.IsManufacturer = v
	case roles.Auditor:
		s.IsAuditor = v
	}
	return s
}

// Roles returns the list of roles in the set ordered as roles.All.
func (s RoleSet) Roles() []roles.Role {
	var res []roles.Role
	for _, r := range roles.All {
		if s.Has(r) {
			res = append(res, r)
		}
	}
	return res
}

// Empty returns true if no roles are set.
func (s RoleSet) Empty() bool {
	return !s.IsAdmin && !s.IsManufacturer && !s.IsAuditor
}
