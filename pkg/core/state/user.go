package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserInfo is an aggregated view of some account used by administrators.
type UserInfo struct {
	Address     common.Address `json:"address"`
	Roles       RoleSet        `json:"roles"`
	Balance     *big.Int       `json:"balance"`
	ActionCount int            `json:"actionCount"`
}
