package state

import (
	"cmp"
	"slices"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultRecentEvents is the number of role change events shown to users.
const DefaultRecentEvents = 20

// RoleChangeEvent is a role grant or revocation derived from contract event
// logs.
type RoleChangeEvent struct {
	User        common.Address `json:"user"`
	Role        roles.Role     `json:"role"`
	Granted     bool           `json:"granted"`
	BlockHeight uint64         `json:"blockHeight"`
	LogIndex    uint           `json:"logIndex"`
	TxHash      common.Hash    `json:"txHash"`
}

// SortRoleEvents sorts events from the newest to the oldest one. Events from
// the same block are ordered by descending log index.
func SortRoleEvents(evs []RoleChangeEvent) {
	slices.SortStableFunc(evs, func(a, b RoleChangeEvent) int {
		if c := cmp.Compare(b.BlockHeight, a.BlockHeight); c != 0 {
			return c
		}
		return cmp.Compare(b.LogIndex, a.LogIndex)
	})
}

// RecentRoleEvents returns at most limit newest events (sorted, see
// SortRoleEvents). The original slice is not modified.
func RecentRoleEvents(evs []RoleChangeEvent, limit int) []RoleChangeEvent {
	res := slices.Clone(evs)
	SortRoleEvents(res)
	if limit >= 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
