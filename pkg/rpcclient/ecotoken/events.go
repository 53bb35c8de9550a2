package ecotoken

import (
	"fmt"
	"math/big"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event IDs (topic zero values) of role events.
var (
	RoleGrantedID = ABI.Events["RoleGranted"].ID
	RoleRevokedID = ABI.Events["RoleRevoked"].ID
)

// RoleEvents returns RoleGranted and RoleRevoked events emitted since the
// given block in chain order. Role identifiers are mapped to roles using
// hashes, unknown identifiers produce roles.Unknown.
func (c *Reader) RoleEvents(fromBlock uint64, hashes roles.Hashes) ([]state.RoleChangeEvent, error) {
	logs, err := c.invoker.Logs(ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.hash},
		Topics:    [][]common.Hash{{RoleGrantedID, RoleRevokedID}},
	})
	if err != nil {
		return nil, err
	}
	res := make([]state.RoleChangeEvent, 0, len(logs))
	for i := range logs {
		ev, err := RoleEventFromLog(&logs[i], hashes)
		if err != nil {
			return nil, fmt.Errorf("log %d of tx %s: %w", logs[i].Index, logs[i].TxHash, err)
		}
		res = append(res, ev)
	}
	return res, nil
}

// RoleEventFromLog decodes RoleGranted or RoleRevoked log.
func RoleEventFromLog(l *types.Log, hashes roles.Hashes) (state.RoleChangeEvent, error) {
	if len(l.Topics) != 4 {
		return state.RoleChangeEvent{}, fmt.Errorf("wrong number of topics: %d", len(l.Topics))
	}
	var granted bool
	switch l.Topics[0] {
	case RoleGrantedID:
		granted = true
	case RoleRevokedID:
	default:
		return state.RoleChangeEvent{}, fmt.Errorf("not a role event: %s", l.Topics[0])
	}
	return state.RoleChangeEvent{
		User:        common.BytesToAddress(l.Topics[2].Bytes()),
		Role:        hashes.Role(l.Topics[1]),
		Granted:     granted,
		BlockHeight: l.BlockNumber,
		LogIndex:    l.Index,
		TxHash:      l.TxHash,
	}, nil
}
