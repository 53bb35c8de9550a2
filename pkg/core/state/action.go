package state

import (
	"math/big"
)

// EcoAction is a carbon-reduction action recorded by a manufacturer. Actions
// are addressed by (manufacturer, ID) where IDs are sequential per
// manufacturer and start from zero. They're never deleted, the only mutation
// possible is auditor's verification.
type EcoAction struct {
	ID              uint64   `json:"id"`
	Description     string   `json:"description"`
	ReductionAmount *big.Int `json:"reductionAmount"`
	EvidenceHash    string   `json:"evidenceHash"`
	Verified        bool     `json:"verified"`
}

// Copy returns a deep copy of the action.
func (a EcoAction) Copy() EcoAction {
	if a.ReductionAmount != nil {
		a.ReductionAmount = new(big.Int).Set(a.ReductionAmount)
	}
	return a
}

// TotalReduction returns the sum of reduction amounts of the given actions,
// verified ones only if onlyVerified is set.
func TotalReduction(actions []EcoAction, onlyVerified bool) *big.Int {
	var sum = new(big.Int)
	for i := range actions {
		if onlyVerified && !actions[i].Verified {
			continue
		}
		if actions[i].ReductionAmount != nil {
			sum.Add(sum, actions[i].ReductionAmount)
		}
	}
	return sum
}
