package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultTransferValidity is the default validity window of gasless transfer
// requests.
const DefaultTransferValidity = metatx.DefaultValidity

type (
	// ProtocolConfiguration describes the network: the chain, contracts
	// deployed there and signing domain.
	ProtocolConfiguration struct {
		// ChainID is the only chain ID the application works with.
		ChainID           uint64                `yaml:"ChainID"`
		ChainName         string                `yaml:"ChainName"`
		RPCURLs           []string              `yaml:"RPCURLs"`
		BlockExplorerURLs []string              `yaml:"BlockExplorerURLs"`
		NativeCurrency    wallet.NativeCurrency `yaml:"NativeCurrency"`

		// EcoToken is the address of EcoToken contract.
		EcoToken common.Address `yaml:"EcoToken"`
		// MetaTransfer is the address of the contract executing signed
		// transfers, it can be the same as EcoToken.
		MetaTransfer common.Address `yaml:"MetaTransfer"`
		// EIP712 holds the signing domain of MetaTransfer, chain ID and
		// verifying contract are filled from the fields above.
		EIP712 metatx.Domain `yaml:"EIP712"`

		TokenDecimals int `yaml:"TokenDecimals"`
		// TransferValidity is the deadline offset of gasless transfers.
		TransferValidity time.Duration `yaml:"TransferValidity"`
		// RoleEventsFromBlock is the block to start role event search
		// from, usually the contract deployment height.
		RoleEventsFromBlock uint64 `yaml:"RoleEventsFromBlock"`
	}
)

// Validate checks ProtocolConfiguration for internal consistency.
func (p ProtocolConfiguration) Validate() error {
	if p.ChainID == 0 {
		return errors.New("ChainID: zero chain ID")
	}
	if p.EcoToken == (common.Address{}) {
		return fmt.Errorf("EcoToken: %w", errEmpty)
	}
	if p.MetaTransfer == (common.Address{}) {
		return fmt.Errorf("MetaTransfer: %w", errEmpty)
	}
	if p.EIP712.Name == "" || p.EIP712.Version == "" {
		return errors.New("EIP712: name and version are required")
	}
	if p.TokenDecimals < 0 || p.TokenDecimals > 77 {
		return fmt.Errorf("TokenDecimals: invalid value %d", p.TokenDecimals)
	}
	if p.TransferValidity <= 0 {
		return fmt.Errorf("TransferValidity: must be positive, got %s", p.TransferValidity)
	}
	return nil
}

// Domain returns the EIP-712 signing domain of gasless transfers.
func (p ProtocolConfiguration) Domain() metatx.Domain {
	d := p.EIP712
	d.ChainID = p.ChainID
	d.VerifyingContract = p.MetaTransfer
	return d
}

// ChainParams returns the metadata wallets need to add the chain.
func (p ProtocolConfiguration) ChainParams() wallet.ChainParams {
	return wallet.ChainParams{
		ChainID:           p.ChainID,
		ChainName:         p.ChainName,
		RPCURLs:           append([]string(nil), p.RPCURLs...),
		BlockExplorerURLs: append([]string(nil), p.BlockExplorerURLs...),
		NativeCurrency:    p.NativeCurrency,
	}
}
