package dashboard

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	qrcode "github.com/skip2/go-qrcode"
)

// AddressURI returns the EIP-681 URI of the account on the given chain.
func AddressURI(addr common.Address, chainID uint64) string {
	return fmt.Sprintf("ethereum:%s@%d", addr.Hex(), chainID)
}

// AddressQR renders AddressURI as a terminal QR code, two modules per
// character cell vertically.
func AddressQR(addr common.Address, chainID uint64) (string, error) {
	q, err := qrcode.New(AddressURI(addr, chainID), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("can't encode QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}
