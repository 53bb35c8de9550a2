package fakechain

import (
	"math/big"
	"testing"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/rpcclient/ecotoken"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	adminAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	userAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestHistoricRoles(t *testing.T) {
	c := New(tokenAddr, adminAddr)
	c.Grant(roles.Auditor, userAddr) // block 1
	c.Mine()                         // block 2

	r := ecotoken.NewReader(invoker.NewHistoricAtHeight(0, c, nil), tokenAddr)
	ok, err := r.HasRole(roles.Auditor.DefaultHash(), userAddr)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = r.HasRole(roles.Admin.DefaultHash(), adminAddr)
	require.NoError(t, err)
	require.True(t, ok)

	r = ecotoken.NewReader(invoker.New(c, nil), tokenAddr)
	ok, err = r.HasRole(roles.Auditor.DefaultHash(), userAddr)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = ecotoken.NewReader(invoker.NewHistoricAtHeight(10, c, nil), tokenAddr).Name()
	require.Error(t, err)

	calls := c.Calls()
	require.Len(t, calls, 4)
	require.Equal(t, "hasRole", calls[0].Method)
	require.EqualValues(t, 0, calls[0].Height.Uint64())
	require.Nil(t, calls[2].Height)
}

func TestMissingActionReverts(t *testing.T) {
	c := New(tokenAddr, adminAddr)
	r := ecotoken.NewReader(invoker.New(c, nil), tokenAddr)
	_, err := r.ManufacturerAction(userAddr, 0)
	require.ErrorIs(t, err, invoker.ErrExecutionReverted)
	require.Equal(t, 3, (&RevertError{}).ErrorCode())
}

func TestTokenReads(t *testing.T) {
	c := New(tokenAddr, adminAddr)
	c.Mint(userAddr, big.NewInt(42))
	r := ecotoken.NewReader(invoker.New(c, nil), tokenAddr)

	b, err := r.BalanceOf(userAddr)
	require.NoError(t, err)
	require.EqualValues(t, 42, b.Int64())
	s, err := r.TotalSupply()
	require.NoError(t, err)
	require.EqualValues(t, 42, s.Int64())
	sym, err := r.Symbol()
	require.NoError(t, err)
	require.Equal(t, "ECO", sym)
	d, err := r.Decimals()
	require.NoError(t, err)
	require.Equal(t, 18, d)

	c.FailBalanceOf(userAddr)
	_, err = r.BalanceOf(userAddr)
	require.ErrorIs(t, err, invoker.ErrExecutionReverted)
}
