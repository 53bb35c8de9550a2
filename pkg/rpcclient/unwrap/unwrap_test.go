package unwrap

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestStdErrors(t *testing.T) {
	funcs := []func(r []any, err error) (any, error){
		func(r []any, err error) (any, error) { return BigInt(r, err) },
		func(r []any, err error) (any, error) { return Bool(r, err) },
		func(r []any, err error) (any, error) { return Uint64(r, err) },
		func(r []any, err error) (any, error) { return Uint8(r, err) },
		func(r []any, err error) (any, error) { return Hash(r, err) },
		func(r []any, err error) (any, error) { return Address(r, err) },
		func(r []any, err error) (any, error) { return UTF8String(r, err) },
		func(r []any, err error) (any, error) { return PrintableASCIIString(r, err) },
	}
	t.Run("error on input", func(t *testing.T) {
		for _, f := range funcs {
			_, err := f(nil, errors.New("some"))
			require.Error(t, err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		for _, f := range funcs {
			_, err := f([]any{}, nil)
			require.ErrorIs(t, err, ErrNull)
		}
	})
	t.Run("too many", func(t *testing.T) {
		for _, f := range funcs {
			_, err := f([]any{1, 2}, nil)
			require.Error(t, err)
		}
	})
	t.Run("wrong type", func(t *testing.T) {
		for _, f := range funcs {
			_, err := f([]any{struct{}{}}, nil)
			require.Error(t, err)
		}
	})
}

func TestValues(t *testing.T) {
	bi, err := BigInt([]any{big.NewInt(42)}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 42, bi.Int64())

	b, err := Bool([]any{true}, nil)
	require.NoError(t, err)
	require.True(t, b)

	u, err := Uint64([]any{uint8(18)}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 18, u)
	u, err = Uint64([]any{big.NewInt(math.MaxInt64)}, nil)
	require.NoError(t, err)
	require.EqualValues(t, math.MaxInt64, u)
	_, err = Uint64([]any{new(big.Int).Lsh(big.NewInt(1), 64)}, nil)
	require.Error(t, err)
	_, err = Uint64([]any{big.NewInt(-1)}, nil)
	require.Error(t, err)

	h, err := Hash([]any{[32]byte{1, 2, 3}}, nil)
	require.NoError(t, err)
	require.Equal(t, common.Hash{1, 2, 3}, h)

	a, err := Address([]any{common.Address{5}}, nil)
	require.NoError(t, err)
	require.Equal(t, common.Address{5}, a)

	s, err := PrintableASCIIString([]any{"ECO"}, nil)
	require.NoError(t, err)
	require.Equal(t, "ECO", s)
	_, err = PrintableASCIIString([]any{"\x01"}, nil)
	require.Error(t, err)
	_, err = UTF8String([]any{"\xff"}, nil)
	require.Error(t, err)
}
