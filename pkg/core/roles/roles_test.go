package roles

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	valid := map[string]Role{
		"Admin":        Admin,
		"Manufacturer": Manufacturer,
		"Auditor":      Auditor,
	}
	for s, expected := range valid {
		actual, ok := FromString(s)
		require.True(t, ok)
		require.Equal(t, expected, actual)
		require.Equal(t, s, actual.String())
	}

	invalid := []string{"Unknown", "admin", "Minter", ""}
	for _, s := range invalid {
		_, ok := FromString(s)
		require.False(t, ok)
	}
	require.Equal(t, "Unknown", Role(42).String())
}

func TestDefaultHashes(t *testing.T) {
	h := DefaultHashes()
	require.Equal(t, 3, len(h))
	require.Equal(t, Admin, h.Role(common.Hash{}))
	require.Equal(t, Manufacturer, h.Role(crypto.Keccak256Hash([]byte("MANUFACTURER_ROLE"))))
	require.Equal(t, Auditor, h.Role(crypto.Keccak256Hash([]byte("AUDITOR_ROLE"))))
	require.Equal(t, Unknown, h.Role(crypto.Keccak256Hash([]byte("MINTER_ROLE"))))

	id, ok := h.Hash(Auditor)
	require.True(t, ok)
	require.Equal(t, Auditor.DefaultHash(), id)

	_, ok = h.Hash(Unknown)
	require.False(t, ok)
}
