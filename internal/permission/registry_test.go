package permission

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	captain  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	pirate1  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	pirate2  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	cabinBoy = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestRegistryAdminIsPermitted(t *testing.T) {
	r := NewRegistry(captain, []common.Address{pirate1, pirate2})

	require.True(t, r.IsAdmin(captain))
	require.False(t, r.IsAdmin(pirate1))
	require.True(t, r.IsPermitted(captain))
	require.True(t, r.IsPermitted(pirate1))
	require.True(t, r.IsPermitted(pirate2))
	require.False(t, r.IsPermitted(cabinBoy))
}

func TestRegistryIgnoresDuplicatesAndZero(t *testing.T) {
	r := NewRegistry(captain, []common.Address{pirate1, pirate1, captain, {}})

	members := r.Members()
	require.Len(t, members, 2)
	require.Equal(t, pirate1, members[0])
	require.Equal(t, captain, members[1])
	require.False(t, r.IsPermitted(common.Address{}))
}

func TestRegistryEmptyListStillPermitsAdmin(t *testing.T) {
	r := NewRegistry(captain, nil)

	require.NoError(t, r.CheckPermitted(captain))
	require.NoError(t, r.CheckAdmin(captain))
}

func TestRegistryChecks(t *testing.T) {
	r := NewRegistry(captain, []common.Address{pirate1})

	require.ErrorIs(t, r.CheckPermitted(cabinBoy), ErrNotPermitted)
	require.ErrorIs(t, r.CheckAdmin(pirate1), ErrUnauthorized)
	require.NoError(t, r.CheckPermitted(pirate1))
}
