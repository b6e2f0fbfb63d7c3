package token

import (
	"context"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/treasury/internal/infra"
	"github.com/congo-pay/treasury/internal/logging"
)

// newPostgresService connects to TREASURY_TEST_DATABASE_URL and skips when it is unset.
func newPostgresService(t *testing.T) *PostgresService {
	t.Helper()
	url := os.Getenv("TREASURY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TREASURY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url, "treasury-test")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, infra.RunMigrations(ctx, pool, logging.Discard()))
	return NewPostgresService(pool)
}

func TestPostgresServiceMatchesInMemorySemantics(t *testing.T) {
	svc := newPostgresService(t)
	ctx := context.Background()
	tok := deployMoney(t, svc)

	got, err := svc.Get(ctx, tok.Address)
	require.NoError(t, err)
	require.Equal(t, "MONEY", got.Symbol)
	require.Equal(t, uint64(1_000), got.TotalSupply.Uint64())
	require.True(t, svc.IsToken(ctx, tok.Address))
	require.False(t, svc.IsToken(ctx, vault))

	assets, err := svc.Assets(ctx)
	require.NoError(t, err)
	require.Contains(t, assets, tok.Address)

	require.NoError(t, svc.Transfer(ctx, tok.Address, captain, pirate1, uint256.NewInt(300)))
	require.ErrorIs(t, svc.Transfer(ctx, tok.Address, pirate1, vault, uint256.NewInt(301)), ErrInsufficientBalance)

	err = svc.TransferFrom(ctx, tok.Address, vault, pirate1, vault, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, svc.Approve(ctx, tok.Address, pirate1, vault, uint256.NewInt(100)))
	require.NoError(t, svc.TransferFrom(ctx, tok.Address, vault, pirate1, vault, uint256.NewInt(60)))

	allowed, err := svc.Allowance(ctx, tok.Address, pirate1, vault)
	require.NoError(t, err)
	require.Equal(t, uint64(40), allowed.Uint64())

	for holder, want := range map[common.Address]uint64{captain: 700, pirate1: 240, vault: 60} {
		bal, err := svc.BalanceOf(ctx, tok.Address, holder)
		require.NoError(t, err)
		require.Equal(t, want, bal.Uint64(), holder.Hex())
	}

	require.ErrorIs(t, svc.Transfer(ctx, tok.Address, captain, common.Address{}, uint256.NewInt(1)), ErrZeroAddress)
	_, err = svc.BalanceOf(ctx, vault, captain)
	require.ErrorIs(t, err, ErrUnknownToken)
}
