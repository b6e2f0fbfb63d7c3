package chest

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/treasury/internal/chain"
	"github.com/congo-pay/treasury/internal/token"
)

var (
	captain = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	pirate1 = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	pirate2 = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

type fixture struct {
	svc    *Service
	tokens token.Service
	router *chain.Router
	money  common.Address
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tokens := token.NewInMemory()
	money, err := tokens.Deploy(context.Background(), captain, "MONEY", 18, uint256.NewInt(1_000))
	require.NoError(t, err)
	router := chain.NewRouter()
	return fixture{
		svc:    NewService(NewMemoryRepository(), tokens, router, nil, nil),
		tokens: tokens,
		router: router,
		money:  money.Address,
	}
}

func (f fixture) fund(t *testing.T, chest common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.tokens.Transfer(context.Background(), f.money, captain, chest, uint256.NewInt(amount)))
}

func TestDeployStartsBuried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)
	require.True(t, c.Buried)
	require.Equal(t, captain, c.Owner)
	require.Equal(t, f.money, c.Token)

	_, ok := f.router.Lookup(c.Address)
	require.True(t, ok, "chest should be callable")

	other, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)
	require.NotEqual(t, c.Address, other.Address)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDeployUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Deploy(context.Background(), captain, pirate2)
	require.ErrorIs(t, err, token.ErrUnknownToken)
}

func TestTreasureHunt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, pirate1, c.Address)
	require.ErrorIs(t, err, ErrStillBuried)

	_, err = f.svc.Unbury(ctx, pirate1, c.Address)
	require.ErrorIs(t, err, ErrUnauthorized)

	unburied, err := f.svc.Unbury(ctx, captain, c.Address)
	require.NoError(t, err)
	require.False(t, unburied.Buried)

	_, err = f.svc.Open(ctx, pirate1, c.Address)
	require.ErrorIs(t, err, ErrEmpty)

	f.fund(t, c.Address, 75)

	payout, err := f.svc.Open(ctx, pirate1, c.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(75), payout.Amount.Uint64())
	require.Equal(t, pirate1, payout.Recipient)

	bal, err := f.tokens.BalanceOf(ctx, f.money, pirate1)
	require.NoError(t, err)
	require.Equal(t, uint64(75), bal.Uint64())

	left, err := f.svc.Balance(ctx, c.Address)
	require.NoError(t, err)
	require.True(t, left.IsZero())

	_, err = f.svc.Open(ctx, pirate2, c.Address)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestUnburyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.svc.Unbury(ctx, captain, c.Address)
		require.NoError(t, err)
		require.False(t, got.Buried)
	}
}

func TestMissingChest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, pirate2)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Open(ctx, pirate1, pirate2)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Unbury(ctx, captain, pirate2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentOpensPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)
	_, err = f.svc.Unbury(ctx, captain, c.Address)
	require.NoError(t, err)
	f.fund(t, c.Address, 75)

	const openers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Open(ctx, pirate1, c.Address); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrEmpty)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	bal, err := f.tokens.BalanceOf(ctx, f.money, pirate1)
	require.NoError(t, err)
	require.Equal(t, uint64(75), bal.Uint64())
}

func TestRestoreRegistersPersistedChests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Deploy(ctx, captain, f.money)
	require.NoError(t, err)

	router := chain.NewRouter()
	restarted := NewService(f.svc.repo, f.tokens, router, nil, nil)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, ok := router.Lookup(c.Address)
	require.True(t, ok)

	n, err = restarted.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
