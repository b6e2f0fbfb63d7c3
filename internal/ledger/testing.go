package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SeedBalance is a test helper that overwrites a balance when using the in-memory ledger.
func SeedBalance(l Ledger, holder, asset common.Address, amount *uint256.Int) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[key{holder, asset}] = *amount
	}
}
