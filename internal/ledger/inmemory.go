package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type key struct {
	holder common.Address
	asset  common.Address
}

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[key]uint256.Int
}

// NewInMemory creates a concurrency-safe in-memory ledger.
func NewInMemory() Ledger {
	return &inMemoryLedger{balances: make(map[key]uint256.Int)}
}

func (l *inMemoryLedger) Balance(_ context.Context, holder, asset common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal := l.balances[key{holder, asset}]
	return new(uint256.Int).Set(&bal), nil
}

func (l *inMemoryLedger) Credit(_ context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{holder, asset}
	bal := l.balances[k]
	updated, err := add(&bal, amount)
	if err != nil {
		return nil, err
	}
	l.balances[k] = *updated
	return updated, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{holder, asset}
	bal := l.balances[k]
	updated, err := sub(&bal, amount)
	if err != nil {
		return nil, err
	}
	l.balances[k] = *updated
	return updated, nil
}

func (l *inMemoryLedger) Move(_ context.Context, from, to, asset common.Address, amount *uint256.Int) (MoveResult, error) {
	if amount == nil {
		return MoveResult{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey, toKey := key{from, asset}, key{to, asset}
	fromBal := l.balances[fromKey]
	fromAfter, err := sub(&fromBal, amount)
	if err != nil {
		return MoveResult{}, err
	}
	if from == to {
		return MoveResult{FromBalance: new(uint256.Int).Set(&fromBal), ToBalance: new(uint256.Int).Set(&fromBal)}, nil
	}

	toBal := l.balances[toKey]
	toAfter, err := add(&toBal, amount)
	if err != nil {
		return MoveResult{}, err
	}

	l.balances[fromKey] = *fromAfter
	l.balances[toKey] = *toAfter
	return MoveResult{FromBalance: fromAfter, ToBalance: toAfter}, nil
}

func (l *inMemoryLedger) CreditAll(_ context.Context, holder common.Address, postings []Posting) ([]*uint256.Int, error) {
	for _, p := range postings {
		if p.Amount == nil {
			return nil, ErrInvalidAmount
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[key]*uint256.Int, len(postings))
	out := make([]*uint256.Int, len(postings))
	for i, p := range postings {
		k := key{holder, p.Asset}
		bal, ok := staged[k]
		if !ok {
			stored := l.balances[k]
			bal = &stored
		}
		updated, err := add(bal, p.Amount)
		if err != nil {
			return nil, fmt.Errorf("credit %s: %w", p.Asset.Hex(), err)
		}
		staged[k] = updated
		out[i] = updated
	}
	for k, bal := range staged {
		l.balances[k] = *bal
	}
	return out, nil
}

func (l *inMemoryLedger) Total(_ context.Context, asset common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := new(uint256.Int)
	for k, bal := range l.balances {
		if k.asset != asset {
			continue
		}
		b := bal
		total.Add(total, &b)
	}
	return total, nil
}
