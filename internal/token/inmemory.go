package token

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type erc20 struct {
	meta       Token
	balances   map[common.Address]uint256.Int
	allowances map[common.Address]map[common.Address]uint256.Int
}

type inMemoryService struct {
	mu     sync.RWMutex
	tokens map[common.Address]*erc20
}

// NewInMemory creates a concurrency-safe token service simulating ERC-20
// contracts. The whole initial supply is minted to the deployer.
func NewInMemory() Service {
	return &inMemoryService{tokens: make(map[common.Address]*erc20)}
}

func (s *inMemoryService) Deploy(_ context.Context, deployer common.Address, symbol string, decimals uint8, supply *uint256.Int) (Token, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Token{}, ErrInvalidSymbol
	}
	if deployer == (common.Address{}) {
		return Token{}, ErrZeroAddress
	}
	if supply == nil {
		supply = new(uint256.Int)
	}

	addr := deriveAddress(deployer, symbol)

	meta := Token{
		Address:     addr,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: new(uint256.Int).Set(supply),
		Deployer:    deployer,
	}
	t := &erc20{
		meta:       meta,
		balances:   map[common.Address]uint256.Int{deployer: *supply},
		allowances: make(map[common.Address]map[common.Address]uint256.Int),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[addr] = t
	return copyToken(meta), nil
}

func (s *inMemoryService) Get(_ context.Context, addr common.Address) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[addr]
	if !ok {
		return Token{}, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownToken)
	}
	return copyToken(t.meta), nil
}

func (s *inMemoryService) IsToken(_ context.Context, addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[addr]
	return ok
}

func (s *inMemoryService) Assets(_ context.Context) ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Address, 0, len(s.tokens))
	for addr := range s.tokens {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out, nil
}

func (s *inMemoryService) BalanceOf(_ context.Context, token, holder common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	bal := t.balances[holder]
	return new(uint256.Int).Set(&bal), nil
}

func (s *inMemoryService) Allowance(_ context.Context, token, owner, spender common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	allowed := t.allowances[owner][spender]
	return new(uint256.Int).Set(&allowed), nil
}

func (s *inMemoryService) Transfer(_ context.Context, token, from, to common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(token)
	if err != nil {
		return err
	}
	return t.move(from, to, amount)
}

func (s *inMemoryService) TransferFrom(_ context.Context, token, spender, from, to common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(token)
	if err != nil {
		return err
	}

	allowed := t.allowances[from][spender]
	if allowed.Lt(amount) {
		return fmt.Errorf("%s approved %s of %s: %w", spender.Hex(), allowed.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	if byOwner, ok := t.allowances[from]; ok {
		byOwner[spender] = *new(uint256.Int).Sub(&allowed, amount)
	}
	return nil
}

func (s *inMemoryService) Approve(_ context.Context, token, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(token)
	if err != nil {
		return err
	}
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]uint256.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = *amount
	return nil
}

func (s *inMemoryService) lookup(addr common.Address) (*erc20, error) {
	t, ok := s.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownToken)
	}
	return t, nil
}

// move must be called with the service lock held.
func (t *erc20) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBal := t.balances[from]
	if fromBal.Lt(amount) {
		return fmt.Errorf("%s holds %s of %s %s: %w", from.Hex(), fromBal.Dec(), amount.Dec(), t.meta.Symbol, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toBal := t.balances[to]
	newTo, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return ErrOverflow
	}
	t.balances[from] = *new(uint256.Int).Sub(&fromBal, amount)
	t.balances[to] = *newTo
	return nil
}

func copyToken(t Token) Token {
	t.TotalSupply = new(uint256.Int).Set(t.TotalSupply)
	return t
}
