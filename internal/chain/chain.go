package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoContract indicates no contract is registered at the target address.
	ErrNoContract = errors.New("no contract at address")

	// ErrContractExists indicates the address is already bound to a contract.
	ErrContractExists = errors.New("contract already registered")
)

// Contract is an externally callable piece of code bound to an address.
type Contract interface {
	Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error)
}

// Caller forwards a call to target with from as the sender.
type Caller interface {
	Call(ctx context.Context, from, to common.Address, input []byte) ([]byte, error)
}

// Router dispatches calls to contracts registered by address.
type Router struct {
	mu        sync.RWMutex
	contracts map[common.Address]Contract
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{contracts: make(map[common.Address]Contract)}
}

// Register binds a contract to addr.
func (r *Router) Register(addr common.Address, c Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contracts[addr]; exists {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrContractExists)
	}
	r.contracts[addr] = c
	return nil
}

// Lookup returns the contract bound to addr.
func (r *Router) Lookup(addr common.Address) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[addr]
	return c, ok
}

// Call runs input against the contract at to. The read lock is released before
// the contract executes so contracts may register or call further contracts.
func (r *Router) Call(ctx context.Context, from, to common.Address, input []byte) ([]byte, error) {
	c, ok := r.Lookup(to)
	if !ok {
		return nil, fmt.Errorf("%s: %w", to.Hex(), ErrNoContract)
	}
	return c.Call(ctx, from, input)
}
