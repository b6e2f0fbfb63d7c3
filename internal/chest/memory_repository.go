package chest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[common.Address]Chest
}

// NewMemoryRepository constructs an in-memory chest repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[common.Address]Chest)}
}

func (r *memoryRepository) Create(_ context.Context, chest Chest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[chest.Address]; exists {
		return fmt.Errorf("%s: %w", chest.Address.Hex(), ErrExists)
	}
	r.storage[chest.Address] = chest
	return nil
}

func (r *memoryRepository) Get(_ context.Context, addr common.Address) (Chest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chest, ok := r.storage[addr]
	if !ok {
		return Chest{}, fmt.Errorf("%s: %w", addr.Hex(), ErrNotFound)
	}
	return chest, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Chest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chest, 0, len(r.storage))
	for _, chest := range r.storage {
		out = append(out, chest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) SetBuried(_ context.Context, addr common.Address, buried bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chest, ok := r.storage[addr]
	if !ok {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrNotFound)
	}
	chest.Buried = buried
	r.storage[addr] = chest
	return nil
}
