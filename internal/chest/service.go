package chest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/congo-pay/treasury/internal/chain"
	"github.com/congo-pay/treasury/internal/logging"
	"github.com/congo-pay/treasury/internal/notification"
	"github.com/congo-pay/treasury/internal/token"
)

var (
	// ErrNotFound indicates no chest exists at the address.
	ErrNotFound = errors.New("treasure chest not found")

	// ErrExists indicates a chest is already stored at the address.
	ErrExists = errors.New("treasure chest exists")

	// ErrUnauthorized indicates the caller is not the chest owner.
	ErrUnauthorized = errors.New("caller is not the owner")

	// ErrStillBuried indicates open was called before unbury.
	ErrStillBuried = errors.New("treasure chest has not been found yet")

	// ErrEmpty indicates the chest holds none of its token.
	ErrEmpty = errors.New("treasure chest is empty")
)

// Registrar binds contracts to addresses so they can be reached through forwarded calls.
type Registrar interface {
	Register(addr common.Address, c chain.Contract) error
}

// Service runs the treasure chest state machine: buried -> unburied -> paid out.
type Service struct {
	repo      Repository
	tokens    token.Service
	registrar Registrar
	notifier  notification.Notifier
	logger    *slog.Logger

	// mu serialises unbury and open so the first successful payout wins.
	mu sync.Mutex
}

// NewService builds a chest service. registrar and notifier may be nil.
func NewService(repo Repository, tokens token.Service, registrar Registrar, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, tokens: tokens, registrar: registrar, notifier: notifier, logger: logger}
}

// Deploy creates a buried chest holding tokenAddr, owned by owner.
func (s *Service) Deploy(ctx context.Context, owner, tokenAddr common.Address) (Chest, error) {
	if owner == (common.Address{}) {
		return Chest{}, fmt.Errorf("owner is required")
	}
	if _, err := s.tokens.Get(ctx, tokenAddr); err != nil {
		return Chest{}, err
	}

	var salt [32]byte
	id := uuid.New()
	copy(salt[:], id[:])
	addr := crypto.CreateAddress2(owner, salt, crypto.Keccak256([]byte("chest"), tokenAddr.Bytes()))

	chest := Chest{
		Address:   addr,
		Token:     tokenAddr,
		Owner:     owner,
		Buried:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, chest); err != nil {
		return Chest{}, err
	}
	if err := s.register(addr); err != nil {
		return Chest{}, err
	}

	s.logger.Info("chest.deploy completed",
		slog.String("chest", addr.Hex()),
		slog.String("owner", owner.Hex()),
		slog.String("token", tokenAddr.Hex()),
	)
	return chest, nil
}

// Restore registers every persisted chest with the registrar and returns how many were bound.
func (s *Service) Restore(ctx context.Context) (int, error) {
	chests, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range chests {
		if err := s.register(c.Address); err != nil && !errors.Is(err, chain.ErrContractExists) {
			return 0, err
		}
	}
	return len(chests), nil
}

// Get returns chest metadata.
func (s *Service) Get(ctx context.Context, addr common.Address) (Chest, error) {
	return s.repo.Get(ctx, addr)
}

// List returns all chests.
func (s *Service) List(ctx context.Context) ([]Chest, error) {
	return s.repo.List(ctx)
}

// Balance returns the chest's external balance of its token.
func (s *Service) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	chest, err := s.repo.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return s.tokens.BalanceOf(ctx, chest.Token, chest.Address)
}

// Unbury marks the chest as found. Only the owner may call it; repeated calls are no-ops.
func (s *Service) Unbury(ctx context.Context, caller, addr common.Address) (Chest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chest, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Chest{}, err
	}
	if caller != chest.Owner {
		return Chest{}, fmt.Errorf("%s: %w", caller.Hex(), ErrUnauthorized)
	}
	if !chest.Buried {
		return chest, nil
	}
	if err := s.repo.SetBuried(ctx, addr, false); err != nil {
		return Chest{}, err
	}
	chest.Buried = false

	s.logger.Info("chest.unbury completed", slog.String("chest", addr.Hex()))
	return chest, nil
}

// Open pays the chest's entire token balance to the caller. Any address may
// open an unburied, funded chest.
func (s *Service) Open(ctx context.Context, caller, addr common.Address) (Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chest, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Payout{}, err
	}
	if chest.Buried {
		return Payout{}, ErrStillBuried
	}

	amount, err := s.tokens.BalanceOf(ctx, chest.Token, chest.Address)
	if err != nil {
		return Payout{}, err
	}
	if amount.IsZero() {
		return Payout{}, ErrEmpty
	}
	if err := s.tokens.Transfer(ctx, chest.Token, chest.Address, caller, amount); err != nil {
		return Payout{}, fmt.Errorf("pay out %s: %w", addr.Hex(), err)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindChestOpened,
			Destination: caller.Hex(),
			Body:        fmt.Sprintf("Chest %s paid out %s of %s", addr.Hex(), amount.Dec(), chest.Token.Hex()),
		})
	}
	s.logger.Info("chest.open completed",
		slog.String("chest", addr.Hex()),
		slog.String("recipient", caller.Hex()),
		slog.String("amount", amount.Dec()),
	)
	return Payout{
		Chest:     addr,
		Token:     chest.Token,
		Recipient: caller,
		Amount:    amount,
		OpenedAt:  time.Now().UTC(),
	}, nil
}

func (s *Service) register(addr common.Address) error {
	if s.registrar == nil {
		return nil
	}
	return s.registrar.Register(addr, s.Contract(addr))
}
