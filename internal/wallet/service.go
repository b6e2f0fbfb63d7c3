package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/congo-pay/treasury/internal/chain"
	"github.com/congo-pay/treasury/internal/ledger"
	"github.com/congo-pay/treasury/internal/logging"
	"github.com/congo-pay/treasury/internal/notification"
	"github.com/congo-pay/treasury/internal/permission"
	"github.com/congo-pay/treasury/internal/token"
)

var (
	// ErrInvokeFailed wraps any failure of a forwarded call.
	ErrInvokeFailed = errors.New("invoke failed")

	// ErrReentrantCall rejects state-changing calls made into the wallet from
	// inside one of its own forwarded calls.
	ErrReentrantCall = errors.New("reentrant call into wallet")

	// ErrInvalidDestination rejects ledger transfers to the zero address.
	ErrInvalidDestination = errors.New("invalid destination address")

	// ErrInvalidAmount rejects missing amounts.
	ErrInvalidAmount = errors.New("amount is required")
)

type invokeKey struct{}

// CustodyAddress derives the address a wallet administered by admin holds assets under.
func CustodyAddress(admin common.Address) common.Address {
	return crypto.CreateAddress(admin, 0)
}

// Params groups the collaborators of a wallet service.
type Params struct {
	// Address is the custody address; derived from the admin when zero.
	Address     common.Address
	Permissions *permission.Registry
	Ledger      ledger.Ledger
	Tokens      token.Service
	Calls       chain.Caller
	Notifier    notification.Notifier
	Logger      *slog.Logger
}

// Service is a permissioned custody wallet. Only permitted callers may change
// state; reads are unrestricted.
type Service struct {
	address     common.Address
	permissions *permission.Registry
	ledger      ledger.Ledger
	tokens      token.Service
	calls       chain.Caller
	notifier    notification.Notifier
	logger      *slog.Logger

	// custody serialises operations that move the wallet's external balance so
	// invoke snapshots never observe a concurrent deposit or withdrawal.
	custody sync.Mutex
}

// NewService builds a wallet service instance.
func NewService(p Params) (*Service, error) {
	if p.Permissions == nil {
		return nil, fmt.Errorf("permission registry is required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if p.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if p.Calls == nil {
		return nil, fmt.Errorf("call router is required")
	}
	if p.Address == (common.Address{}) {
		p.Address = CustodyAddress(p.Permissions.Admin())
	}
	if p.Logger == nil {
		p.Logger = logging.Discard()
	}
	return &Service{
		address:     p.Address,
		permissions: p.Permissions,
		ledger:      p.Ledger,
		tokens:      p.Tokens,
		calls:       p.Calls,
		notifier:    p.Notifier,
		logger:      p.Logger,
	}, nil
}

// Address returns the custody address.
func (s *Service) Address() common.Address {
	return s.address
}

// Admin returns the wallet admin.
func (s *Service) Admin() common.Address {
	return s.permissions.Admin()
}

// Members returns the permitted set.
func (s *Service) Members() []common.Address {
	return s.permissions.Members()
}

// IsAdmin reports whether addr administers the wallet.
func (s *Service) IsAdmin(addr common.Address) bool {
	return s.permissions.IsAdmin(addr)
}

// IsPermitted reports whether addr may change wallet state.
func (s *Service) IsPermitted(addr common.Address) bool {
	return s.permissions.IsPermitted(addr)
}

// BalanceOf returns the ledger balance of holder for asset.
func (s *Service) BalanceOf(ctx context.Context, holder, asset common.Address) (Balance, error) {
	amount, err := s.ledger.Balance(ctx, holder, asset)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Holder: holder, Asset: asset, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Deposit pulls amount of asset from the caller using the allowance granted to
// the wallet and credits the caller's ledger balance.
func (s *Service) Deposit(ctx context.Context, caller, asset common.Address, amount *uint256.Int) (Balance, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return Balance{}, err
	}
	if amount == nil {
		return Balance{}, ErrInvalidAmount
	}

	s.custody.Lock()
	defer s.custody.Unlock()

	current, err := s.ledger.Balance(ctx, caller, asset)
	if err != nil {
		return Balance{}, err
	}
	if _, overflow := new(uint256.Int).AddOverflow(current, amount); overflow {
		return Balance{}, fmt.Errorf("deposit %s: %w", asset.Hex(), ledger.ErrOverflow)
	}

	if err := s.tokens.TransferFrom(ctx, asset, s.address, caller, s.address, amount); err != nil {
		return Balance{}, fmt.Errorf("deposit %s: %w", asset.Hex(), err)
	}

	updated, err := s.ledger.Credit(ctx, caller, asset, amount)
	if err != nil {
		if refundErr := s.tokens.Transfer(ctx, asset, s.address, caller, amount); refundErr != nil {
			s.logger.Error("deposit refund failed",
				slog.String("caller", caller.Hex()),
				slog.String("asset", asset.Hex()),
				slog.String("amount", amount.Dec()),
				slog.Any("error", refundErr),
			)
		}
		return Balance{}, fmt.Errorf("deposit %s: %w", asset.Hex(), err)
	}

	s.logger.Info("wallet.deposit completed",
		slog.String("caller", caller.Hex()),
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.Dec()),
	)
	return Balance{Holder: caller, Asset: asset, Amount: updated, AsOf: time.Now().UTC()}, nil
}

// Withdraw debits the caller's ledger balance and sends the same amount out of
// custody to the caller. The debit lands before the external transfer.
func (s *Service) Withdraw(ctx context.Context, caller, asset common.Address, amount *uint256.Int) (Balance, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return Balance{}, err
	}
	if amount == nil {
		return Balance{}, ErrInvalidAmount
	}

	s.custody.Lock()
	defer s.custody.Unlock()

	updated, err := s.ledger.Debit(ctx, caller, asset, amount)
	if err != nil {
		return Balance{}, fmt.Errorf("withdraw %s: %w", asset.Hex(), err)
	}

	if err := s.tokens.Transfer(ctx, asset, s.address, caller, amount); err != nil {
		if _, creditErr := s.ledger.Credit(ctx, caller, asset, amount); creditErr != nil {
			s.logger.Error("withdraw rollback failed",
				slog.String("caller", caller.Hex()),
				slog.String("asset", asset.Hex()),
				slog.String("amount", amount.Dec()),
				slog.Any("error", creditErr),
			)
		}
		return Balance{}, fmt.Errorf("withdraw %s: %w", asset.Hex(), err)
	}

	s.logger.Info("wallet.withdraw completed",
		slog.String("caller", caller.Hex()),
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.Dec()),
	)
	return Balance{Holder: caller, Asset: asset, Amount: updated, AsOf: time.Now().UTC()}, nil
}

// Transfer reattributes amount of asset from the caller to destination inside
// the ledger. The wallet's external custody is unchanged.
func (s *Service) Transfer(ctx context.Context, caller, asset common.Address, amount *uint256.Int, destination common.Address) (TransferResult, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return TransferResult{}, err
	}
	if amount == nil {
		return TransferResult{}, ErrInvalidAmount
	}
	if destination == (common.Address{}) {
		return TransferResult{}, ErrInvalidDestination
	}

	res, err := s.ledger.Move(ctx, caller, destination, asset, amount)
	if err != nil {
		return TransferResult{}, fmt.Errorf("transfer %s: %w", asset.Hex(), err)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindLedgerTransfer,
			Destination: destination.Hex(),
			Body:        fmt.Sprintf("You received %s of %s from %s", amount.Dec(), asset.Hex(), caller.Hex()),
		})
	}

	return TransferResult{
		Asset:       asset,
		From:        caller,
		To:          destination,
		FromBalance: res.FromBalance,
		ToBalance:   res.ToBalance,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// Invoke forwards data to target with the wallet as sender and credits the
// caller with every asset the wallet received while the call ran.
func (s *Service) Invoke(ctx context.Context, caller, target common.Address, data []byte) (InvokeResult, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return InvokeResult{}, err
	}
	if target == s.address {
		return InvokeResult{}, fmt.Errorf("%w: wallet cannot call itself", ErrInvokeFailed)
	}
	if s.tokens.IsToken(ctx, target) {
		return InvokeResult{}, fmt.Errorf("%w: %s is a custodied asset", ErrInvokeFailed, target.Hex())
	}

	s.custody.Lock()
	defer s.custody.Unlock()

	assets, err := s.tokens.Assets(ctx)
	if err != nil {
		return InvokeResult{}, err
	}
	before, err := s.snapshot(ctx, assets)
	if err != nil {
		return InvokeResult{}, err
	}

	out, err := s.calls.Call(context.WithValue(ctx, invokeKey{}, s.address), s.address, target, data)
	if err != nil {
		s.logger.Warn("wallet.invoke failed",
			slog.String("caller", caller.Hex()),
			slog.String("target", target.Hex()),
			slog.Any("error", err),
		)
		return InvokeResult{}, fmt.Errorf("%w: %w", ErrInvokeFailed, err)
	}

	after, err := s.snapshot(ctx, assets)
	if err != nil {
		return InvokeResult{}, err
	}

	res := InvokeResult{Target: target, Output: out}
	var postings []ledger.Posting
	for i, asset := range assets {
		if !after[i].Gt(before[i]) {
			if after[i].Lt(before[i]) {
				s.logger.Warn("custody decreased during invoke",
					slog.String("target", target.Hex()),
					slog.String("asset", asset.Hex()),
				)
			}
			continue
		}
		postings = append(postings, ledger.Posting{Asset: asset, Amount: new(uint256.Int).Sub(after[i], before[i])})
	}
	if len(postings) > 0 {
		if _, err := s.ledger.CreditAll(ctx, caller, postings); err != nil {
			s.logger.Error("wallet.invoke proceeds not credited",
				slog.String("caller", caller.Hex()),
				slog.String("target", target.Hex()),
				slog.Any("error", err),
			)
			return res, fmt.Errorf("credit invoke proceeds: %w", err)
		}
	}
	for _, p := range postings {
		res.Credited = append(res.Credited, Proceeds{Asset: p.Asset, Amount: p.Amount})
		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindInvokeProceeds,
				Destination: caller.Hex(),
				Body:        fmt.Sprintf("Call to %s credited %s of %s", target.Hex(), p.Amount.Dec(), p.Asset.Hex()),
			})
		}
	}
	res.CompletedAt = time.Now().UTC()

	s.logger.Info("wallet.invoke completed",
		slog.String("caller", caller.Hex()),
		slog.String("target", target.Hex()),
		slog.Int("credited_assets", len(res.Credited)),
	)
	return res, nil
}

func (s *Service) authorize(ctx context.Context, caller common.Address) error {
	if invoker, ok := ctx.Value(invokeKey{}).(common.Address); ok && invoker == s.address {
		return ErrReentrantCall
	}
	return s.permissions.CheckPermitted(caller)
}

func (s *Service) snapshot(ctx context.Context, assets []common.Address) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(assets))
	for i, asset := range assets {
		bal, err := s.tokens.BalanceOf(ctx, asset, s.address)
		if err != nil {
			return nil, err
		}
		out[i] = bal
	}
	return out, nil
}
