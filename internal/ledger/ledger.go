package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientLedgerBalance occurs when a holder's recorded balance for an
	// asset cannot cover a debit.
	ErrInsufficientLedgerBalance = errors.New("insufficient balance in wallet")

	// ErrOverflow indicates a credit would push a balance past 2^256-1.
	ErrOverflow = errors.New("balance overflow")

	// ErrInvalidAmount rejects nil amounts.
	ErrInvalidAmount = errors.New("amount is required")
)

const (
	// KindCredit tags journal entries that increase a balance.
	KindCredit = "credit"
	// KindDebit tags journal entries that decrease a balance.
	KindDebit = "debit"
	// KindMove tags both legs of an internal transfer.
	KindMove = "move"
)

// MoveResult captures both balances after an internal transfer.
type MoveResult struct {
	FromBalance *uint256.Int
	ToBalance   *uint256.Int
}

// Posting is one asset amount within a batch credit.
type Posting struct {
	Asset  common.Address
	Amount *uint256.Int
}

// Ledger attributes custodied asset units to holders. Unseen (holder, asset)
// pairs read as zero. Every mutation is all-or-nothing.
type Ledger interface {
	Balance(ctx context.Context, holder, asset common.Address) (*uint256.Int, error)
	Credit(ctx context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error)
	Debit(ctx context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error)
	Move(ctx context.Context, from, to, asset common.Address, amount *uint256.Int) (MoveResult, error)
	// CreditAll applies every posting to holder or none of them, returning the
	// resulting balances in posting order.
	CreditAll(ctx context.Context, holder common.Address, postings []Posting) ([]*uint256.Int, error)
	Total(ctx context.Context, asset common.Address) (*uint256.Int, error)
}

func add(balance, amount *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

func sub(balance, amount *uint256.Int) (*uint256.Int, error) {
	if balance.Lt(amount) {
		return nil, ErrInsufficientLedgerBalance
	}
	return new(uint256.Int).Sub(balance, amount), nil
}
