package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var (
	// ErrUnknownToken indicates no token is deployed at the address.
	ErrUnknownToken = errors.New("unknown token")

	// ErrInsufficientBalance occurs when the sender holds fewer units than requested.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance occurs when the spender was approved for less than requested.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrZeroAddress rejects transfers and approvals involving the zero address.
	ErrZeroAddress = errors.New("zero address")

	// ErrOverflow indicates a supply or balance would exceed 2^256-1.
	ErrOverflow = errors.New("amount overflow")

	// ErrInvalidSymbol rejects deployments without a symbol.
	ErrInvalidSymbol = errors.New("token symbol is required")
)

// Token describes a deployed fungible asset.
type Token struct {
	Address     common.Address
	Symbol      string
	Decimals    uint8
	TotalSupply *uint256.Int
	Deployer    common.Address
}

// Service is the connector to the external fungible-asset contracts. Every
// state-changing call names the acting address explicitly.
type Service interface {
	Deploy(ctx context.Context, deployer common.Address, symbol string, decimals uint8, supply *uint256.Int) (Token, error)
	Get(ctx context.Context, token common.Address) (Token, error)
	IsToken(ctx context.Context, addr common.Address) bool
	Assets(ctx context.Context) ([]common.Address, error)

	BalanceOf(ctx context.Context, token, holder common.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error
	Approve(ctx context.Context, token, owner, spender common.Address, amount *uint256.Int) error
}

// deriveAddress returns a fresh CREATE2-style address for a token deployed by deployer.
func deriveAddress(deployer common.Address, symbol string) common.Address {
	var salt [32]byte
	id := uuid.New()
	copy(salt[:], id[:])
	return crypto.CreateAddress2(deployer, salt, crypto.Keccak256([]byte("token"), []byte(symbol)))
}
