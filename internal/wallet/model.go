package wallet

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Balance is a holder's ledger attribution for one asset.
type Balance struct {
	Holder common.Address
	Asset  common.Address
	Amount *uint256.Int
	AsOf   time.Time
}

// TransferResult describes the ledger outcome of an internal transfer.
type TransferResult struct {
	Asset       common.Address
	From        common.Address
	To          common.Address
	FromBalance *uint256.Int
	ToBalance   *uint256.Int
	CompletedAt time.Time
}

// Proceeds is the amount of one asset the wallet received during a forwarded call.
type Proceeds struct {
	Asset  common.Address
	Amount *uint256.Int
}

// InvokeResult describes a forwarded call and what it credited to the caller.
type InvokeResult struct {
	Target      common.Address
	Output      []byte
	Credited    []Proceeds
	CompletedAt time.Time
}
