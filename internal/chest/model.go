package chest

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Chest is a single-asset escrow that stays buried until its owner digs it up.
type Chest struct {
	Address   common.Address
	Token     common.Address
	Owner     common.Address
	Buried    bool
	CreatedAt time.Time
}

// Payout records the outcome of a successful open.
type Payout struct {
	Chest     common.Address
	Token     common.Address
	Recipient common.Address
	Amount    *uint256.Int
	OpenedAt  time.Time
}
