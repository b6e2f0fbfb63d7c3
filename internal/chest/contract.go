package chest

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/treasury/internal/chain"
)

var (
	methodOpen           = chain.Selector("open()")
	methodUnbury         = chain.Selector("unbury()")
	methodBuried         = chain.Selector("buried()")
	methodTokenContained = chain.Selector("tokenContained()")
	methodOwner          = chain.Selector("owner()")
)

// OpenCallData is the call data for open().
func OpenCallData() []byte { return methodOpen.Bytes() }

// UnburyCallData is the call data for unbury().
func UnburyCallData() []byte { return methodUnbury.Bytes() }

type contract struct {
	svc  *Service
	addr common.Address
}

// Contract exposes the chest at addr as a callable contract.
func (s *Service) Contract(addr common.Address) chain.Contract {
	return &contract{svc: s, addr: addr}
}

func (c *contract) Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error) {
	method, _, err := chain.SplitInput(input)
	if err != nil {
		return nil, err
	}

	switch method {
	case methodOpen:
		_, err := c.svc.Open(ctx, caller, c.addr)
		return nil, err
	case methodUnbury:
		_, err := c.svc.Unbury(ctx, caller, c.addr)
		return nil, err
	case methodBuried, methodTokenContained, methodOwner:
		chest, err := c.svc.Get(ctx, c.addr)
		if err != nil {
			return nil, err
		}
		switch method {
		case methodBuried:
			return chain.EncodeBool(chest.Buried), nil
		case methodTokenContained:
			return chain.EncodeAddress(chest.Token), nil
		default:
			return chain.EncodeAddress(chest.Owner), nil
		}
	default:
		return nil, fmt.Errorf("%x: %w", method[:], chain.ErrUnknownMethod)
	}
}
