package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

type echoContract struct {
	lastCaller common.Address
}

func (e *echoContract) Call(_ context.Context, caller common.Address, input []byte) ([]byte, error) {
	e.lastCaller = caller
	return input, nil
}

func TestSelectorMatchesKnownValues(t *testing.T) {
	require.Equal(t, "0xa9059cbb", hexutil.Encode(Selector("transfer(address,uint256)").Bytes()))
	require.Equal(t, "0x095ea7b3", hexutil.Encode(Selector("approve(address,uint256)").Bytes()))
}

func TestSplitInput(t *testing.T) {
	id, args, err := SplitInput([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Equal(t, MethodID{1, 2, 3, 4}, id)
	require.Equal(t, []byte{5}, args)

	_, _, err = SplitInput([]byte{1, 2})
	require.ErrorIs(t, err, ErrShortInput)
}

func TestRouterCall(t *testing.T) {
	r := NewRouter()
	target := common.HexToAddress("0x1000000000000000000000000000000000000001")
	from := common.HexToAddress("0x2000000000000000000000000000000000000002")
	c := &echoContract{}

	require.NoError(t, r.Register(target, c))
	require.ErrorIs(t, r.Register(target, c), ErrContractExists)

	out, err := r.Call(context.Background(), from, target, []byte{9, 9, 9, 9})
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9, 9}, out)
	require.Equal(t, from, c.lastCaller)

	_, err = r.Call(context.Background(), from, from, nil)
	require.ErrorIs(t, err, ErrNoContract)
}

func TestEncodeWords(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	word := EncodeAddress(addr)
	require.Len(t, word, 32)
	require.Equal(t, addr, common.BytesToAddress(word))

	require.Equal(t, byte(1), EncodeBool(true)[31])
	require.Equal(t, make([]byte, 32), EncodeBool(false))
}
