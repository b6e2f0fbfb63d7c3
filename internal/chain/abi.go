package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SelectorLen is the length of a method selector prefix.
const SelectorLen = 4

var (
	// ErrShortInput indicates call data shorter than a selector.
	ErrShortInput = errors.New("call data shorter than selector")

	// ErrUnknownMethod indicates the selector matches no method of the contract.
	ErrUnknownMethod = errors.New("unknown method")
)

// MethodID is a 4-byte method selector.
type MethodID [SelectorLen]byte

// Selector returns the first four bytes of keccak256(signature), e.g. "open()".
func Selector(signature string) MethodID {
	var id MethodID
	copy(id[:], crypto.Keccak256([]byte(signature))[:SelectorLen])
	return id
}

// Bytes returns the selector as call data with no arguments.
func (m MethodID) Bytes() []byte {
	return append([]byte(nil), m[:]...)
}

// SplitInput separates call data into its selector and argument bytes.
func SplitInput(input []byte) (MethodID, []byte, error) {
	var id MethodID
	if len(input) < SelectorLen {
		return id, nil, fmt.Errorf("%d bytes: %w", len(input), ErrShortInput)
	}
	copy(id[:], input[:SelectorLen])
	return id, input[SelectorLen:], nil
}

// EncodeBool encodes v as a 32-byte word.
func EncodeBool(v bool) []byte {
	word := make([]byte, common.HashLength)
	if v {
		word[common.HashLength-1] = 1
	}
	return word
}

// EncodeAddress left-pads addr to a 32-byte word.
func EncodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), common.HashLength)
}
