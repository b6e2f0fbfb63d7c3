// Package params decodes addresses, amounts and call data from HTTP requests.
package params

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
)

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// ParseAmount decodes a base-10 unsigned amount that fits in 256 bits.
func ParseAmount(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", field, value, err)
	}
	return amount, nil
}

// ParseData decodes 0x-prefixed hex call data. An empty string is empty data.
func ParseData(field, value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0x" {
		return []byte{}, nil
	}
	data, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return data, nil
}

// Address reads a path parameter as an address, failing with 400.
func Address(c *fiber.Ctx, name string) (common.Address, error) {
	addr, err := ParseAddress(name, c.Params(name))
	if err != nil {
		return common.Address{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return addr, nil
}

// BadRequest wraps err as a 400 fiber error.
func BadRequest(err error) error {
	return fiber.NewError(http.StatusBadRequest, err.Error())
}
