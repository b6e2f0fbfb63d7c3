package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

const (
	callerHeader = "X-Caller-Address"
	callerLocal  = "caller"
)

// ContractCheck reports whether addr is held by a contract of this service
// (custody wallet, chest, token). Such addresses never act through HTTP.
type ContractCheck func(ctx context.Context, addr common.Address) bool

// Caller resolves the acting address from the X-Caller-Address header and
// rejects requests that do not carry a valid one. When isContract is set,
// contract-held addresses are refused with 403.
func Caller(isContract ContractCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(callerHeader))
		if raw == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing "+callerHeader+" header")
		}
		if !common.IsHexAddress(raw) {
			return fiber.NewError(http.StatusUnauthorized, "invalid "+callerHeader+" header")
		}
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			return fiber.NewError(http.StatusUnauthorized, "zero address cannot act")
		}
		if isContract != nil && isContract(c.UserContext(), addr) {
			return fiber.NewError(http.StatusForbidden, addr.Hex()+" is a contract address and cannot act as caller")
		}
		c.Locals(callerLocal, addr)
		return c.Next()
	}
}

// CallerFrom returns the address stored by Caller.
func CallerFrom(c *fiber.Ctx) (common.Address, bool) {
	addr, ok := c.Locals(callerLocal).(common.Address)
	return addr, ok
}
