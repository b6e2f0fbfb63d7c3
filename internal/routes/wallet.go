package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/congo-pay/treasury/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, mutating ...fiber.Handler) {
    r.Get("/wallet", h.Info)
    r.Get("/wallet/permissions/:address", h.Permissions)
    r.Get("/wallet/balances/:holder/:asset", h.Balance)

    r.Post("/wallet/deposit", guarded(mutating, h.Deposit)...)
    r.Post("/wallet/withdraw", guarded(mutating, h.Withdraw)...)
    r.Post("/wallet/transfer", guarded(mutating, h.Transfer)...)
    r.Post("/wallet/invoke", guarded(mutating, h.Invoke)...)
}

// guarded prefixes a handler with the middleware chain applied to state-changing routes.
func guarded(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
    out := make([]fiber.Handler, 0, len(mw)+1)
    out = append(out, mw...)
    return append(out, h)
}
