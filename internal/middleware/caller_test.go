package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

func TestCallerHeader(t *testing.T) {
	app := fiber.New()
	app.Use(Caller(nil))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		addr, ok := CallerFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(addr.Hex())
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: fiber.StatusUnauthorized},
		{name: "malformed", header: "0x1234", status: fiber.StatusUnauthorized},
		{name: "zero", header: "0x0000000000000000000000000000000000000000", status: fiber.StatusUnauthorized},
		{name: "valid", header: callerA, status: fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set(callerHeader, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestCallerRejectsContractAddresses(t *testing.T) {
	custody := common.HexToAddress(callerB)
	app := fiber.New()
	app.Use(Caller(func(_ context.Context, addr common.Address) bool { return addr == custody }))
	app.Post("/act", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	send := func(caller string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/act", nil)
		req.Header.Set(callerHeader, caller)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	if got := send(callerB); got != fiber.StatusForbidden {
		t.Fatalf("contract caller: expected %d got %d", fiber.StatusForbidden, got)
	}
	if got := send(callerA); got != fiber.StatusNoContent {
		t.Fatalf("external caller: expected %d got %d", fiber.StatusNoContent, got)
	}
}
