package wallet

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/treasury/internal/chest"
	"github.com/congo-pay/treasury/internal/middleware"
)

func newTestApp(h harness) *fiber.App {
	app := fiber.New()
	handler := NewHandler(h.wallet)
	app.Get("/wallet", handler.Info)
	app.Get("/wallet/permissions/:address", handler.Permissions)
	app.Get("/wallet/balances/:holder/:asset", handler.Balance)
	app.Post("/wallet/deposit", middleware.Caller(nil), handler.Deposit)
	app.Post("/wallet/withdraw", middleware.Caller(nil), handler.Withdraw)
	app.Post("/wallet/transfer", middleware.Caller(nil), handler.Transfer)
	app.Post("/wallet/invoke", middleware.Caller(nil), handler.Invoke)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, caller, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if caller != "" {
		req.Header.Set("X-Caller-Address", caller)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHandlerInfoAndPermissions(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)

	status, body := call(t, app, fiber.MethodGet, "/wallet", "", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, h.wallet.Address().Hex(), body["address"])
	require.Equal(t, captain.Hex(), body["admin"])
	require.Len(t, body["members"], 4)

	status, body = call(t, app, fiber.MethodGet, "/wallet/permissions/"+pirate1.Hex(), "", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["permitted"])
	require.Equal(t, false, body["admin"])

	status, _ = call(t, app, fiber.MethodGet, "/wallet/permissions/nope", "", "")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandlerDepositTransferWithdraw(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)
	h.approve(t, pirate1, 100)

	status, body := call(t, app, fiber.MethodPost, "/wallet/deposit", pirate1.Hex(),
		`{"asset":"`+h.money.Hex()+`","amount":"100"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "100", body["amount"])

	status, body = call(t, app, fiber.MethodPost, "/wallet/transfer", pirate1.Hex(),
		`{"asset":"`+h.money.Hex()+`","amount":"60","destination":"`+pirate2.Hex()+`"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "40", body["from_balance"])
	require.Equal(t, "60", body["to_balance"])

	status, body = call(t, app, fiber.MethodGet, "/wallet/balances/"+pirate2.Hex()+"/"+h.money.Hex(), "", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "60", body["amount"])

	status, _ = call(t, app, fiber.MethodPost, "/wallet/withdraw", pirate1.Hex(),
		`{"asset":"`+h.money.Hex()+`","amount":"41"}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, body = call(t, app, fiber.MethodPost, "/wallet/withdraw", pirate2.Hex(),
		`{"asset":"`+h.money.Hex()+`","amount":"60"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "0", body["amount"])
}

func TestHandlerRejections(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)
	deposit := `{"asset":"` + h.money.Hex() + `","amount":"1"}`

	status, _ := call(t, app, fiber.MethodPost, "/wallet/deposit", "", deposit)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, fiber.MethodPost, "/wallet/deposit", cabinBoy.Hex(), deposit)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = call(t, app, fiber.MethodPost, "/wallet/deposit", pirate1.Hex(), deposit)
	require.Equal(t, fiber.StatusBadRequest, status, "missing allowance")

	status, _ = call(t, app, fiber.MethodPost, "/wallet/deposit", pirate1.Hex(),
		`{"asset":"`+h.money.Hex()+`","amount":"-5"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandlerInvoke(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)
	ctx := context.Background()

	c, err := h.chests.Deploy(ctx, captain, h.money)
	require.NoError(t, err)
	require.NoError(t, h.tokens.Transfer(ctx, h.money, captain, c.Address, uint256.NewInt(75)))
	invoke := `{"target":"` + c.Address.Hex() + `","data":"` + hexutil.Encode(chest.OpenCallData()) + `"}`

	status, _ := call(t, app, fiber.MethodPost, "/wallet/invoke", pirate1.Hex(), invoke)
	require.Equal(t, fiber.StatusConflict, status, "chest still buried")

	_, err = h.chests.Unbury(ctx, captain, c.Address)
	require.NoError(t, err)

	status, body := call(t, app, fiber.MethodPost, "/wallet/invoke", pirate1.Hex(), invoke)
	require.Equal(t, fiber.StatusOK, status)
	credited, ok := body["credited"].([]any)
	require.True(t, ok)
	require.Len(t, credited, 1)
	require.Equal(t, "75", credited[0].(map[string]any)["amount"])

	status, _ = call(t, app, fiber.MethodPost, "/wallet/invoke", pirate1.Hex(),
		`{"target":"`+cabinBoy.Hex()+`","data":"0x"}`)
	require.Equal(t, fiber.StatusBadGateway, status)
}
