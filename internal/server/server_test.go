package server

import (
    "encoding/json"
    "errors"
    "net/http/httptest"
    "testing"

    "github.com/gofiber/fiber/v2"
    "github.com/stretchr/testify/require"

    "github.com/congo-pay/treasury/internal/config"
    "github.com/congo-pay/treasury/internal/logging"
)

func TestErrorHandlerRendersJSON(t *testing.T) {
    app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
    app.Get("/conflict", func(c *fiber.Ctx) error {
        return fiber.NewError(fiber.StatusConflict, "treasure chest is empty")
    })
    app.Get("/boom", func(c *fiber.Ctx) error {
        return errors.New("boom")
    })

    cases := map[string]errorBody{
        "/conflict": {Error: "treasure chest is empty", Code: fiber.StatusConflict},
        "/boom":     {Error: "boom", Code: fiber.StatusInternalServerError},
        "/missing":  {Error: "Cannot GET /missing", Code: fiber.StatusNotFound},
    }
    for path, want := range cases {
        resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
        require.NoError(t, err)
        require.Equal(t, want.Code, resp.StatusCode, path)

        var got errorBody
        require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
        require.Equal(t, want, got, path)
    }
}

func TestNewWiresRoutesInDevelopment(t *testing.T) {
    cfg := config.Config{
        AppName: "Treasury",
        AppEnv:  "development",
        Port:    "8080",
    }
    cfg.Admin[19] = 0xa1

    srv, err := New(cfg, nil, nil, logging.Discard())
    require.NoError(t, err)

    resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/wallet", nil))
    require.NoError(t, err)
    require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNewRequiresInfraOutsideDevelopment(t *testing.T) {
    cfg := config.Config{AppEnv: "production"}
    cfg.Admin[19] = 0xa1

    _, err := New(cfg, nil, nil, logging.Discard())
    require.ErrorContains(t, err, "database is required")
}
