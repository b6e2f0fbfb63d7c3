package middleware

import (
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitPerCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(Caller(nil))
	app.Use(RateLimit(cache, 2))
	app.Post("/resource", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/resource", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	send := func(method, caller string) int {
		req := httptest.NewRequest(method, "/resource", nil)
		req.Header.Set(callerHeader, caller)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send(fiber.MethodPost, callerA); got != fiber.StatusNoContent {
			t.Fatalf("request %d: expected %d got %d", i, fiber.StatusNoContent, got)
		}
	}
	if got := send(fiber.MethodPost, callerA); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}
	if got := send(fiber.MethodPost, callerB); got != fiber.StatusNoContent {
		t.Fatalf("other caller limited: %d", got)
	}
	if got := send(fiber.MethodGet, callerA); got != fiber.StatusNoContent {
		t.Fatalf("reads should not be limited: %d", got)
	}
}

func TestRateLimitWithoutCacheIsNoop(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(nil, 1))
	app.Post("/resource", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/resource", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("expected %d got %d", fiber.StatusNoContent, resp.StatusCode)
		}
	}
}
