package routes

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/ethereum/go-ethereum/common"
    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/congo-pay/treasury/internal/chain"
    "github.com/congo-pay/treasury/internal/chest"
    "github.com/congo-pay/treasury/internal/config"
    "github.com/congo-pay/treasury/internal/ledger"
    "github.com/congo-pay/treasury/internal/logging"
    "github.com/congo-pay/treasury/internal/middleware"
    "github.com/congo-pay/treasury/internal/notification"
    "github.com/congo-pay/treasury/internal/permission"
    "github.com/congo-pay/treasury/internal/token"
    "github.com/congo-pay/treasury/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
    // Tokens overrides the token service picked for the configured backend.
    Tokens token.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    if d.Logger == nil {
        d.Logger = logging.Discard()
    }
    // Enforce DB/Redis presence outside of dev, even though config also checks.
    if !d.Cfg.IsDev() {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
    }
    // Middlewares
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    // Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
    app.Use(logger.New(logger.Config{
        Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
        TimeFormat: "15:04:05",
        TimeZone:   "Local",
    }))
    app.Use(middleware.Audit(d.Logger))

    // Health
    RegisterHealthRoutes(app, d)

    // Services and handlers
    b := newBackends(d)
    ledgerBackend, chestRepo, tokens := b.ledger, b.chests, b.tokens

    router := chain.NewRouter()
    notifier := notification.NewLoggerNotifier(d.Logger)
    registry := permission.NewRegistry(d.Cfg.Admin, d.Cfg.Permitted)

    walletSvc, err := wallet.NewService(wallet.Params{
        Permissions: registry,
        Ledger:      ledgerBackend,
        Tokens:      tokens,
        Calls:       router,
        Notifier:    notifier,
        Logger:      d.Logger,
    })
    if err != nil {
        return err
    }

    chestSvc := chest.NewService(chestRepo, tokens, router, notifier, d.Logger)
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    restored, err := chestSvc.Restore(ctx)
    if err != nil {
        return fmt.Errorf("restore chests: %w", err)
    }
    d.Logger.Info("routes ready",
        slog.String("wallet", walletSvc.Address().Hex()),
        slog.String("admin", walletSvc.Admin().Hex()),
        slog.Int("permitted", len(walletSvc.Members())),
        slog.Int("chests_restored", restored),
    )

    // State-changing routes need a caller, are rate limited per caller, and are
    // idempotent when Redis is available.
    isContract := func(ctx context.Context, addr common.Address) bool {
        if addr == walletSvc.Address() {
            return true
        }
        if _, ok := router.Lookup(addr); ok {
            return true
        }
        return tokens.IsToken(ctx, addr)
    }
    mutating := []fiber.Handler{middleware.Caller(isContract), middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMinute)}
    if d.Cache != nil {
        mutating = append(mutating, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
    }

    // API routes
    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        reqID, _ := c.Locals("X-Request-ID").(string)
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": reqID,
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), mutating...)
    RegisterTokenRoutes(api, tokens, mutating...)
    RegisterChestRoutes(api, chestSvc, mutating...)

    return nil
}

type backends struct {
    ledger ledger.Ledger
    chests chest.Repository
    tokens token.Service
}

// newBackends keeps the ledger, chests and token balances in the same store so
// custody and attribution survive a restart together.
func newBackends(d Deps) backends {
    var b backends
    if d.DB != nil {
        b.ledger = ledger.NewPostgresLedger(d.DB)
        b.chests = chest.NewPostgresRepository(d.DB)
        b.tokens = token.NewPostgresService(d.DB)
    } else {
        b.ledger = ledger.NewInMemory()
        b.chests = chest.NewMemoryRepository()
        b.tokens = token.NewInMemory()
    }
    if d.Tokens != nil {
        b.tokens = d.Tokens
    }
    return b
}
