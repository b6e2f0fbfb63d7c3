package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName            string        `envconfig:"APP_NAME" default:"Treasury"`
	AppEnv             string        `envconfig:"APP_ENV" default:"development"`
	Port               string        `envconfig:"PORT" default:"8080"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	ShutdownPeriod     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// WalletAdmin administers the custody wallet; it is always permitted.
	WalletAdmin string `envconfig:"WALLET_ADMIN" required:"true"`
	// WalletPermitted is a comma separated list of further permitted addresses.
	WalletPermitted []string `envconfig:"WALLET_PERMITTED"`

	Admin     common.Address   `ignored:"true"`
	Permitted []common.Address `ignored:"true"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	admin, err := parseAddress("WALLET_ADMIN", cfg.WalletAdmin)
	if err != nil {
		return Config{}, err
	}
	if admin == (common.Address{}) {
		return Config{}, fmt.Errorf("WALLET_ADMIN must not be the zero address")
	}
	cfg.Admin = admin

	for _, raw := range cfg.WalletPermitted {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		addr, err := parseAddress("WALLET_PERMITTED", raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Permitted = append(cfg.Permitted, addr)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the service runs in a local development environment,
// where Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func parseAddress(key, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", key, value)
	}
	return common.HexToAddress(value), nil
}
