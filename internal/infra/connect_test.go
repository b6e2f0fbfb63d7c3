package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestPostgresConfigTagsApplicationName(t *testing.T) {
	cfg, err := postgresConfig("postgres://treasury@127.0.0.1:5432/treasury", "Treasury")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "Treasury" {
		t.Fatalf("expected application_name Treasury, got %q", got)
	}
	if cfg.ConnConfig.ConnectTimeout != connectTimeout {
		t.Fatalf("expected connect timeout %s, got %s", connectTimeout, cfg.ConnConfig.ConnectTimeout)
	}

	cfg, err = postgresConfig("postgres://treasury@127.0.0.1:5432/treasury?connect_timeout=2", "")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ConnConfig.ConnectTimeout != 2*time.Second {
		t.Fatalf("explicit connect_timeout overridden: %s", cfg.ConnConfig.ConnectTimeout)
	}
}

func TestConnectRejectsMissingURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), " ", "Treasury"); !errors.Is(err, errMissingURL) {
		t.Fatalf("expected missing url error from postgres, got %v", err)
	}
	if _, err := NewRedisClient(context.Background(), "", "Treasury"); !errors.Is(err, errMissingURL) {
		t.Fatalf("expected missing url error from redis, got %v", err)
	}
}

func TestNewRedisClientPingsServer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), "Treasury")
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	opt := client.Options()
	if opt.ClientName != "Treasury" {
		t.Fatalf("expected client name Treasury, got %q", opt.ClientName)
	}
	if opt.ReadTimeout != 500*time.Millisecond {
		t.Fatalf("expected read timeout 500ms, got %s", opt.ReadTimeout)
	}

	mr.Close()
	if _, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), "Treasury"); err == nil {
		t.Fatalf("expected ping failure once the server is gone")
	}
}
