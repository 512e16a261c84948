//go:build !integration

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("CHANNEL_ID", "@listings")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Mode != "polling" || cfg.Bot.Workers != 4 || cfg.Bot.Lang != "en" {
		t.Errorf("bot defaults = %+v", cfg.Bot)
	}
	if cfg.Payment.Price != 1900 || cfg.Payment.Currency != "CZK" || !cfg.Payment.DemoMode() {
		t.Errorf("payment defaults = %+v", cfg.Payment)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "listings.db" {
		t.Errorf("storage defaults = %+v", cfg.Storage)
	}
	if cfg.Redis.CacheTTL != 15*time.Minute || cfg.HTTP.Port != 10000 {
		t.Errorf("cache ttl=%s port=%d", cfg.Redis.CacheTTL, cfg.HTTP.Port)
	}
	id, user, err := cfg.Channel.Target()
	if err != nil || id != 0 || user != "@listings" {
		t.Errorf("Target = %d %q %v", id, user, err)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "")
	t.Setenv("CHANNEL_ID", "")
	_, err := Load("", false)
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("want ErrMissing, got %v", err)
	}
	var me *MissingError
	if !errors.As(err, &me) || strings.Join(me.Keys, ",") != "BOT_TOKEN,ADMIN_ID,CHANNEL_ID" {
		t.Errorf("missing keys = %+v", me)
	}
}

func TestLoad_ConditionalRequirements(t *testing.T) {
	t.Run("postgres needs DATABASE_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORAGE_DRIVER", "Postgres")
		var me *MissingError
		if _, err := Load("", false); !errors.As(err, &me) || me.Keys[0] != "DATABASE_URL" {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("webhook needs WEBHOOK_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("BOT_MODE", "webhook")
		var me *MissingError
		if _, err := Load("", false); !errors.As(err, &me) || me.Keys[0] != "WEBHOOK_URL" {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("bad numeric env", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PRICE", "nineteen")
		if _, err := Load("", false); err == nil || !strings.Contains(err.Error(), "PRICE") {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("bad channel", func(t *testing.T) {
		setRequired(t)
		t.Setenv("CHANNEL_ID", "listings")
		if _, err := Load("", false); err == nil {
			t.Fatal("expected channel error")
		}
	})
}

func TestLoad_FileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
bot:
  admin_username: "@support"
  workers: 8
payment:
  provider_token: "live-token"
  price: 2500
  currency: EUR
channel:
  id: "-1001234"
redis:
  cache_ttl: 5m
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHANNEL_ID", "")
	t.Setenv("CURRENCY", "USD")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.AdminUsername != "support" || cfg.Bot.Workers != 8 {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if cfg.Payment.DemoMode() || cfg.Payment.Price != 2500 || cfg.Payment.Currency != "USD" {
		t.Errorf("payment = %+v", cfg.Payment)
	}
	if id, _, _ := cfg.Channel.Target(); id != -1001234 {
		t.Errorf("channel id = %d", id)
	}
	if cfg.Redis.CacheTTL != 5*time.Minute || !cfg.Runtime.Dev {
		t.Errorf("ttl=%s dev=%v", cfg.Redis.CacheTTL, cfg.Runtime.Dev)
	}
}

func TestDemoMode(t *testing.T) {
	for tok, want := range map[string]bool{"": true, "TEST": true, " test ": true, "284685063:TEST:abc": false} {
		if got := (PaymentConfig{ProviderToken: tok}).DemoMode(); got != want {
			t.Errorf("DemoMode(%q) = %v", tok, got)
		}
	}
}

func TestLoad_PriceAliases(t *testing.T) {
	setRequired(t)
	t.Setenv("PRICE", "")
	t.Setenv("PRICE_HAL", "2500")
	cfg, err := Load("", false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Payment.Price != 2500 {
		t.Errorf("PRICE_HAL: price = %d", cfg.Payment.Price)
	}

	t.Setenv("PRICE", "3100")
	cfg, err = Load("", false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Payment.Price != 3100 {
		t.Errorf("PRICE must win over PRICE_HAL: price = %d", cfg.Payment.Price)
	}
}
