package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DemoProviderToken is the provider token value that switches payments off.
const DemoProviderToken = "TEST"

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token         string `yaml:"token"`
	Mode          string `yaml:"mode"`        // polling | webhook
	WebhookURL    string `yaml:"webhook_url"` // public base URL, webhook mode only
	Workers       int    `yaml:"workers"`     // polling workers
	AdminID       int64  `yaml:"admin_id"`
	AdminUsername string `yaml:"admin_username"` // support contact, without "@"
	Lang          string `yaml:"lang"`
}

type PaymentConfig struct {
	ProviderToken string `yaml:"provider_token"`
	Price         int    `yaml:"price"` // minor units, e.g. 1900 = 19.00
	Currency      string `yaml:"currency"`
}

// DemoMode reports whether payments are switched off.
func (p PaymentConfig) DemoMode() bool {
	t := strings.TrimSpace(p.ProviderToken)
	return t == "" || strings.EqualFold(t, DemoProviderToken)
}

type ChannelConfig struct {
	ID string `yaml:"id"` // @username or -100...
}

// Target splits the channel reference into a numeric chat ID or an @username.
func (c ChannelConfig) Target() (id int64, username string, err error) {
	raw := strings.TrimSpace(c.ID)
	if strings.HasPrefix(raw, "@") {
		return 0, raw, nil
	}
	id, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("channel.id %q: expected @username or numeric id", raw)
	}
	return id, "", nil
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty: sessions stay in process memory
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // listing read cache; add-flow sessions never expire
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AdminAPISecret string        `yaml:"admin_api_secret"` // empty disables /api/v1
	AdminTokenTTL  time.Duration `yaml:"admin_token_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Payment PaymentConfig `yaml:"payment"`
	Channel ChannelConfig `yaml:"channel"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`

	Runtime RuntimeConfig `yaml:"-"`
}

// ErrMissing is matched by every MissingError.
var ErrMissing = errors.New("required configuration missing")

// MissingError lists the required keys that were not provided.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// Load reads the optional YAML file at path, applies environment overrides,
// fills defaults and validates. A missing file is not an error; env alone is enough.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, set func(int64)) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", key, err))
			return
		}
		set(n)
	}

	str("BOT_TOKEN", &cfg.Bot.Token)
	str("BOT_MODE", &cfg.Bot.Mode)
	str("WEBHOOK_URL", &cfg.Bot.WebhookURL)
	num("UPDATE_WORKERS", func(n int64) { cfg.Bot.Workers = int(n) })
	num("ADMIN_ID", func(n int64) { cfg.Bot.AdminID = n })
	str("ADMIN_USERNAME", &cfg.Bot.AdminUsername)
	str("BOT_LANG", &cfg.Bot.Lang)

	str("PROVIDER_TOKEN", &cfg.Payment.ProviderToken)
	// PRICE_HAL is the older name; PRICE wins when both are set.
	num("PRICE_HAL", func(n int64) { cfg.Payment.Price = int(n) })
	num("PRICE", func(n int64) { cfg.Payment.Price = int(n) })
	str("CURRENCY", &cfg.Payment.Currency)

	str("CHANNEL_ID", &cfg.Channel.ID)

	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("DATABASE_URL", &cfg.Storage.DatabaseURL)

	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", func(n int64) { cfg.Redis.DB = int(n) })

	num("PORT", func(n int64) { cfg.HTTP.Port = int(n) })
	str("ADMIN_API_SECRET", &cfg.HTTP.AdminAPISecret)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	cfg.Bot.Mode = strings.ToLower(cfg.Bot.Mode)
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "en"
	}
	cfg.Bot.AdminUsername = strings.TrimPrefix(cfg.Bot.AdminUsername, "@")
	if cfg.Payment.ProviderToken == "" {
		cfg.Payment.ProviderToken = DemoProviderToken
	}
	if cfg.Payment.Price == 0 {
		cfg.Payment.Price = 1900
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "CZK"
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "listings.db"
	}
	cfg.Redis.CacheTTL = normalizeTTL(cfg.Redis.CacheTTL)
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 10000
	}
	if cfg.HTTP.AdminTokenTTL <= 0 {
		cfg.HTTP.AdminTokenTTL = 30 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks required keys and cross-field rules.
func (c *Config) Validate() error {
	var missing []string
	if c.Bot.Token == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.Bot.AdminID == 0 {
		missing = append(missing, "ADMIN_ID")
	}
	if strings.TrimSpace(c.Channel.ID) == "" {
		missing = append(missing, "CHANNEL_ID")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Bot.Mode == "webhook" && c.Bot.WebhookURL == "" {
		missing = append(missing, "WEBHOOK_URL")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	if _, _, err := c.Channel.Target(); err != nil {
		return err
	}
	if c.Payment.Price <= 0 {
		return fmt.Errorf("payment.price must be positive, got %d", c.Payment.Price)
	}
	switch c.Bot.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("bot.mode %q: expected polling or webhook", c.Bot.Mode)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver %q: expected sqlite or postgres", c.Storage.Driver)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
