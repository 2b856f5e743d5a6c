package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Settings    SettingsConfig    `mapstructure:"settings"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Inventory   InventoryConfig   `mapstructure:"inventory"`
	MarketPrice MarketPriceConfig `mapstructure:"marketprice"`
	Reprice     RepriceConfig     `mapstructure:"reprice"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SettingsConfig selects where pricing rules and multipliers are persisted.
type SettingsConfig struct {
	Backend string `mapstructure:"backend"` // redis, file or none
	File    string `mapstructure:"file"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type InventoryConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql or memory
	DSN    string `mapstructure:"dsn"`
}

type MarketPriceConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	CachePath      string        `mapstructure:"cache_path"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ScrapeURL      string        `mapstructure:"scrape_url"`
	ScrapeSelector string        `mapstructure:"scrape_selector"`
}

type RepriceConfig struct {
	Schedule      string  `mapstructure:"schedule"`
	Workers       int     `mapstructure:"workers"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Printing      string  `mapstructure:"printing"`
}

var envBindings = map[string]string{
	"log.level":                   "LOG_LEVEL",
	"settings.backend":            "SETTINGS_BACKEND",
	"settings.file":               "SETTINGS_FILE",
	"redis.address":               "REDIS_ADDRESS",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"inventory.driver":            "INVENTORY_DRIVER",
	"inventory.dsn":               "INVENTORY_DSN",
	"marketprice.api_key":         "POKEMON_TCG_API_KEY",
	"marketprice.base_url":        "MARKETPRICE_BASE_URL",
	"marketprice.rate_per_minute": "MARKETPRICE_RATE_PER_MINUTE",
	"marketprice.cache_path":      "MARKETPRICE_CACHE_PATH",
	"marketprice.cache_ttl":       "MARKETPRICE_CACHE_TTL",
	"marketprice.scrape_url":      "MARKETPRICE_SCRAPE_URL",
	"reprice.schedule":            "REPRICE_SCHEDULE",
	"reprice.workers":             "REPRICE_WORKERS",
	"reprice.rate_per_second":     "REPRICE_RATE_PER_SECOND",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("settings.backend", "file")
	v.SetDefault("settings.file", "data/settings.json")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("inventory.driver", "memory")
	v.SetDefault("inventory.dsn", "")
	v.SetDefault("marketprice.base_url", "https://api.pokemontcg.io/v2")
	v.SetDefault("marketprice.rate_per_minute", 60)
	v.SetDefault("marketprice.cache_path", "data/marketprice_cache.json")
	v.SetDefault("marketprice.cache_ttl", 6*time.Hour)
	v.SetDefault("marketprice.request_timeout", 15*time.Second)
	v.SetDefault("marketprice.scrape_selector", "#used_price .price")
	v.SetDefault("reprice.schedule", "0 */6 * * *")
	v.SetDefault("reprice.workers", 4)
	v.SetDefault("reprice.rate_per_second", 5.0)
	v.SetDefault("reprice.printing", "normal")
}

// Load reads .env (if present), then cardshop.yaml from the usual places,
// then environment variables. A missing config file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("cardshop")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cardshop/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return decode(v)
}

// LoadFromFile reads one explicit config file plus environment overrides.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case "redis", "file", "none":
	default:
		return errors.Newf("settings.backend must be redis, file or none, got %q", c.Settings.Backend)
	}
	switch c.Inventory.Driver {
	case "memory":
	case "postgres", "mysql":
		if c.Inventory.DSN == "" {
			return errors.Newf("inventory.dsn is required for driver %s", c.Inventory.Driver)
		}
	default:
		return errors.Newf("inventory.driver must be postgres, mysql or memory, got %q", c.Inventory.Driver)
	}
	if c.Reprice.Workers < 1 {
		return errors.New("reprice.workers must be at least 1")
	}
	return nil
}

// String summarizes the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"settings=%s inventory=%s redis=%s marketprice=%s schedule=%q workers=%d",
		c.Settings.Backend,
		c.Inventory.Driver,
		c.Redis.Address,
		c.MarketPrice.BaseURL,
		c.Reprice.Schedule,
		c.Reprice.Workers,
	)
}
