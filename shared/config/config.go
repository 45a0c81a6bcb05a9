package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Band is an inclusive percentage range.
type Band struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type ModeConfig struct {
	MinMarketCap      float64 `mapstructure:"min_market_cap"`
	MaxMarketCap      float64 `mapstructure:"max_market_cap"`
	MaxCapToLiquidity float64 `mapstructure:"max_cap_to_liquidity"`
	MinLiquidity      float64 `mapstructure:"min_liquidity"`
	MinVolume5m       float64 `mapstructure:"min_volume_5m"`
	MinAgeMinutes     float64 `mapstructure:"min_age_minutes"`
	MinHolders        int     `mapstructure:"min_holders"`
	PriceChange5m     Band    `mapstructure:"price_change_5m"`
	PriceChange1h     Band    `mapstructure:"price_change_1h"`
}

type ThresholdStep struct {
	UpTo     time.Duration `mapstructure:"up_to"`
	MinRatio float64       `mapstructure:"min_ratio"`
}

type Config struct {
	App struct {
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"logging"`

	Feed struct {
		TriggerPrefixes []string      `mapstructure:"trigger_prefixes"`
		ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
		PollTimeout     time.Duration `mapstructure:"poll_timeout"`
		MaxInFlight     int           `mapstructure:"max_in_flight"`
	} `mapstructure:"feed"`

	Filters struct {
		Mode                 string                `mapstructure:"mode"`
		MaxTopHolderFraction float64               `mapstructure:"max_top_holder_fraction"`
		MaxCandleChangePct   float64               `mapstructure:"max_candle_change_pct"`
		Modes                map[string]ModeConfig `mapstructure:"modes"`
	} `mapstructure:"filters"`

	Providers struct {
		DexScreenerURL  string        `mapstructure:"dexscreener_url"`
		DexScreenerRPS  float64       `mapstructure:"dexscreener_rps"`
		JupiterURL      string        `mapstructure:"jupiter_url"`
		JupiterRPS      float64       `mapstructure:"jupiter_rps"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		TotalTimeout    time.Duration `mapstructure:"total_timeout"`
		PrimaryDexes    []string      `mapstructure:"primary_dexes"`
		NewTokenMinutes float64       `mapstructure:"new_token_minutes"`
		Breaker         struct {
			MaxFailures uint32        `mapstructure:"max_failures"`
			OpenTimeout time.Duration `mapstructure:"open_timeout"`
		} `mapstructure:"breaker"`
	} `mapstructure:"providers"`

	RugCheck struct {
		Enabled       bool          `mapstructure:"enabled"`
		Cooldown      time.Duration `mapstructure:"cooldown"`
		Timeout       time.Duration `mapstructure:"timeout"`
		AssumedSupply float64       `mapstructure:"assumed_supply"`
	} `mapstructure:"rugcheck"`

	Watchlist struct {
		MinSpacing       time.Duration   `mapstructure:"min_spacing"`
		MaxInterval      time.Duration   `mapstructure:"max_interval"`
		Expiry           time.Duration   `mapstructure:"expiry"`
		MaxParallelPolls int             `mapstructure:"max_parallel_polls"`
		PollTimeout      time.Duration   `mapstructure:"poll_timeout"`
		Thresholds       []ThresholdStep `mapstructure:"thresholds"`
		FinalMinRatio    float64         `mapstructure:"final_min_ratio"`
	} `mapstructure:"watchlist"`

	Storage struct {
		WaitlistFile string `mapstructure:"waitlist_file"`
		RedisSeenKey string `mapstructure:"redis_seen_key"`
	} `mapstructure:"storage"`

	Notifications struct {
		Template   string        `mapstructure:"template"`
		RatePerSec float64       `mapstructure:"rate_per_sec"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notifications"`
}

var scalarDefaults = map[string]interface{}{
	"app.environment": "development",

	"logging.level":        "info",
	"logging.file":         "",
	"logging.max_size_mb":  50,
	"logging.max_backups":  5,
	"logging.max_age_days": 14,

	"feed.trigger_prefixes": []string{"🔥", "📈"},
	"feed.reconnect_delay":  "5s",
	"feed.poll_timeout":     "30s",
	"feed.max_in_flight":    8,

	"filters.mode":                    "aggressive",
	"filters.max_top_holder_fraction": 0.5,
	"filters.max_candle_change_pct":   150.0,

	"providers.dexscreener_url":      "https://api.dexscreener.com",
	"providers.dexscreener_rps":      4.66,
	"providers.jupiter_url":          "https://lite-api.jup.ag",
	"providers.jupiter_rps":          2.0,
	"providers.request_timeout":      "8s",
	"providers.total_timeout":        "12s",
	"providers.primary_dexes":        []string{"raydium", "pumpfun", "pumpswap"},
	"providers.new_token_minutes":    30.0,
	"providers.breaker.max_failures": 5,
	"providers.breaker.open_timeout": "30s",

	"rugcheck.enabled":        true,
	"rugcheck.cooldown":       "1s",
	"rugcheck.timeout":        "6s",
	"rugcheck.assumed_supply": 1e9,

	"watchlist.min_spacing":        "1010ms",
	"watchlist.max_interval":       "15s",
	"watchlist.expiry":             "120s",
	"watchlist.max_parallel_polls": 4,
	"watchlist.poll_timeout":       "12s",
	"watchlist.final_min_ratio":    1.09,

	"storage.waitlist_file":  "waitlist.json",
	"storage.redis_seen_key": "mint-sniper:seen",

	"notifications.template":     "🔥%s",
	"notifications.rate_per_sec": 1.0,
	"notifications.timeout":      "10s",
}

// DefaultModes are the stock thresholds; yaml entries replace a mode wholesale.
func DefaultModes() map[string]ModeConfig {
	return map[string]ModeConfig{
		"conservative": {
			MinMarketCap: 150000, MaxMarketCap: 700000, MaxCapToLiquidity: 8,
			MinLiquidity: 30000, MinVolume5m: 50000, MinAgeMinutes: 720, MinHolders: 400,
			PriceChange5m: Band{1, 10}, PriceChange1h: Band{2, 20},
		},
		"balanced": {
			MinMarketCap: 50000, MaxMarketCap: 700000, MaxCapToLiquidity: 10,
			MinLiquidity: 10000, MinVolume5m: 10000, MinAgeMinutes: 120, MinHolders: 150,
			PriceChange5m: Band{2, 25}, PriceChange1h: Band{5, 40},
		},
		"aggressive": {
			MinMarketCap: 25000, MaxMarketCap: 700000, MaxCapToLiquidity: 10,
			MinLiquidity: 3000, MinVolume5m: 2000, MinAgeMinutes: 15, MinHolders: 40,
			PriceChange5m: Band{3, 80}, PriceChange1h: Band{5, 150},
		},
	}
}

func DefaultThresholds() []ThresholdStep {
	return []ThresholdStep{
		{UpTo: 20 * time.Second, MinRatio: 1.05},
		{UpTo: 40 * time.Second, MinRatio: 1.07},
	}
}

var (
	globalConfig *Config
	configLock   sync.RWMutex
)

// LoadConfig reads the yaml file at path (optional) on top of compiled-in
// defaults. Any key can be overridden with SNIPER_<KEY>, dots as underscores.
func LoadConfig(path string) (*Config, error) {
	log.Printf("Starting to load configuration from file: %s", path)

	v := viper.New()
	for key, value := range scalarDefaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: Could not read config file, using defaults: %v", err)
		}
	}

	cfg := Config{}
	cfg.Filters.Modes = DefaultModes()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if len(cfg.Watchlist.Thresholds) == 0 {
		cfg.Watchlist.Thresholds = DefaultThresholds()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Loaded configuration: mode=%s, expiry=%s, min_spacing=%s", cfg.Filters.Mode, cfg.Watchlist.Expiry, cfg.Watchlist.MinSpacing)
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Watchlist.MinSpacing <= 0 {
		return fmt.Errorf("watchlist.min_spacing must be positive")
	}
	if c.Watchlist.Expiry <= 0 {
		return fmt.Errorf("watchlist.expiry must be positive")
	}
	if c.Watchlist.MaxParallelPolls < 1 {
		return fmt.Errorf("watchlist.max_parallel_polls must be at least 1")
	}
	if !strings.Contains(c.Notifications.Template, "%s") {
		return fmt.Errorf("notifications.template must contain %%s")
	}
	for name, m := range c.Filters.Modes {
		if m.MaxMarketCap <= m.MinMarketCap {
			return fmt.Errorf("filters.modes.%s: max_market_cap must exceed min_market_cap", name)
		}
		if m.MaxCapToLiquidity <= 0 {
			return fmt.Errorf("filters.modes.%s: max_cap_to_liquidity must be positive", name)
		}
	}
	return nil
}

// SetGlobalConfig sets the loaded configuration globally
func SetGlobalConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig retrieves the globally set configuration
func GetGlobalConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	return globalConfig
}
