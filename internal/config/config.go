package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"nft-sales-bot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Reservoir ReservoirConfig `mapstructure:"reservoir"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	OpenSea   OpenSeaConfig   `mapstructure:"opensea"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ReservoirConfig covers the marketplace indexing API.
type ReservoirConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Contract       string        `mapstructure:"contract"`
	Chain          string        `mapstructure:"chain"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	IncludeBids    bool          `mapstructure:"include_bids"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PricingConfig lists fiat price sources, tried in order.
type PricingConfig struct {
	SourceURLs     []string      `mapstructure:"source_urls"`
	FallbackUSD    float64       `mapstructure:"fallback_usd"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TwitterConfig holds the four posting credentials plus endpoints.
type TwitterConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	APIBase           string        `mapstructure:"api_base"`
	UploadBase        string        `mapstructure:"upload_base"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// OpenSeaConfig covers the fallback metadata API.
type OpenSeaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PollerConfig governs the check cadence.
type PollerConfig struct {
	Cooldown     time.Duration `mapstructure:"cooldown"`
	Idle         time.Duration `mapstructure:"idle"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// StorageConfig locates local state (processed sales, downloaded images).
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SALESBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "salesbot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("reservoir.base_url", "https://api-base.reservoir.tools")
	v.SetDefault("reservoir.contract", "0x424d781e0163b5a42ca2f27d036c2d5c561022c3")
	v.SetDefault("reservoir.chain", "base")
	v.SetDefault("reservoir.lookback_days", 7)
	v.SetDefault("reservoir.include_bids", true)
	v.SetDefault("reservoir.request_timeout", "10s")

	v.SetDefault("pricing.source_urls", []string{
		"https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd",
		"https://min-api.cryptocompare.com/data/price?fsym=ETH&tsyms=USD",
	})
	v.SetDefault("pricing.fallback_usd", 1825.0)
	v.SetDefault("pricing.request_timeout", "10s")

	v.SetDefault("twitter.api_base", "https://api.twitter.com")
	v.SetDefault("twitter.upload_base", "https://upload.twitter.com")
	v.SetDefault("twitter.request_timeout", "30s")

	v.SetDefault("opensea.base_url", "https://api.opensea.io")
	v.SetDefault("opensea.request_timeout", "10s")

	v.SetDefault("poller.cooldown", "120s")
	v.SetDefault("poller.idle", "300s")
	v.SetDefault("poller.startup_delay", "0s")

	v.SetDefault("storage.data_dir", "data")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Twitter and Reservoir credentials are deliberately not checked here;
// missing secrets surface as upstream auth failures at call time.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Reservoir.Contract) {
		return fmt.Errorf("reservoir.contract is not a valid hex address: %q", c.Reservoir.Contract)
	}
	c.Reservoir.Contract = strings.ToLower(common.HexToAddress(c.Reservoir.Contract).Hex())

	if c.Reservoir.LookbackDays <= 0 {
		return fmt.Errorf("reservoir.lookback_days must be greater than zero")
	}
	if c.Poller.Cooldown <= 0 {
		return fmt.Errorf("poller.cooldown must be greater than zero")
	}
	if c.Poller.Idle <= 0 {
		return fmt.Errorf("poller.idle must be greater than zero")
	}
	if len(c.Pricing.SourceURLs) == 0 && c.Pricing.FallbackUSD <= 0 {
		return fmt.Errorf("pricing requires at least one source url or a positive fallback")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
