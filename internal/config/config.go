package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Storage StorageConfig `mapstructure:"storage"`
	Data    DataConfig    `mapstructure:"data"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// SweepConfig holds the general backtest settings plus the parameter grid.
// Params values may be scalars or lists; lists are expanded into scenes.
type SweepConfig struct {
	PrintParams   bool            `mapstructure:"print_params"`
	RunTestNow    bool            `mapstructure:"run_test_now"`
	MultiProcess  bool            `mapstructure:"multi_pro"`
	Workers       int             `mapstructure:"workers"`
	ResetDatabase bool            `mapstructure:"reset_database"`
	Params        map[string]any  `mapstructure:"params"`
	Dimensions    map[string]bool `mapstructure:"dimensions"`
}

type StorageConfig struct {
	DBPath  string        `mapstructure:"db_path"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type DataConfig struct {
	Yahoo   ProviderConfig `mapstructure:"yahoo"`
	Binance ProviderConfig `mapstructure:"binance"`
}

// ProviderConfig configures a market data source.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("sweep.print_params", d.Sweep.PrintParams)
	v.SetDefault("sweep.run_test_now", d.Sweep.RunTestNow)
	v.SetDefault("sweep.multi_pro", d.Sweep.MultiProcess)
	v.SetDefault("sweep.workers", d.Sweep.Workers)
	v.SetDefault("sweep.reset_database", d.Sweep.ResetDatabase)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("storage.archive.type", d.Storage.Archive.Type)
	v.SetDefault("data.yahoo.base_url", d.Data.Yahoo.BaseURL)
	v.SetDefault("data.yahoo.timeout", d.Data.Yahoo.Timeout)
	v.SetDefault("data.binance.base_url", d.Data.Binance.BaseURL)
	v.SetDefault("data.binance.timeout", d.Data.Binance.Timeout)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Sweep: SweepConfig{
			RunTestNow: true,
		},
		Storage: StorageConfig{
			DBPath: "data/results.db",
		},
		Data: DataConfig{
			Yahoo: ProviderConfig{
				BaseURL: "https://query1.finance.yahoo.com",
				Timeout: 30 * time.Second,
			},
			Binance: ProviderConfig{
				BaseURL: "https://api.binance.com",
				Timeout: 30 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Sweep.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers cannot be negative, got %d", c.Sweep.Workers))
	}

	switch c.Storage.Archive.Type {
	case "", "localfs":
		if c.Storage.Archive.Type == "localfs" && c.Storage.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics listen address required when metrics enabled"))
	}

	return nil
}
