package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the server needs at startup. Values come from
// an optional piletfeed.yaml next to the binary and from PILETFEED_*
// environment variables, env taking precedence.
type Config struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`

	DBPath  string `mapstructure:"db_path"`
	DataDir string `mapstructure:"data_dir"`

	SigningKey string `mapstructure:"signing_key"`

	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	AllowedExts    []string `mapstructure:"allowed_exts"`

	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
	ExtractWorkers int64         `mapstructure:"extract_workers"`

	FeedCacheTTL time.Duration `mapstructure:"feed_cache_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("piletfeed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PILETFEED")
	v.AutomaticEnv()

	v.SetDefault("addr", ":9000")
	v.SetDefault("base_url", "http://localhost:9000")
	v.SetDefault("db_path", "piletfeed.db")
	v.SetDefault("data_dir", "data")
	v.SetDefault("signing_key", "dev-signing-key")
	v.SetDefault("max_upload_bytes", int64(16<<20))
	v.SetDefault("allowed_exts", []string{".tgz", ".tar.gz"})
	v.SetDefault("extract_timeout", "30s")
	v.SetDefault("extract_workers", int64(4))
	v.SetDefault("feed_cache_ttl", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max_upload_bytes must be positive")
	}
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = 1
	}
	return &cfg, nil
}
