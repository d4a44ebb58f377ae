package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/hubble-cli/internal/render"
	"github.com/sells-group/hubble-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Archive  ArchiveConfig  `yaml:"archive" mapstructure:"archive"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ArchiveConfig configures the MAST portal client.
type ArchiveConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// BreakerThreshold consecutive transient failures open a service's
	// breaker for BreakerCoolDown.
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCoolDown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// DownloadConfig configures product retrieval.
type DownloadConfig struct {
	Dir         string        `yaml:"dir" mapstructure:"dir"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// RenderConfig configures chart output.
type RenderConfig struct {
	OutputDir string        `yaml:"output_dir" mapstructure:"output_dir"`
	Colormap  string        `yaml:"colormap" mapstructure:"colormap"`
	ZScale    render.ZScale `yaml:"zscale" mapstructure:"zscale"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HUBBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	z := render.DefaultZScale()
	v.SetDefault("archive.base_url", "https://mast.stsci.edu")
	v.SetDefault("archive.user_agent", "hubble-cli/1.0")
	v.SetDefault("archive.max_retries", 3)
	v.SetDefault("archive.timeout", 120*time.Second)
	v.SetDefault("archive.poll_interval", 2*time.Second)
	v.SetDefault("archive.breaker_threshold", 5)
	v.SetDefault("archive.breaker_cooldown", 30*time.Second)
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.concurrency", 1)
	v.SetDefault("download.timeout", 10*time.Minute)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("render.output_dir", "plots")
	v.SetDefault("render.colormap", "viridis")
	v.SetDefault("render.zscale.nsamples", z.NSamples)
	v.SetDefault("render.zscale.contrast", z.Contrast)
	v.SetDefault("render.zscale.max_reject", z.MaxReject)
	v.SetDefault("render.zscale.min_npixels", z.MinNPixels)
	v.SetDefault("render.zscale.krej", z.KRej)
	v.SetDefault("render.zscale.max_iterations", z.MaxIterations)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "hubble.db")
	v.SetDefault("store.pool.max_conns", 4)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
// Modes: fetch, options, runs, serve.
func (c *Config) Validate(mode string) error {
	var errs []error

	switch mode {
	case "fetch", "serve":
		errs = append(errs, c.validateArchive()...)
		errs = append(errs, c.validateStore()...)
		if c.Download.Concurrency < 1 || c.Download.Concurrency > 16 {
			errs = append(errs, errors.New("download.concurrency must be between 1 and 16"))
		}
		if c.Render.ZScale.Contrast <= 0 {
			errs = append(errs, errors.New("render.zscale.contrast must be > 0"))
		}
		if c.Render.ZScale.MaxReject < 0 || c.Render.ZScale.MaxReject > 1 {
			errs = append(errs, errors.New("render.zscale.max_reject must be between 0 and 1"))
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, errors.New("server.port must be > 0"))
		}
	case "options":
		errs = append(errs, c.validateArchive()...)
	case "runs":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: validation failed")
	}
	return nil
}

func (c *Config) validateArchive() []error {
	var errs []error
	if c.Archive.BaseURL == "" {
		errs = append(errs, errors.New("archive.base_url is required"))
	}
	if c.Archive.MaxRetries < 0 {
		errs = append(errs, errors.New("archive.max_retries must be >= 0"))
	}
	if c.Archive.BreakerThreshold < 0 {
		errs = append(errs, errors.New("archive.breaker_threshold must be >= 0"))
	}
	return errs
}

func (c *Config) validateStore() []error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return []error{errors.New("store.path is required for sqlite")}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []error{errors.New("store.database_url is required for postgres")}
		}
	case "none":
	default:
		return []error{fmt.Errorf("store.driver %q is not supported", c.Store.Driver)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
