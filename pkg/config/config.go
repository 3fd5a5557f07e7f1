// Package config loads service configuration from an optional YAML
// file with environment-variable overrides on top of built-in
// defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultListen        = "0.0.0.0:8080"
	DefaultRecipient     = "AsunaReal"
	DefaultRateRPS       = 1.0
	DefaultRateBurst     = 2
	DefaultWindowWidth   = 1920
	DefaultWindowHeight  = 1080
	DefaultTDSCloseDelay = 2 * time.Second
)

// Config is the complete service configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	Recipient string          `yaml:"recipient"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Browser   BrowserConfig   `yaml:"browser"`
	Providers ProvidersConfig `yaml:"providers"`
}

// RateLimitConfig throttles incoming requests. Every request launches a
// full browser process, so the default is deliberately conservative.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BrowserConfig tunes the shared browser engine.
type BrowserConfig struct {
	ChromePath   string `yaml:"chrome_path"`
	Headless     *bool  `yaml:"headless"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
}

// HeadlessEnabled resolves the headless tri-state; unset means true.
func (b BrowserConfig) HeadlessEnabled() bool {
	return b.Headless == nil || *b.Headless
}

// ProviderConfig overrides one platform's profile data.
type ProviderConfig struct {
	BaseURL          string        `yaml:"base_url"`
	MinimumBalance   int64         `yaml:"minimum_balance"`
	TransferFraction float64       `yaml:"transfer_fraction"`
	CloseLinger      time.Duration `yaml:"close_linger"`
}

// ProvidersConfig holds per-platform overrides.
type ProvidersConfig struct {
	TuongTacCheo ProviderConfig `yaml:"tuongtaccheo"`
	TraoDoiSub   ProviderConfig `yaml:"traodoisub"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:    DefaultListen,
		Recipient: DefaultRecipient,
		RateLimit: RateLimitConfig{
			RPS:   DefaultRateRPS,
			Burst: DefaultRateBurst,
		},
		Browser: BrowserConfig{
			WindowWidth:  DefaultWindowWidth,
			WindowHeight: DefaultWindowHeight,
		},
		Providers: ProvidersConfig{
			TraoDoiSub: ProviderConfig{
				CloseLinger: DefaultTDSCloseDelay,
			},
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// if it exists, then COINRELAY_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file falls back to defaults.
		case err != nil:
			return Config{}, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COINRELAY_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("COINRELAY_RECIPIENT"); v != "" {
		cfg.Recipient = v
	}
	if v := os.Getenv("COINRELAY_CHROME_PATH"); v != "" {
		cfg.Browser.ChromePath = v
	}
	if v := os.Getenv("COINRELAY_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = &headless
		}
	}
	if v := os.Getenv("COINRELAY_RATE_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RPS = rps
		}
	}
}

// Validate rejects configurations that cannot serve requests.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.Recipient == "" {
		return fmt.Errorf("recipient must not be empty")
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive")
	}
	for name, p := range map[string]ProviderConfig{
		"tuongtaccheo": c.Providers.TuongTacCheo,
		"traodoisub":   c.Providers.TraoDoiSub,
	} {
		if p.TransferFraction < 0 || p.TransferFraction > 1 {
			return fmt.Errorf("providers.%s.transfer_fraction must be within (0, 1]", name)
		}
		if p.MinimumBalance < 0 {
			return fmt.Errorf("providers.%s.minimum_balance must not be negative", name)
		}
		if p.CloseLinger < 0 {
			return fmt.Errorf("providers.%s.close_linger must not be negative", name)
		}
	}
	return nil
}
