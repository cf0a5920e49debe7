// Package config loads the YAML configuration for the outcome engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Engine   EngineConfig   `yaml:"engine"`
	Batch    BatchConfig    `yaml:"batch"`
	Server   ServerConfig   `yaml:"server"`
	Calendar CalendarConfig `yaml:"calendar"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// StorageConfig selects the store backends.
type StorageConfig struct {
	Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional; serves daily prices when set
	MaxConns      int32  `yaml:"max_conns" default:"8" validate:"gte=1"`
	Migrate       bool   `yaml:"migrate" default:"true"`
}

// EngineConfig holds the detection and aggregation parameters.
type EngineConfig struct {
	LookbackDays   int     `yaml:"lookback_days" default:"180" validate:"gt=0"`
	TopN           int     `yaml:"top_n" default:"8" validate:"gt=0"`
	ThresholdPct   float64 `yaml:"threshold_pct" default:"25" validate:"gt=0,lte=100"`
	Hysteresis     int     `yaml:"hysteresis" default:"2" validate:"gte=1"`
	ShortHorizon   int     `yaml:"short_horizon" default:"5" validate:"gt=0"`
	LongHorizon    int     `yaml:"long_horizon" default:"10" validate:"gtfield=ShortHorizon"`
	DrawdownWindow int     `yaml:"drawdown_window" default:"10" validate:"gt=0"`
	HalfLifeDays   float64 `yaml:"half_life_days" default:"45" validate:"gt=0"`
}

// BatchConfig controls symbol scheduling.
type BatchConfig struct {
	Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1,lte=64"`
	RateLimit   float64       `yaml:"rate_limit" default:"20" validate:"gte=0"` // store calls per second, 0 = unlimited
	Timeout     time.Duration `yaml:"timeout" default:"10m" validate:"gt=0"`
	Symbols     []string      `yaml:"symbols"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr       string `yaml:"addr" default:":9090" validate:"required"`
	Schedule   string `yaml:"schedule" default:"15 */4 * * *" validate:"required"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// CalendarConfig configures the trading-calendar gap audit.
type CalendarConfig struct {
	Enabled    bool   `yaml:"enabled" default:"true"`
	DefaultMIC string `yaml:"default_mic" default:"xnys"`
}

var validate = validator.New()

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML file over the defaults. An empty path yields defaults only.
// Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// applyEnv overrides values from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
		if c.Storage.Backend == "memory" {
			c.Storage.Backend = "postgres"
		}
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Batch.Symbols = ParseSymbols(v)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// ParseSymbols parses a comma-separated symbol list, uppercasing entries.
func ParseSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, strings.ToUpper(sym))
		}
	}
	return out
}
