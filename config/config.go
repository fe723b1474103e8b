package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"confluence-engine/internal/indicator"
	"confluence-engine/internal/model"
	"confluence-engine/internal/portfolio"
	"confluence-engine/internal/sizing"
	"confluence-engine/internal/strategy"
)

// Config holds all engine configuration. It is loaded once at startup,
// validated, and passed by value to the components that need it.
type Config struct {
	Service  string `yaml:"service" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Universe
	Symbols    []string          `yaml:"symbols" validate:"required,min=1,dive,required"`
	Timeframes []model.Timeframe `yaml:"timeframes" validate:"required,min=1"`

	// Evaluation loop
	CycleInterval time.Duration      `yaml:"cycle_interval" validate:"gt=0"`
	Workers       int                `yaml:"workers" validate:"min=1,max=64"`
	WindowSize    int                `yaml:"window_size" validate:"min=2"`
	AuditDepth    int                `yaml:"audit_depth" validate:"min=1"`
	BarRate       float64            `yaml:"bar_rate" validate:"gt=0"` // GetBars calls per second
	BarBurst      int                `yaml:"bar_burst" validate:"min=1"`
	LeverageCaps  map[string]float64 `yaml:"leverage_caps" validate:"dive,gte=1"`

	Indicators  indicator.Params           `yaml:"indicators"`
	Scoring     strategy.ScoringParams     `yaml:"scoring"`
	Aggregation strategy.AggregationParams `yaml:"aggregation"`
	Guard       portfolio.Limits           `yaml:"guard"`
	Sizing      sizing.Params              `yaml:"sizing"`

	// Infrastructure
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	HTTP   HTTPConfig   `yaml:"http"`
	Notify NotifyConfig `yaml:"notify"`
	Paper  PaperConfig  `yaml:"paper"`
}

// RedisConfig locates bar streams and the decision publication targets.
type RedisConfig struct {
	Addr           string `yaml:"addr" validate:"required,hostname_port"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db" validate:"min=0"`
	BarPrefix      string `yaml:"bar_prefix" validate:"required"`
	DecisionStream string `yaml:"decision_stream" validate:"required"`
	StreamMaxLen   int64  `yaml:"stream_max_len" validate:"min=1"`
	CapitalKey     string `yaml:"capital_key" validate:"required"`
	Channel        string `yaml:"channel" validate:"required"`
	AccountKey     string `yaml:"account_key" validate:"required"` // live account snapshot (JSON)
}

// SQLiteConfig controls the decision journal.
type SQLiteConfig struct {
	Path          string        `yaml:"path" validate:"required"`
	BatchSize     int           `yaml:"batch_size" validate:"min=1"`
	FlushInterval time.Duration `yaml:"flush_interval" validate:"gt=0"`
}

// HTTPConfig holds listen addresses.
type HTTPConfig struct {
	APIAddr     string `yaml:"api_addr" validate:"required"`
	MetricsAddr string `yaml:"metrics_addr" validate:"required"`
}

// NotifyConfig selects alert channels. Empty values disable a channel.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url" validate:"omitempty,url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id" validate:"required_with=TelegramToken"`
}

// PaperConfig configures the simulated account used by `run --paper`.
type PaperConfig struct {
	StartingBalance float64 `yaml:"starting_balance" validate:"gt=0"`
	SlippageBps     float64 `yaml:"slippage_bps" validate:"gte=0,lt=10000"`
}

// SizingParams returns the sizing parameters with the trade floor taken
// from the scoring parameters.
func (c *Config) SizingParams() sizing.Params {
	p := c.Sizing
	p.TradeMin = c.Scoring.TradeMin
	return p
}

// LeverageCap returns the per-symbol leverage cap, or 0 when none is set.
func (c *Config) LeverageCap(symbol string) float64 {
	return c.LeverageCaps[symbol]
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if present),
// then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %v: %w", path, err, model.ErrConfigurationInvalid)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] ignoring unreadable .env: %v", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.SQLite.Path = getEnv("SQLITE_PATH", c.SQLite.Path)
	c.HTTP.MetricsAddr = getEnv("METRICS_ADDR", c.HTTP.MetricsAddr)
	c.HTTP.APIAddr = getEnv("API_ADDR", c.HTTP.APIAddr)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken)
	c.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v := os.Getenv("ENABLED_TFS"); v != "" {
		tfs, err := ParseTFs(v)
		if err != nil {
			return err
		}
		c.Timeframes = tfs
	}
	return nil
}

// ParseTFs parses a comma-separated timeframe list such as "1m,5m,900".
func ParseTFs(s string) ([]model.Timeframe, error) {
	parts := splitList(s)
	tfs := make([]model.Timeframe, 0, len(parts))
	for _, p := range parts {
		tf, err := model.ParseTimeframe(p)
		if err != nil {
			return nil, fmt.Errorf("ENABLED_TFS: %v: %w", err, model.ErrConfigurationInvalid)
		}
		tfs = append(tfs, tf)
	}
	return tfs, nil
}

var validate = validator.New()

// Validate checks struct tags and cross-field rules. Every error wraps
// model.ErrConfigurationInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrConfigurationInvalid)
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	seen := make(map[model.Timeframe]bool, len(c.Timeframes))
	for _, tf := range c.Timeframes {
		if !tf.Valid() {
			add("unsupported timeframe %s", tf)
		}
		if seen[tf] {
			add("duplicate timeframe %s", tf)
		}
		seen[tf] = true
		if c.Aggregation.Weights[tf] <= 0 {
			add("timeframe %s has no positive aggregation weight", tf)
		}
	}

	s := c.Scoring
	if !(s.CandidateMin <= s.TradeMin && s.TradeMin <= s.MaxConfidence) {
		add("scoring floors must satisfy candidate %.1f <= trade %.1f <= max %.1f", s.CandidateMin, s.TradeMin, s.MaxConfidence)
	}
	if s.BaseConfidence > s.MaxConfidence {
		add("base confidence %.1f above max %.1f", s.BaseConfidence, s.MaxConfidence)
	}
	for i := 1; i < len(s.VolumeTiers); i++ {
		if s.VolumeTiers[i].Ratio <= s.VolumeTiers[i-1].Ratio {
			add("volume tiers must be strictly ascending (tier %d ratio %.2f)", i, s.VolumeTiers[i].Ratio)
		}
	}
	if !(s.MoneyFlowOversold < s.MoneyFlowMid && s.MoneyFlowMid < s.MoneyFlowOverbought) {
		add("money-flow levels must satisfy oversold < mid < overbought")
	}
	if s.BandLow >= s.BandHigh {
		add("band low %.2f must be below band high %.2f", s.BandLow, s.BandHigh)
	}

	a := c.Aggregation
	if a.ModerateConfidence > a.StrongConfidence {
		add("aggregation moderate confidence %.1f above strong %.1f", a.ModerateConfidence, a.StrongConfidence)
	}

	if lb := indicator.NewDefaultCalculator(c.Indicators).Lookback(); c.WindowSize < lb {
		add("window size %d below indicator lookback %d", c.WindowSize, lb)
	}

	if err := c.Guard.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SizingParams().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", model.ErrConfigurationInvalid, errors.Join(errs...))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
