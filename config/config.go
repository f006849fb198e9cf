// Package config loads and validates squeezetrader settings.
//
// Settings come either from the environment (Load, with an optional .env
// file) or from a YAML file (LoadFile). Both paths apply the same `default`
// tags and the same validation rules.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"squeezetrader/internal/indicator"
	"squeezetrader/internal/logger"
	"squeezetrader/internal/markethours"
	"squeezetrader/internal/model"
	redisstore "squeezetrader/internal/store/redis"
	"squeezetrader/internal/strategy"
)

// EnvPrefix prefixes every environment variable, e.g. SQUEEZE_SYMBOL.
const EnvPrefix = "SQUEEZE"

// Config holds all application configuration.
type Config struct {
	Symbol   string  `yaml:"symbol" envconfig:"SYMBOL" default:"MES 12-26" validate:"required"`
	TickSize float64 `yaml:"tick_size" envconfig:"TICK_SIZE" default:"0.25" validate:"gt=0"`

	// BarSeconds is the strategy timeframe; finer feeds are resampled to it.
	BarSeconds int `yaml:"bar_seconds" envconfig:"BAR_SECONDS" default:"120" validate:"min=1"`

	Strategy   StrategyConfig  `yaml:"strategy" envconfig:"STRATEGY"`
	Indicators IndicatorConfig `yaml:"indicators" envconfig:"INDICATORS"`
	Session    SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Feed       FeedConfig      `yaml:"feed" envconfig:"FEED"`
	Redis      RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	SQLite     SQLiteConfig    `yaml:"sqlite" envconfig:"SQLITE"`
	Metrics    MetricsConfig   `yaml:"metrics" envconfig:"METRICS"`
	Log        LogConfig       `yaml:"log" envconfig:"LOG"`
	Notify     NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
}

// StrategyConfig mirrors strategy.Params.
type StrategyConfig struct {
	SignalTag    string `yaml:"signal_tag" envconfig:"SIGNAL_TAG" default:"ATR_EMA_Long" validate:"required"`
	ContractSize int64  `yaml:"contract_size" envconfig:"CONTRACT_SIZE" default:"1" validate:"min=1"`

	// TickTolerance is in ticks.
	TickTolerance        float64 `yaml:"tick_tolerance" envconfig:"TICK_TOLERANCE" default:"2" validate:"gte=0.1"`
	StopOffset           float64 `yaml:"stop_offset" envconfig:"STOP_OFFSET" default:"2" validate:"gte=0"`
	TargetOffset         float64 `yaml:"target_offset" envconfig:"TARGET_OFFSET" default:"2" validate:"gte=0"`
	TrailingProfitBuffer float64 `yaml:"trailing_profit_buffer" envconfig:"TRAILING_PROFIT_BUFFER" default:"2" validate:"gte=0.1"`
	MinProfitPoints      float64 `yaml:"min_profit_points" envconfig:"MIN_PROFIT_POINTS" default:"4" validate:"gte=0"`

	UseTrailingStop   bool `yaml:"use_trailing_stop" envconfig:"USE_TRAILING_STOP" default:"true"`
	UseTrailingProfit bool `yaml:"use_trailing_profit" envconfig:"USE_TRAILING_PROFIT" default:"true"`

	WarmupBars int `yaml:"warmup_bars" envconfig:"WARMUP_BARS" default:"50" validate:"gte=0"`

	// AllowedSymbols is a comma-separated list of symbol fragments.
	AllowedSymbols string `yaml:"allowed_symbols" envconfig:"ALLOWED_SYMBOLS" default:"MES,MNQ" validate:"required"`

	ExitOnSessionClose bool `yaml:"exit_on_session_close" envconfig:"EXIT_ON_SESSION_CLOSE" default:"true"`
}

// IndicatorConfig mirrors indicator.Config.
type IndicatorConfig struct {
	ATRPeriod    int     `yaml:"atr_period" envconfig:"ATR_PERIOD" default:"9" validate:"min=1"`
	ATRFactor    float64 `yaml:"atr_factor" envconfig:"ATR_FACTOR" default:"2.9" validate:"gte=0.1"`
	ATRSmoothing string  `yaml:"atr_smoothing" envconfig:"ATR_SMOOTHING" default:"EMA" validate:"oneof=SMA EMA SMMA"`

	EMAPeriod int `yaml:"ema_period" envconfig:"EMA_PERIOD" default:"21" validate:"min=1"`

	KeltnerPeriod     int     `yaml:"keltner_period" envconfig:"KELTNER_PERIOD" default:"21" validate:"min=1"`
	KeltnerMultiplier float64 `yaml:"keltner_multiplier" envconfig:"KELTNER_MULTIPLIER" default:"3" validate:"gt=0"`

	SqueezePeriod int     `yaml:"squeeze_period" envconfig:"SQUEEZE_PERIOD" default:"21" validate:"min=1"`
	BBMultiplier  float64 `yaml:"bb_multiplier" envconfig:"BB_MULTIPLIER" default:"2" validate:"gt=0"`
	KCMultiplier  float64 `yaml:"kc_multiplier" envconfig:"KC_MULTIPLIER" default:"1.5" validate:"gt=0"`
}

// SessionConfig describes the daily session close used for flattening.
type SessionConfig struct {
	Location   string        `yaml:"location" envconfig:"LOCATION" default:"America/Chicago" validate:"required"`
	Close      string        `yaml:"close" envconfig:"CLOSE" default:"16:00" validate:"required"`
	ExitWindow time.Duration `yaml:"exit_window" envconfig:"EXIT_WINDOW" default:"30s" validate:"gte=0"`
}

// FeedConfig selects the live bar source.
type FeedConfig struct {
	Source string `yaml:"source" envconfig:"SOURCE" default:"redis" validate:"oneof=redis websocket"`
	WSURL  string `yaml:"ws_url" envconfig:"WS_URL" default:"ws://localhost:9001/bars" validate:"omitempty,url"`
}

// RedisConfig holds stream transport settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR" default:"localhost:6379" validate:"required"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	Group    string `yaml:"group" envconfig:"GROUP" default:"squeezed" validate:"required"`
	Consumer string `yaml:"consumer" envconfig:"CONSUMER" default:"squeezed-1" validate:"required"`
	MaxLen   int64  `yaml:"max_len" envconfig:"MAX_LEN" default:"10000" validate:"min=1"`

	BreakerFailures int           `yaml:"breaker_failures" envconfig:"BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" envconfig:"BREAKER_COOLDOWN" default:"10s"`
}

// SQLiteConfig holds local persistence settings.
type SQLiteConfig struct {
	BarsPath      string        `yaml:"bars_path" envconfig:"BARS_PATH" default:"data/bars.db" validate:"required"`
	JournalPath   string        `yaml:"journal_path" envconfig:"JOURNAL_PATH" default:"data/journal.db" validate:"required"`
	BatchSize     int           `yaml:"batch_size" envconfig:"BATCH_SIZE" default:"100" validate:"min=1"`
	FlushInterval time.Duration `yaml:"flush_interval" envconfig:"FLUSH_INTERVAL" default:"1s"`
}

// MetricsConfig holds the metrics/health server address.
type MetricsConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" default:":9090" validate:"required"`
}

// LogConfig controls the slog output.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" default:"100" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" default:"5" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" default:"14" validate:"gte=0"`
}

// NotifyConfig enables webhook alerts when WebhookURL is set.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url" envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5s"`
}

var validate = validator.New()

// Load reads configuration from SQUEEZE_* environment variables, after
// loading a .env file from the working directory if one exists.
func Load() (*Config, error) {
	// .env is optional outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML file. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated config built from `default` tags only.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidation(err)
	}
	if _, err := time.LoadLocation(c.Session.Location); err != nil {
		return fmt.Errorf("config: session location %q: %w", c.Session.Location, err)
	}
	if _, err := time.Parse("15:04", c.Session.Close); err != nil {
		return fmt.Errorf("config: session close %q must be HH:MM: %w", c.Session.Close, err)
	}
	if c.Feed.Source == "websocket" && c.Feed.WSURL == "" {
		return errors.New("config: Feed.WSURL is required for the websocket feed")
	}
	if len(c.Symbols()) == 0 {
		return errors.New("config: Strategy.AllowedSymbols has no symbols")
	}
	return nil
}

// Symbols splits AllowedSymbols into trimmed, non-empty fragments.
func (c *Config) Symbols() []string {
	parts := strings.Split(c.Strategy.AllowedSymbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Instrument returns the traded contract.
func (c *Config) Instrument() model.Instrument {
	return model.Instrument{Symbol: c.Symbol, TickSize: c.TickSize}
}

// MarketSession builds the session clock used for the pre-close exit.
func (c *Config) MarketSession() (*markethours.Session, error) {
	return markethours.New(c.Session.Location, c.Session.Close, c.Session.ExitWindow)
}

// RedisParams projects the config onto the stream store settings.
func (c *Config) RedisParams() redisstore.Config {
	r := c.Redis
	return redisstore.Config{
		Addr:            r.Addr,
		Password:        r.Password,
		Group:           r.Group,
		Consumer:        r.Consumer,
		MaxLen:          r.MaxLen,
		BreakerFailures: r.BreakerFailures,
		BreakerCooldown: r.BreakerCooldown,
	}
}

// Params projects the config onto the engine settings.
func (c *Config) Params() strategy.Params {
	s := c.Strategy
	return strategy.Params{
		SignalTag:            s.SignalTag,
		ContractSize:         s.ContractSize,
		TickSize:             c.TickSize,
		TickTolerance:        s.TickTolerance,
		StopOffset:           s.StopOffset,
		TargetOffset:         s.TargetOffset,
		TrailingProfitBuffer: s.TrailingProfitBuffer,
		MinProfitPoints:      s.MinProfitPoints,
		UseTrailingStop:      s.UseTrailingStop,
		UseTrailingProfit:    s.UseTrailingProfit,
		WarmupBars:           s.WarmupBars,
		AllowedSymbols:       c.Symbols(),
		ExitOnSessionClose:   s.ExitOnSessionClose,
	}
}

// IndicatorParams projects the config onto the indicator provider settings.
func (c *Config) IndicatorParams() indicator.Config {
	i := c.Indicators
	return indicator.Config{
		ATRPeriod:         i.ATRPeriod,
		ATRFactor:         i.ATRFactor,
		ATRSmoothing:      i.ATRSmoothing,
		EMAPeriod:         i.EMAPeriod,
		KeltnerPeriod:     i.KeltnerPeriod,
		KeltnerMultiplier: i.KeltnerMultiplier,
		SqueezePeriod:     i.SqueezePeriod,
		BBMultiplier:      i.BBMultiplier,
		KCMultiplier:      i.KCMultiplier,
	}
}

// LoggerOptions projects the log settings. The level was validated.
func (c *Config) LoggerOptions() logger.Options {
	lvl, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return logger.Options{
		Level:      lvl,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// formatValidation turns validator field errors into one readable error.
func formatValidation(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
