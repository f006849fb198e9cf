package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cfg.Symbol != "MES 12-26" || cfg.TickSize != 0.25 || cfg.BarSeconds != 120 {
		t.Errorf("unexpected instrument defaults: %+v", cfg)
	}
	if cfg.Session.ExitWindow != 30*time.Second {
		t.Errorf("exit window: got %v", cfg.Session.ExitWindow)
	}
	if cfg.Indicators.ATRFactor != 2.9 || cfg.Indicators.EMAPeriod != 21 {
		t.Errorf("indicator defaults: %+v", cfg.Indicators)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := writeYAML(t, `
symbol: "MNQ 12-26"
strategy:
  contract_size: 2
  use_trailing_profit: false
  allowed_symbols: "MNQ, MYM ,"
session:
  exit_window: 45s
log:
  level: debug
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Symbol != "MNQ 12-26" {
		t.Errorf("symbol: got %q", cfg.Symbol)
	}
	if cfg.Strategy.ContractSize != 2 || cfg.Strategy.UseTrailingProfit {
		t.Errorf("strategy overrides not applied: %+v", cfg.Strategy)
	}
	if !cfg.Strategy.UseTrailingStop || cfg.Strategy.MinProfitPoints != 4 {
		t.Errorf("strategy defaults lost: %+v", cfg.Strategy)
	}
	if cfg.Session.ExitWindow != 45*time.Second {
		t.Errorf("exit window: got %v", cfg.Session.ExitWindow)
	}
	if got := cfg.Symbols(); !reflect.DeepEqual(got, []string{"MNQ", "MYM"}) {
		t.Errorf("Symbols: got %v", got)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis default: got %q", cfg.Redis.Addr)
	}
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"contract size", "strategy:\n  contract_size: 0\n", "Strategy.ContractSize must be at least 1"},
		{"tick tolerance", "strategy:\n  tick_tolerance: 0.05\n", "Strategy.TickTolerance must be greater than or equal to 0.1"},
		{"tick size", "tick_size: 0\n", "TickSize must be greater than 0"},
		{"atr smoothing", "indicators:\n  atr_smoothing: HMA\n", "Indicators.ATRSmoothing must be one of: SMA, EMA, SMMA"},
		{"feed source", "feed:\n  source: kafka\n", "Feed.Source must be one of"},
		{"webhook url", "notify:\n  webhook_url: not a url\n", "Notify.WebhookURL must be a valid URL"},
		{"session close", "session:\n  close: \"4pm\"\n", "session close"},
		{"location", "session:\n  location: Mars/Olympus\n", "session location"},
		{"empty symbols", "strategy:\n  allowed_symbols: \" , \"\n", "no symbols"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeYAML(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SQUEEZE_SYMBOL", "MES 03-27")
	t.Setenv("SQUEEZE_STRATEGY_WARMUP_BARS", "10")
	t.Setenv("SQUEEZE_STRATEGY_USE_TRAILING_STOP", "false")
	t.Setenv("SQUEEZE_INDICATORS_ATR_FACTOR", "3.1")
	t.Setenv("SQUEEZE_REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol != "MES 03-27" || cfg.Strategy.WarmupBars != 10 || cfg.Strategy.UseTrailingStop {
		t.Errorf("env overrides not applied: %+v", cfg.Strategy)
	}
	if cfg.Indicators.ATRFactor != 3.1 || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("nested env overrides not applied: atr=%v redis=%q", cfg.Indicators.ATRFactor, cfg.Redis.Addr)
	}
	if cfg.Strategy.SignalTag != "ATR_EMA_Long" {
		t.Errorf("default signal tag: got %q", cfg.Strategy.SignalTag)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("SQUEEZE_STRATEGY_CONTRACT_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for contract size 0")
	}
}

func TestParamsProjection(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.TickSize = 0.5
	cfg.Strategy.TickTolerance = 3

	p := cfg.Params()
	if p.Tolerance() != 1.5 {
		t.Errorf("tolerance: got %v, want 1.5", p.Tolerance())
	}
	if p.ContractSize != 1 || p.WarmupBars != 50 || !p.ExitOnSessionClose {
		t.Errorf("unexpected params: %+v", p)
	}
	if !reflect.DeepEqual(p.AllowedSymbols, []string{"MES", "MNQ"}) {
		t.Errorf("allowed symbols: %v", p.AllowedSymbols)
	}

	ic := cfg.IndicatorParams()
	if ic.ATRPeriod != 9 || ic.KeltnerMultiplier != 3 || ic.KCMultiplier != 1.5 {
		t.Errorf("indicator params: %+v", ic)
	}

	lo := cfg.LoggerOptions()
	if lo.MaxSizeMB != 100 || lo.File != "" {
		t.Errorf("logger options: %+v", lo)
	}

	if inst := cfg.Instrument(); inst.Symbol != "MES 12-26" || inst.TickSize != 0.5 {
		t.Errorf("instrument: %+v", inst)
	}
	rp := cfg.RedisParams()
	if rp.Addr != "localhost:6379" || rp.Group != "squeezed" || rp.BreakerFailures != 5 || rp.BreakerCooldown != 10*time.Second {
		t.Errorf("redis params: %+v", rp)
	}
	sess, err := cfg.MarketSession()
	if err != nil {
		t.Fatalf("MarketSession: %v", err)
	}
	if sess.Location().String() != "America/Chicago" {
		t.Errorf("session location: %v", sess.Location())
	}
}
