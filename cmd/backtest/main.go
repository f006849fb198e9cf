// cmd/backtest replays historical bars from a CSV file or the SQLite bar store
// through the indicator pipeline, the squeeze engine and the paper broker.
//
// Usage:
//
//	go run ./cmd/backtest --csv=data/mes_2m.csv --symbol="MES 12-26"
//	go run ./cmd/backtest --db=data/bars.db --from=1792368000 --journal=data/bt.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"squeezetrader/config"
	"squeezetrader/internal/execution"
	"squeezetrader/internal/indicator"
	"squeezetrader/internal/logger"
	"squeezetrader/internal/marketdata/replay"
	"squeezetrader/internal/marketdata/resample"
	"squeezetrader/internal/model"
	"squeezetrader/internal/portfolio"
	sqlitestore "squeezetrader/internal/store/sqlite"
	"squeezetrader/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	configPath := flag.String("config", "", "YAML config file (default: environment)")
	csvPath := flag.String("csv", "", "CSV file of bars: time,open,high,low,close[,volume]")
	dbPath := flag.String("db", "", "SQLite bar store to replay (used when --csv is empty)")
	symbol := flag.String("symbol", "", "Instrument symbol (default: config symbol)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	tf := flag.Int("tf", 0, "Bar width in seconds (default: config bar_seconds)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime)")
	journalPath := flag.String("journal", "", "SQLite fill journal (empty disables)")
	slippage := flag.Int("slippage", 0, "Slippage in ticks per market and stop fill")
	pointValue := flag.Float64("point-value", 5, "Currency value of one point per contract")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *tf > 0 {
		cfg.BarSeconds = *tf
	}

	opts := cfg.LoggerOptions()
	opts.File = ""
	if *verbose {
		opts.Level = slog.LevelDebug
	}
	lg := logger.New("backtest", opts)

	bars, err := loadBars(*csvPath, *dbPath, cfg.Symbol, *fromTS)
	if err != nil {
		log.Fatalf("[backtest] load bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatal("[backtest] no bars to replay")
	}
	log.Printf("[backtest] loaded %d bars for %s", len(bars), cfg.Symbol)

	session, err := cfg.MarketSession()
	if err != nil {
		log.Fatalf("[backtest] session: %v", err)
	}
	ind, err := indicator.NewEngine(cfg.IndicatorParams())
	if err != nil {
		log.Fatalf("[backtest] indicators: %v", err)
	}

	inst := cfg.Instrument()
	broker := execution.NewPaperBroker(inst, execution.PaperOptions{SlippageTicks: *slippage}, lg)
	pnl := portfolio.NewPnLTracker(*pointValue)

	var journal *execution.Journal
	if *journalPath != "" {
		journal, err = execution.NewJournal(*journalPath)
		if err != nil {
			log.Fatalf("[backtest] journal: %v", err)
		}
		defer journal.Close()
	}
	broker.OnFill = func(f execution.Fill) {
		pnl.RecordTrade(portfolio.Trade{
			Symbol:    f.Symbol,
			Action:    string(f.Action),
			Qty:       f.Qty,
			Price:     f.Price,
			Timestamp: f.FilledAt,
		})
		if journal != nil {
			if err := journal.RecordFill(f); err != nil {
				log.Printf("[backtest] journal write: %v", err)
			}
		}
	}

	clock := session.ForBars(time.Duration(cfg.BarSeconds) * time.Second)
	engine := strategy.NewEngine(cfg.Params(), inst, broker, broker, clock, lg)
	var entries, exits, skipped int
	engine.Hooks = strategy.Hooks{
		OnEntry: func(model.Bar, strategy.EntryDecision) { entries++ },
		OnExit:  func(model.Bar, string) { exits++ },
		OnSkip:  func(string) { skipped++ },
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Replay in background, resampled to the strategy timeframe
	rawCh := make(chan model.Bar, 10000)
	barCh := make(chan model.Bar, 10000)
	go func() {
		if err := replay.Play(ctx, bars, *speed, rawCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
	}()
	rs := resample.New(cfg.BarSeconds)
	go rs.Run(ctx, rawCh, barCh)

	drain := func() {
		for {
			select {
			case ev := <-broker.Events():
				engine.OnOrderEvent(ctx, ev)
			default:
				return
			}
		}
	}

	processed := 0
	var last model.Bar
	for bar := range barCh {
		broker.OnBar(ctx, bar)
		drain()
		snap, _ := ind.Process(bar)
		engine.OnBar(ctx, bar, snap)
		drain()
		processed++
		last = bar
	}

	sum := pnl.GetSummary(map[string]float64{last.Symbol: last.Close})

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", processed)
	fmt.Printf("║  Bars skipped:      %-16d ║\n", skipped)
	fmt.Printf("║  Entries / exits:   %-16s ║\n", fmt.Sprintf("%d / %d", entries, exits))
	fmt.Printf("║  Fills:             %-16d ║\n", len(broker.GetFills()))
	fmt.Printf("║  Round trips:       %-16d ║\n", sum.RoundTrips)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", sum.WinRate*100))
	fmt.Printf("║  Realized P&L:      %-16.2f ║\n", sum.RealizedPnL)
	fmt.Printf("║  Unrealized P&L:    %-16.2f ║\n", sum.UnrealizedPnL)
	fmt.Printf("║  Max drawdown:      %-16.2f ║\n", sum.MaxDrawdown)
	fmt.Println("╚══════════════════════════════════════╝")
}

func loadBars(csvPath, dbPath, symbol string, fromTS int64) ([]model.Bar, error) {
	if csvPath != "" {
		bars, err := replay.LoadCSVFile(csvPath, symbol)
		if err != nil {
			return nil, err
		}
		out := bars[:0]
		for _, b := range bars {
			if b.Time.Unix() > fromTS {
				out = append(out, b)
			}
		}
		return out, nil
	}
	if dbPath == "" {
		return nil, fmt.Errorf("one of --csv or --db is required")
	}
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return replay.New(reader).Load([]string{symbol}, fromTS)
}
