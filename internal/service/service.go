// Package service wires the live squeeze engine: bar feed, indicators,
// strategy, intent and order streams, bar recording, metrics and alerts.
package service

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"squeezetrader/config"
	"squeezetrader/internal/execution"
	"squeezetrader/internal/gateway"
	"squeezetrader/internal/indicator"
	"squeezetrader/internal/markethours"
	"squeezetrader/internal/metrics"
	"squeezetrader/internal/model"
	"squeezetrader/internal/notification"
	redisstore "squeezetrader/internal/store/redis"
	sqlitestore "squeezetrader/internal/store/sqlite"
	"squeezetrader/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// backfillBars is how many stored bars warm the indicators at startup.
const backfillBars = 200

// Service is the top-level orchestrator for one traded instrument.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	rdb       *goredis.Client
	publisher *redisstore.Publisher
	consumer  *redisstore.Consumer
	sqlWriter *sqlitestore.Writer
	sqlReader *sqlitestore.Reader
	journal   *execution.Journal

	indicators *indicator.Engine
	engine     *strategy.Engine
	book       *execution.PositionBook
	session    *markethours.Session
	dispatcher *notification.Dispatcher

	prom   *metrics.Metrics
	health *metrics.HealthStatus
	state  *metrics.StateHolder
	server *metrics.Server
	hub    *gateway.Hub
}

// New connects to Redis and SQLite and builds the engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	svc := &Service{
		cfg:    cfg,
		log:    logger.With(slog.String("component", "service")),
		health: metrics.NewHealthStatus(),
		state:  metrics.NewStateHolder(),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	svc.prom = metrics.New(reg)
	svc.server = metrics.NewServer(cfg.Metrics.Addr, reg, svc.health, svc.state)
	svc.hub = gateway.NewHub()
	svc.hub.OnSlowClient = func() { svc.prom.FanoutDropsTotal.WithLabelValues("ws").Inc() }
	svc.server.Handle("/ws", svc.hub)

	var err error
	svc.session, err = cfg.MarketSession()
	if err != nil {
		return nil, err
	}
	svc.indicators, err = indicator.NewEngine(cfg.IndicatorParams())
	if err != nil {
		return nil, err
	}

	// ---- Redis ----
	rcfg := cfg.RedisParams()
	svc.rdb, err = redisstore.Dial(ctx, rcfg)
	if err != nil {
		return nil, err
	}
	svc.health.SetRedisConnected(true)
	svc.publisher = redisstore.NewPublisher(svc.rdb, rcfg)
	svc.publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
		svc.prom.RecordBreakerState(int(to), to == redisstore.StateOpen)
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}
	svc.consumer = redisstore.NewConsumer(svc.rdb, rcfg)
	svc.consumer.OnDecodeError = func(stream string) {
		svc.prom.DecodeErrors.WithLabelValues(stream).Inc()
	}

	// ---- SQLite ----
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.BarsPath), 0o755); err != nil {
		svc.rdb.Close()
		return nil, fmt.Errorf("sqlite dir: %w", err)
	}
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{
		DBPath:     cfg.SQLite.BarsPath,
		BatchSize:  cfg.SQLite.BatchSize,
		FlushDelay: cfg.SQLite.FlushInterval,
	})
	if err != nil {
		svc.rdb.Close()
		return nil, err
	}
	svc.sqlWriter.OnCommit = func(_ int, took time.Duration) {
		svc.prom.SQLiteCommitDur.Observe(took.Seconds())
	}
	svc.health.SetSQLiteOK(true)
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.JournalPath), 0o755); err != nil {
		svc.sqlWriter.Close()
		svc.rdb.Close()
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	svc.journal, err = execution.NewJournal(cfg.SQLite.JournalPath)
	if err != nil {
		svc.sqlWriter.Close()
		svc.rdb.Close()
		return nil, err
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLite.BarsPath)
	if err != nil {
		log.Printf("[service] WARNING: sqlite reader init failed: %v (continuing without backfill)", err)
	}

	// ---- Strategy ----
	// The engine applies order events to the book on its own goroutine.
	inst := cfg.Instrument()
	svc.book = execution.NewPositionBook(inst.Symbol)
	router := execution.NewStreamRouter(inst.Symbol, svc.publisher)
	clock := svc.session.ForBars(time.Duration(cfg.BarSeconds) * time.Second)
	svc.engine = strategy.NewEngine(cfg.Params(), inst, router, svc.book, clock, logger)

	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.Notify.WebhookURL != "" {
		notifier = notification.Multi{notifier, notification.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)}
	}
	svc.dispatcher = notification.NewDispatcher(notifier, 64)

	return svc, nil
}

// publishState copies the engine state into the /state holder, the
// WebSocket hub and Redis.
// Runs on the engine goroutine.
func (svc *Service) publishState(ctx context.Context) {
	snap := metrics.EngineSnapshot{
		Symbol:    svc.cfg.Symbol,
		State:     svc.engine.State(),
		Position:  svc.book.Position(),
		Bars:      svc.engine.BarsSeen(),
		UpdatedAt: time.Now().UTC(),
	}
	svc.state.Publish(snap)
	svc.hub.Broadcast(gateway.ChannelState, snap)
	if err := svc.publisher.PublishState(ctx, snap.Symbol, snap); err != nil {
		svc.log.Debug("publish state failed", slog.Any("error", err))
	}
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	symbols := []string{cfg.Symbol}
	svc.log.Info("starting squeeze engine",
		slog.String("symbol", cfg.Symbol),
		slog.String("feed", cfg.Feed.Source),
		slog.Int("bar_seconds", cfg.BarSeconds))

	svc.backfill()

	svc.engine.Hooks = strategy.ChainHooks(
		svc.prom.EngineHooks(cfg.Symbol, svc.book),
		svc.dispatcher.EngineHooks(cfg.Symbol),
		svc.hub.EngineHooks(cfg.Symbol),
		strategy.Hooks{
			OnOrderEvent:  func(ev model.OrderEvent) { recordFill(svc.journal, ev) },
			OnBar:         func(time.Duration) { svc.publishState(ctx) },
			OnStateChange: func(strategy.EngineState) { svc.publishState(ctx) },
		},
	)

	if err := svc.consumer.EnsureGroups(ctx, redisstore.OrderStream(cfg.Symbol)); err != nil {
		return fmt.Errorf("order stream group: %w", err)
	}
	if cfg.Feed.Source == "redis" {
		if err := svc.consumer.EnsureGroups(ctx, redisstore.BarStream(cfg.Symbol)); err != nil {
			return fmt.Errorf("bar stream group: %w", err)
		}
	}

	svc.server.Start()
	svc.health.StartLivenessChecker(ctx, svc.rdb, svc.sqlWriter.DB(), 15*time.Second)

	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && ctx.Err() == nil {
				svc.log.Error("subsystem stopped", slog.String("name", name), slog.Any("error", err))
			}
		}()
	}

	p := newPipeline(svc, symbols)
	goRun("feed", func() error { return p.feed(ctx) })
	goRun("resample", func() error { return p.resample(ctx) })
	goRun("fanout", func() error { p.fan.Run(ctx, p.bars); return nil })
	goRun("recorder", func() error { svc.sqlWriter.Run(ctx, p.record); return nil })
	goRun("indicators", func() error { return svc.indicators.Run(ctx, p.compute, p.events) })
	goRun("orders", func() error { return svc.consumer.ConsumeOrders(ctx, symbols, p.orders) })
	goRun("engine", func() error { svc.engine.Run(ctx, p.events, p.orders); return nil })
	goRun("alerts", func() error { svc.dispatcher.Run(ctx); return nil })
	goRun("session", func() error { svc.watchSession(ctx); return nil })

	svc.log.Info("all systems running")
	<-ctx.Done()
	wg.Wait()
	svc.shutdown()
	return nil
}

// backfill warms the indicator providers with the most recent stored bars.
// Bars go to the indicators only, never to the strategy.
func (svc *Service) backfill() {
	if svc.sqlReader == nil {
		return
	}
	bars, err := svc.sqlReader.ReadBars(svc.cfg.Symbol, 0)
	if err != nil {
		log.Printf("[service] backfill read error: %v", err)
		return
	}
	if len(bars) > backfillBars {
		bars = bars[len(bars)-backfillBars:]
	}
	for _, b := range bars {
		svc.indicators.Process(b)
	}
	if len(bars) > 0 {
		svc.log.Info("indicators warmed from stored bars", slog.Int("bars", len(bars)))
	}
}

// watchSession keeps the market state gauge current.
func (svc *Service) watchSession(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		now := time.Now()
		open := 0.0
		if svc.session.IsOpen(now) {
			open = 1
		}
		svc.prom.MarketState.Set(open)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown closes connections after every goroutine has stopped.
func (svc *Service) shutdown() {
	svc.log.Info("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := svc.server.Stop(shutCtx); err != nil {
		log.Printf("[metrics] shutdown: %v", err)
	}
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	svc.sqlWriter.Close()
	svc.journal.Close()
	svc.rdb.Close()
	svc.log.Info("shutdown complete")
}

// recordFill journals filled and partially filled order events.
func recordFill(j *execution.Journal, ev model.OrderEvent) {
	f, ok := fillFromEvent(ev)
	if !ok {
		return
	}
	if err := j.RecordFill(f); err != nil {
		log.Printf("[journal] record fill %s: %v", ev.OrderID, err)
	}
}

// fillFromEvent converts a broker fill notification into a journal fill.
func fillFromEvent(ev model.OrderEvent) (execution.Fill, bool) {
	if (ev.State != model.OrderFilled && ev.State != model.OrderPartFilled) || ev.FillQty <= 0 {
		return execution.Fill{}, false
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return execution.Fill{
		OrderID:  ev.OrderID,
		Name:     ev.Name,
		Symbol:   ev.Symbol,
		Action:   ev.Action,
		Qty:      ev.FillQty,
		Price:    ev.FillPrice,
		Reason:   ev.Reason,
		FilledAt: at,
	}, true
}
