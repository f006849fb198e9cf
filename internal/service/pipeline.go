package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"squeezetrader/internal/marketdata/bus"
	"squeezetrader/internal/marketdata/resample"
	"squeezetrader/internal/marketdata/wsfeed"
	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

const (
	rawBuffer     = 256
	computeBuffer = 512
	recordBuffer  = 1024
	eventBuffer   = 64
	orderBuffer   = 64
)

// pipeline holds the channels between the live stages:
//
//	feed -> raw -> resampler -> bars -> fanout -> compute (lossless) -> indicators -> events -> engine
//	                                           \-> record (lossy) -> sqlite
//	orders stream -> orders -> engine (applies the position book, then reconciles)
type pipeline struct {
	svc     *Service
	symbols []string

	raw     chan model.Bar
	bars    chan model.Bar
	fan     *bus.FanOut[model.Bar]
	compute <-chan model.Bar
	record  <-chan model.Bar
	events  chan strategy.BarEvent
	orders  chan model.OrderEvent
}

func newPipeline(svc *Service, symbols []string) *pipeline {
	p := &pipeline{
		svc:     svc,
		symbols: symbols,
		raw:     make(chan model.Bar, rawBuffer),
		bars:    make(chan model.Bar, rawBuffer),
		fan:     bus.New[model.Bar](),
		events:  make(chan strategy.BarEvent, eventBuffer),
		orders:  make(chan model.OrderEvent, orderBuffer),
	}
	p.compute = p.fan.SubscribeLossless(computeBuffer)
	p.record = p.fan.Subscribe(recordBuffer)
	subNames := []string{"compute", "record"}
	p.fan.OnDrop = func(idx int) {
		svc.prom.FanoutDropsTotal.WithLabelValues(subNames[idx]).Inc()
	}
	return p
}

// feed pushes raw bars from the configured source. Closes raw on return.
func (p *pipeline) feed(ctx context.Context) error {
	defer close(p.raw)
	cfg := p.svc.cfg
	switch cfg.Feed.Source {
	case "websocket":
		f, err := wsfeed.New(wsfeed.Config{URL: cfg.Feed.WSURL, Symbols: p.symbols})
		if err != nil {
			return err
		}
		f.OnReconnect = func() {
			p.svc.prom.FeedReconnects.Inc()
			p.svc.health.SetFeedConnected(false)
		}
		f.OnDrop = func(_ []byte, _ error) { p.svc.prom.FeedDrops.Inc() }
		p.svc.health.SetFeedConnected(true)
		return f.Start(ctx, p.raw)
	case "redis":
		// Claim bars left pending by a previous run before reading new ones.
		if err := p.svc.consumer.RecoverPendingBars(ctx, p.symbols, p.raw); err != nil {
			log.Printf("[feed] pending recovery: %v", err)
		}
		p.svc.health.SetFeedConnected(true)
		return p.svc.consumer.ConsumeBars(ctx, p.symbols, p.raw)
	default:
		return fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
}

// resample aligns raw bars to the configured bar width. Already aligned
// bars pass through unchanged.
func (p *pipeline) resample(ctx context.Context) error {
	r := resample.New(p.svc.cfg.BarSeconds)
	r.OnStale = func() { p.svc.prom.StaleBars.Inc() }
	r.OnBar = func(b model.Bar) { p.svc.health.ObserveBar(b.Time) }

	stop := make(chan struct{})
	defer close(stop)
	go p.watchSaturation(stop)

	return r.Run(ctx, p.raw, p.bars)
}

// watchSaturation samples channel fill levels every few seconds.
func (p *pipeline) watchSaturation(stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	gauge := p.svc.prom.ChannelSaturationPct
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			gauge.WithLabelValues("raw").Set(saturation(len(p.raw), cap(p.raw)))
			gauge.WithLabelValues("events").Set(saturation(len(p.events), cap(p.events)))
			for i, st := range p.fan.ChannelStats() {
				name := "compute"
				if i == 1 {
					name = "record"
				}
				gauge.WithLabelValues(name).Set(saturation(st.Len, st.Cap))
			}
		}
	}
}

func saturation(n, c int) float64 {
	if c == 0 {
		return 0
	}
	return float64(n) / float64(c) * 100
}
