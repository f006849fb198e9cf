// Package wsfeed streams completed bars from a JSON WebSocket server.
//
// Each text message is one model.Bar:
//
//	{"symbol":"MES 12-26","seq":41,"time":"2026-10-19T14:02:00Z","open":4500.25,"high":4502,"low":4499.75,"close":4501.5,"volume":812}
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"squeezetrader/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds the feed connection settings.
type Config struct {
	// URL of the bar WebSocket server, e.g. "ws://localhost:9001/bars"
	URL string

	// Symbols filters incoming bars. Empty accepts every symbol.
	Symbols []string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Feed connects to a bar server and pushes bars into a channel, reconnecting
// with exponential backoff.
type Feed struct {
	cfg   Config
	allow map[string]bool

	// Optional hooks
	OnReconnect func()
	OnDrop      func(raw []byte, err error) // undecodable or filtered message
}

// New creates a Feed. Returns an error if the URL is not a ws:// or wss:// URL.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("wsfeed: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wsfeed: unsupported scheme %q", u.Scheme)
	}
	f := &Feed{cfg: cfg}
	if len(cfg.Symbols) > 0 {
		f.allow = make(map[string]bool, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			f.allow[s] = true
		}
	}
	return f, nil
}

// Start streams bars into out. Blocks until ctx is cancelled, reconnecting on
// disconnect. Sends block: bars are never dropped for a slow reader.
func (f *Feed) Start(ctx context.Context, out chan<- model.Bar) error {
	delay := f.cfg.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := f.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		if connected {
			delay = f.cfg.ReconnectDelay
		}

		log.Printf("[wsfeed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
// A nil error means ctx was cancelled.
func (f *Feed) runOnce(ctx context.Context, out chan<- model.Bar) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	defer conn.Close()

	log.Printf("[wsfeed] connected to %s", f.cfg.URL)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		bar, err := f.decode(raw)
		if err != nil {
			if f.OnDrop != nil {
				f.OnDrop(raw, err)
			} else {
				log.Printf("[wsfeed] dropping message: %v", err)
			}
			continue
		}

		select {
		case out <- bar:
		case <-ctx.Done():
			return true, nil
		}
	}
}

func (f *Feed) decode(raw []byte) (model.Bar, error) {
	var bar model.Bar
	if err := json.Unmarshal(raw, &bar); err != nil {
		return bar, fmt.Errorf("parse: %w", err)
	}
	if bar.Symbol == "" {
		return bar, fmt.Errorf("empty symbol")
	}
	if f.allow != nil && !f.allow[bar.Symbol] {
		return bar, fmt.Errorf("symbol %q not subscribed", bar.Symbol)
	}
	if bar.Time.IsZero() {
		return bar, fmt.Errorf("missing time")
	}
	return bar, nil
}
