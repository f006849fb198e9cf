// cmd/barserver is a demo bar server for running squeezed without a live feed.
// It broadcasts bars as JSON over WebSocket (the wsfeed format) and can mirror
// them into the Redis bars:{symbol} stream.
//
// Bars come from a CSV file or SQLite bar store when given, otherwise from a
// random walk aligned to the tick size.
//
// Usage:
//
//	go run ./cmd/barserver --addr=:9001 --symbol="MES 12-26"
//	go run ./cmd/barserver --csv=data/mes_2m.csv --speed=60 --redis
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"squeezetrader/config"
	"squeezetrader/internal/marketdata/replay"
	"squeezetrader/internal/model"
	redisstore "squeezetrader/internal/store/redis"
	sqlitestore "squeezetrader/internal/store/sqlite"

	"github.com/gorilla/websocket"
)

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop bar
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[barserver] upgrade error: %v", err)
			return
		}
		log.Printf("[barserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[barserver] client disconnected: %s", r.RemoteAddr)
		}()

		// Drain reads so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Bar generator ───────────────────────────────────────────────────────────

// walker produces random-walk bars on the tick grid.
type walker struct {
	symbol string
	tick   float64
	price  float64
	seq    int64
	rng    *rand.Rand
}

func (w *walker) next(closeAt time.Time) model.Bar {
	round := func(p float64) float64 { return math.Round(p/w.tick) * w.tick }
	step := func() float64 { return float64(w.rng.Intn(9)-4) * w.tick }

	open := w.price
	cl := round(open + step()*2)
	high := math.Max(open, cl) + math.Abs(step())
	low := math.Min(open, cl) - math.Abs(step())
	w.price = cl
	w.seq++
	return model.Bar{
		Symbol: w.symbol,
		Seq:    w.seq,
		Time:   closeAt.UTC(),
		Open:   open,
		High:   round(high),
		Low:    round(low),
		Close:  cl,
		Volume: int64(w.rng.Intn(500) + 1),
	}
}

func runGenerator(ctx context.Context, w *walker, interval time.Duration, out chan<- model.Bar) {
	defer close(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			select {
			case out <- w.next(t):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	addr := flag.String("addr", ":9001", "Listen address")
	configPath := flag.String("config", "", "YAML config file (default: environment)")
	csvPath := flag.String("csv", "", "CSV file of bars to replay")
	dbPath := flag.String("db", "", "SQLite bar store to replay")
	speed := flag.Float64("speed", 1, "Replay speed multiplier (0=max)")
	interval := flag.Duration("interval", 2*time.Second, "Random walk bar interval")
	start := flag.Float64("price", 5000, "Random walk start price")
	mirror := flag.Bool("redis", false, "Also XADD bars to the Redis bars stream")
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
		log.Fatalf("[barserver] config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var pub *redisstore.Publisher
	if *mirror {
		rcfg := cfg.RedisParams()
		rdb, err := redisstore.Dial(ctx, rcfg)
		if err != nil {
			log.Fatalf("[barserver] redis: %v", err)
		}
		defer rdb.Close()
		pub = redisstore.NewPublisher(rdb, rcfg)
	}

	barCh := make(chan model.Bar, 1024)
	switch {
	case *csvPath != "" || *dbPath != "":
		bars, err := loadBars(*csvPath, *dbPath, cfg.Symbol)
		if err != nil {
			log.Fatalf("[barserver] load bars: %v", err)
		}
		go func() {
			if err := replay.Play(ctx, bars, *speed, barCh); err != nil {
				log.Printf("[barserver] replay: %v", err)
			}
		}()
	default:
		w := &walker{
			symbol: cfg.Symbol,
			tick:   cfg.TickSize,
			price:  *start,
			rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		}
		log.Printf("[barserver] random walk %s from %.2f every %v", cfg.Symbol, *start, *interval)
		go runGenerator(ctx, w, *interval, barCh)
	}

	h := newHub()
	go func() {
		for bar := range barCh {
			h.broadcast(bar.JSON())
			if pub != nil {
				if err := pub.PublishBar(ctx, bar); err != nil {
					log.Printf("[barserver] redis publish: %v", err)
				}
			}
		}
		log.Println("[barserver] bar source exhausted")
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barserver"}`)
	})
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 3*time.Second)
		defer c()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[barserver] listening on %s (WebSocket: ws://localhost%s/ws)", *addr, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[barserver] server error: %v", err)
	}
}

func loadBars(csvPath, dbPath, symbol string) ([]model.Bar, error) {
	if csvPath != "" {
		return replay.LoadCSVFile(csvPath, symbol)
	}
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return replay.New(reader).Load([]string{symbol}, 0)
}
