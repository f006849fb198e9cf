// Package gateway streams engine state and trade events to WebSocket clients.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channel names carried in every envelope.
const (
	ChannelState  = "state"
	ChannelEvents = "events"
)

const replayDepth = 500

// Hub fans engine messages out to connected WebSocket clients. Each channel
// has its own monotonic sequence and replay buffer so clients can detect and
// backfill gaps after a reconnect.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string][]byte // last envelope per channel
	seqs    map[string]int64
	replay  map[string]*ReplayBuffer

	// OnSlowClient is called when an envelope is dropped for a full client queue.
	OnSlowClient func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]bool),
		latest:  make(map[string][]byte),
		seqs:    make(map[string]int64),
		replay:  make(map[string]*ReplayBuffer),
	}
}

// Broadcast marshals v into an envelope on channel and sends it to every client.
// Never blocks: slow clients lose messages and backfill on reconnect.
func (h *Hub) Broadcast(channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.BroadcastRaw(channel, data)
	return nil
}

// BroadcastRaw sends pre-encoded JSON data on channel.
func (h *Hub) BroadcastRaw(channel string, data []byte) {
	now := time.Now().UTC()

	// Sequencing, replay and fan-out share one critical section so a client
	// registering concurrently sees each envelope exactly once.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqs[channel]++
	seq := h.seqs[channel]
	buf := envelope(channel, data, now, seq)
	h.latest[channel] = buf
	rb, ok := h.replay[channel]
	if !ok {
		rb = NewReplayBuffer(replayDepth)
		h.replay[channel] = rb
	}
	rb.Push(seq, buf)

	for c := range h.clients {
		select {
		case c.send <- buf:
		default:
			if h.OnSlowClient != nil {
				h.OnSlowClient()
			}
		}
	}
}

// envelope builds {"channel":...,"data":...,"ts":...,"seq":N} without a
// second marshal of data.
func envelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket. With ?state_seq=N and/or
// ?events_seq=N the client first receives everything after N still held in
// the replay buffers; otherwise it receives the latest envelope per channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h}

	h.mu.Lock()
	for _, ch := range []string{ChannelState, ChannelEvents} {
		for _, buf := range h.initial(ch, r.URL.Query().Get(ch+"_seq")) {
			select {
			case c.send <- buf:
			default:
			}
		}
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go c.writePump()
	go c.readPump()
}

// initial returns what a new client should see on channel. Caller holds h.mu.
func (h *Hub) initial(channel, afterSeq string) [][]byte {
	if afterSeq != "" {
		if n, err := strconv.ParseInt(afterSeq, 10, 64); err == nil {
			rb, ok := h.replay[channel]
			if !ok {
				return nil
			}
			entries := rb.After(n)
			out := make([][]byte, len(entries))
			for i, e := range entries {
				out[i] = e.Data
			}
			return out
		}
	}
	if buf, ok := h.latest[channel]; ok {
		return [][]byte{buf}
	}
	return nil
}

// removeClient unregisters c and closes its queue.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
