package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

// EngineSnapshot is the observable state of one engine.
type EngineSnapshot struct {
	Symbol    string               `json:"symbol"`
	State     strategy.EngineState `json:"state"`
	Position  model.Position       `json:"position"`
	Bars      int64                `json:"bars"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// StateHolder keeps the latest engine snapshots for the /state endpoint.
// Engines publish from their own goroutine; readers get copies.
type StateHolder struct {
	mu    sync.RWMutex
	snaps map[string]EngineSnapshot
}

// NewStateHolder creates an empty holder.
func NewStateHolder() *StateHolder {
	return &StateHolder{snaps: make(map[string]EngineSnapshot)}
}

// Publish replaces the snapshot for s.Symbol.
func (h *StateHolder) Publish(s EngineSnapshot) {
	h.mu.Lock()
	h.snaps[s.Symbol] = s
	h.mu.Unlock()
}

// Get returns the snapshot for symbol.
func (h *StateHolder) Get(symbol string) (EngineSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.snaps[symbol]
	return s, ok
}

// All returns every snapshot ordered by symbol.
func (h *StateHolder) All() []EngineSnapshot {
	h.mu.RLock()
	out := make([]EngineSnapshot, 0, len(h.snaps))
	for _, s := range h.snaps {
		out = append(out, s)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ServeHTTP handles /state and /state?symbol=...
func (h *StateHolder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if sym := r.URL.Query().Get("symbol"); sym != "" {
		s, ok := h.Get(sym)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown symbol"})
			return
		}
		json.NewEncoder(w).Encode(s)
		return
	}
	json.NewEncoder(w).Encode(h.All())
}
