// Package portfolio tracks realized and unrealized P&L from fills.
package portfolio

import (
	"sync"
	"time"
)

// Trade is one fill for P&L calculation. Prices are in instrument points.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"` // BUY, SELL or SELL_SHORT
	Qty       int64     `json:"qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// RoundTrip is a long position from first buy to flat.
type RoundTrip struct {
	Symbol   string    `json:"symbol"`
	Qty      int64     `json:"qty"`
	Entry    float64   `json:"entry"`
	Exit     float64   `json:"exit"` // quantity-weighted average exit price
	PnL      float64   `json:"pnl"`  // points × qty × point value
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at"`
}

// PnLTracker tracks realized and unrealized P&L for long-only trading.
type PnLTracker struct {
	mu         sync.RWMutex
	pointValue float64
	trades     []Trade
	rounds     []RoundTrip

	realizedPnL float64

	// Per-symbol cost basis and the round trip being built.
	costBasis map[string]costEntry
}

type costEntry struct {
	Qty      int64
	AvgPrice float64

	openedAt  time.Time
	maxQty    int64
	exitValue float64
	exitQty   int64
	pnl       float64
}

// NewPnLTracker creates a tracker. pointValue converts points to currency
// (5 for MES, 2 for MNQ); use 1 to report in points.
func NewPnLTracker(pointValue float64) *PnLTracker {
	if pointValue <= 0 {
		pointValue = 1
	}
	return &PnLTracker{
		pointValue: pointValue,
		trades:     make([]Trade, 0, 500),
		costBasis:  make(map[string]costEntry),
	}
}

// RecordTrade records a trade and returns the P&L it realized.
func (p *PnLTracker) RecordTrade(trade Trade) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades = append(p.trades, trade)
	entry := p.costBasis[trade.Symbol]

	var realized float64

	if trade.Action == "BUY" {
		if entry.Qty == 0 {
			entry = costEntry{Qty: trade.Qty, AvgPrice: trade.Price, openedAt: trade.Timestamp}
		} else {
			// Weighted average price
			totalCost := entry.AvgPrice*float64(entry.Qty) + trade.Price*float64(trade.Qty)
			entry.Qty += trade.Qty
			entry.AvgPrice = totalCost / float64(entry.Qty)
		}
		if entry.Qty > entry.maxQty {
			entry.maxQty = entry.Qty
		}
	} else {
		// Reduce position
		sellQty := trade.Qty
		if sellQty > entry.Qty {
			sellQty = entry.Qty
		}
		realized = (trade.Price - entry.AvgPrice) * float64(sellQty) * p.pointValue
		entry.Qty -= sellQty
		entry.exitValue += trade.Price * float64(sellQty)
		entry.exitQty += sellQty
		entry.pnl += realized
		p.realizedPnL += realized

		if entry.Qty <= 0 && entry.exitQty > 0 {
			p.rounds = append(p.rounds, RoundTrip{
				Symbol:   trade.Symbol,
				Qty:      entry.maxQty,
				Entry:    entry.AvgPrice,
				Exit:     entry.exitValue / float64(entry.exitQty),
				PnL:      entry.pnl,
				OpenedAt: entry.openedAt,
				ClosedAt: trade.Timestamp,
			})
			entry = costEntry{}
		}
	}

	p.costBasis[trade.Symbol] = entry
	return realized
}

// GetRealizedPnL returns total realized P&L.
func (p *PnLTracker) GetRealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// GetUnrealizedPnL calculates unrealized P&L from current prices by symbol.
func (p *PnLTracker) GetUnrealizedPnL(currentPrices map[string]float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, _ := p.unrealized(currentPrices)
	return u
}

func (p *PnLTracker) unrealized(currentPrices map[string]float64) (float64, int) {
	var total float64
	open := 0
	for sym, entry := range p.costBasis {
		if entry.Qty <= 0 {
			continue
		}
		open++
		if price, ok := currentPrices[sym]; ok {
			total += (price - entry.AvgPrice) * float64(entry.Qty) * p.pointValue
		}
	}
	return total, open
}

// GetTrades returns a snapshot of all trades.
func (p *PnLTracker) GetTrades() []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Trade, len(p.trades))
	copy(cp, p.trades)
	return cp
}

// GetRoundTrips returns a snapshot of completed round trips.
func (p *PnLTracker) GetRoundTrips() []RoundTrip {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]RoundTrip, len(p.rounds))
	copy(cp, p.rounds)
	return cp
}

// PnLSummary is an aggregate view of the tracker.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalTrades   int     `json:"total_trades"`
	RoundTrips    int     `json:"round_trips"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"` // 0..1, 0 with no round trips
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	MaxDrawdown   float64 `json:"max_drawdown"` // on closed round trips
	OpenPositions int     `json:"open_positions"`
}

// GetSummary returns the current P&L summary.
func (p *PnLTracker) GetSummary(currentPrices map[string]float64) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	unrealized, open := p.unrealized(currentPrices)
	s := PnLSummary{
		RealizedPnL:   p.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realizedPnL + unrealized,
		TotalTrades:   len(p.trades),
		RoundTrips:    len(p.rounds),
		OpenPositions: open,
	}

	var winSum, lossSum, equity, peak float64
	for _, r := range p.rounds {
		if r.PnL > 0 {
			s.Wins++
			winSum += r.PnL
		} else {
			s.Losses++
			lossSum += r.PnL
		}
		equity += r.PnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	if s.RoundTrips > 0 {
		s.WinRate = float64(s.Wins) / float64(s.RoundTrips)
	}
	if s.Wins > 0 {
		s.AvgWin = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = lossSum / float64(s.Losses)
	}
	return s
}
