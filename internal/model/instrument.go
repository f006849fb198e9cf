package model

import "strings"

// Instrument describes the tradeable contract.
type Instrument struct {
	Symbol   string  `json:"symbol"`    // e.g. "MES 12-26"
	TickSize float64 `json:"tick_size"` // minimum price movement in points
}

// MatchesAny reports whether the symbol contains any of the given fragments.
// Matching is a plain substring test, so "MES 12-26" matches "MES".
func (i Instrument) MatchesAny(fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(i.Symbol, f) {
			return true
		}
	}
	return false
}
