package marketdata

import (
	"fmt"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
	"github.com/KlmnCapital/simulation-engine/internal/core"
)

// MultiSource concatenates several Sources (e.g. one file per trading day)
// into a single stream, checking that timestamps remain non-decreasing
// across file boundaries, per spec.md §4.B.
type MultiSource struct {
	sources   []Source
	cur       int
	lastTs    core.TimeStamp
	sawAny    bool
}

// NewMultiSource returns a Source that reads each of sources in order.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, cur: 0}
}

// Next implements Source.
func (m *MultiSource) Next() (core.MarketState, bool, error) {
	for m.cur < len(m.sources) {
		st, ok, err := m.sources[m.cur].Next()
		if err != nil {
			return core.MarketState{}, false, err
		}
		if !ok {
			m.cur++
			continue
		}
		if m.sawAny && st.Timestamp < m.lastTs {
			return core.MarketState{}, false, fmt.Errorf("%w: non-monotonic timestamp %d after %d at source boundary", apperrors.ErrDataError, st.Timestamp, m.lastTs)
		}
		m.lastTs = st.Timestamp
		m.sawAny = true
		return st, true, nil
	}
	return core.MarketState{}, false, nil
}

func (m *MultiSource) activeSource() Source {
	idx := m.cur
	if idx >= len(m.sources) {
		idx = len(m.sources) - 1
	}
	if idx < 0 {
		return nil
	}
	return m.sources[idx]
}

// CurrentTimestamp implements Source.
func (m *MultiSource) CurrentTimestamp() core.TimeStamp {
	if s := m.activeSource(); s != nil {
		return s.CurrentTimestamp()
	}
	return 0
}

// BestBid implements Source.
func (m *MultiSource) BestBid(sym core.SymbolIdx, level int) core.Ticks {
	if s := m.activeSource(); s != nil {
		return s.BestBid(sym, level)
	}
	return 0
}

// BestAsk implements Source.
func (m *MultiSource) BestAsk(sym core.SymbolIdx, level int) core.Ticks {
	if s := m.activeSource(); s != nil {
		return s.BestAsk(sym, level)
	}
	return 0
}

// BidSize implements Source.
func (m *MultiSource) BidSize(sym core.SymbolIdx, level int) core.Quantity {
	if s := m.activeSource(); s != nil {
		return s.BidSize(sym, level)
	}
	return 0
}

// AskSize implements Source.
func (m *MultiSource) AskSize(sym core.SymbolIdx, level int) core.Quantity {
	if s := m.activeSource(); s != nil {
		return s.AskSize(sym, level)
	}
	return 0
}
