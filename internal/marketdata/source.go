// Package marketdata defines the market-data iterator contract the Engine
// consumes, per spec.md §4.B. Parquet/columnar ingestion itself is outside
// this module's scope; what lives here is the contract and a deterministic,
// in-memory implementation a real reader upstream would hand the engine.
package marketdata

import (
	"fmt"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
	"github.com/KlmnCapital/simulation-engine/internal/core"
)

// Source yields MarketState snapshots in non-decreasing timestamp order and
// exposes per-symbol book accessors for the most recently yielded state.
type Source interface {
	// Next advances to the next snapshot, returning (state, true, nil) on
	// success, (zero, false, nil) at end of stream, or (zero, false, err)
	// on a malformed/non-monotonic record.
	Next() (core.MarketState, bool, error)
	CurrentTimestamp() core.TimeStamp
	BestBid(sym core.SymbolIdx, level int) core.Ticks
	BestAsk(sym core.SymbolIdx, level int) core.Ticks
	BidSize(sym core.SymbolIdx, level int) core.Quantity
	AskSize(sym core.SymbolIdx, level int) core.Quantity
}

// SliceSource is a deterministic, in-memory Source backed by a pre-loaded
// slice of MarketState records. Records whose quotes fail the validity
// invariants of spec.md §3 (crossed or zero book) are filtered out at
// construction time, as spec.md §4.B requires.
type SliceSource struct {
	states []core.MarketState
	idx    int
}

// NewSliceSource validates and wraps states. It returns apperrors.ErrDataError
// if the filtered record sequence is not monotonically non-decreasing in
// timestamp.
func NewSliceSource(states []core.MarketState) (*SliceSource, error) {
	filtered := make([]core.MarketState, 0, len(states))
	for _, st := range states {
		if !allQuotesValid(st) {
			continue
		}
		if len(filtered) > 0 && st.Timestamp < filtered[len(filtered)-1].Timestamp {
			return nil, fmt.Errorf("%w: non-monotonic timestamp %d after %d", apperrors.ErrDataError, st.Timestamp, filtered[len(filtered)-1].Timestamp)
		}
		filtered = append(filtered, st)
	}
	return &SliceSource{states: filtered, idx: -1}, nil
}

func allQuotesValid(st core.MarketState) bool {
	for _, q := range st.Quotes {
		if !q.Valid() {
			return false
		}
	}
	return true
}

// Next implements Source.
func (s *SliceSource) Next() (core.MarketState, bool, error) {
	if s.idx+1 >= len(s.states) {
		return core.MarketState{}, false, nil
	}
	s.idx++
	return s.states[s.idx], true, nil
}

func (s *SliceSource) current() core.MarketState {
	if s.idx < 0 || s.idx >= len(s.states) {
		return core.MarketState{}
	}
	return s.states[s.idx]
}

// CurrentTimestamp implements Source.
func (s *SliceSource) CurrentTimestamp() core.TimeStamp { return s.current().Timestamp }

// BestBid implements Source.
func (s *SliceSource) BestBid(sym core.SymbolIdx, level int) core.Ticks {
	return s.current().Quote(sym).BestBid(level)
}

// BestAsk implements Source.
func (s *SliceSource) BestAsk(sym core.SymbolIdx, level int) core.Ticks {
	return s.current().Quote(sym).BestAsk(level)
}

// BidSize implements Source.
func (s *SliceSource) BidSize(sym core.SymbolIdx, level int) core.Quantity {
	return s.current().Quote(sym).BidSize(level)
}

// AskSize implements Source.
func (s *SliceSource) AskSize(sym core.SymbolIdx, level int) core.Quantity {
	return s.current().Quote(sym).AskSize(level)
}
