// Package core defines the primitive, strongly-typed values shared by every
// other package in the simulator: integer price ticks, share quantities,
// nanosecond timestamps, order and symbol identifiers, and the depth-N quote
// and market-state snapshots the engine replays.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ticks is an integer price/money value at a fixed sub-unit scale (see
// TickScale). Keeping money as an integer newtype instead of a float or a
// bare int64 prevents accidental mixing of ticks with raw quantities or
// with a different scale.
type Ticks int64

// TickScale is the number of Ticks per display unit ($1.00).
const TickScale = 1_000_000

// Mul returns the Ticks notional of qty shares at this per-share price.
func (t Ticks) Mul(qty Quantity) Ticks {
	return Ticks(int64(t) * int64(qty))
}

// Div divides a Ticks notional by a Quantity, truncating like integer
// division (used for per-share averages).
func (t Ticks) Div(qty Quantity) Ticks {
	if qty == 0 {
		return 0
	}
	return Ticks(int64(t) / int64(qty))
}

// Add returns t+o.
func (t Ticks) Add(o Ticks) Ticks { return t + o }

// Sub returns t-o.
func (t Ticks) Sub(o Ticks) Ticks { return t - o }

// Dollars renders the tick value as a signed "$X.YY" string.
func (t Ticks) Dollars() string {
	neg := t < 0
	v := int64(t)
	if neg {
		v = -v
	}
	whole := v / TickScale
	frac := (v % TickScale) * 100 / TickScale
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s$%d.%02d", sign, whole, frac)
}

// Decimal converts t to a shopspring/decimal.Decimal at display precision.
// Reserved for presentation surfaces (reports, CLI output, config echoing);
// every core computation stays on integer Ticks arithmetic.
func (t Ticks) Decimal() decimal.Decimal {
	return decimal.New(int64(t), 0).Div(decimal.New(TickScale, 0))
}

// Quantity is a signed share count. Short positions are represented via a
// dedicated short_qty field rather than a negative Quantity (see Portfolio).
type Quantity int64

// TimeStamp is an unsigned count of nanoseconds since the UNIX epoch.
type TimeStamp uint64

// Add returns ts+d nanoseconds.
func (ts TimeStamp) Add(d uint64) TimeStamp { return ts + TimeStamp(d) }

// Before reports whether ts is strictly earlier than o.
func (ts TimeStamp) Before(o TimeStamp) bool { return ts < o }

// OrderId uniquely identifies a user order. Values are assigned
// monotonically increasing from 1 by the Engine; 0 is reserved for
// engine-internal margin-call fills.
type OrderId uint64

// SymbolIdx addresses a symbol by its compact index (0..S-1), never by
// string ticker, inside the hot path.
type SymbolIdx uint16

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// OrderType distinguishes market from limit orders.
type OrderType uint8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Limit {
		return "LIMIT"
	}
	return "MARKET"
}

// TIF is the time-in-force of an order. The fill model currently treats all
// TIFs identically; TIF is carried through for future expiry logic.
type TIF uint8

const (
	Day TIF = iota
	IOC
	FOK
	GTC
)

func (t TIF) String() string {
	switch t {
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case GTC:
		return "GTC"
	default:
		return "DAY"
	}
}

// Level is one price/size pair at a given depth index.
type Level struct {
	BidPx Ticks
	AskPx Ticks
	BidSz Quantity
	AskSz Quantity
}

// Quote is one level-2 snapshot for a single symbol: a timestamp and Depth
// levels. A valid quote satisfies BidPx[0] < AskPx[0], BidPx[0] > 0, and
// prices are monotone by level (bids non-increasing, asks non-decreasing).
// Crossed or zero-priced quotes are filtered upstream by the market-data
// source and never reach the engine.
type Quote struct {
	Timestamp TimeStamp
	Levels    []Level
}

// Depth returns the number of levels carried by this quote.
func (q Quote) Depth() int { return len(q.Levels) }

// Valid reports whether the quote satisfies the book invariants in spec.md §3.
func (q Quote) Valid() bool {
	if len(q.Levels) == 0 {
		return false
	}
	if q.Levels[0].BidPx <= 0 || q.Levels[0].BidPx >= q.Levels[0].AskPx {
		return false
	}
	for i := 1; i < len(q.Levels); i++ {
		if q.Levels[i].BidPx > q.Levels[i-1].BidPx {
			return false
		}
		if q.Levels[i].AskPx < q.Levels[i-1].AskPx {
			return false
		}
	}
	return true
}

// BestBid returns the bid price at the given level, or 0 if out of range.
func (q Quote) BestBid(level int) Ticks {
	if level < 0 || level >= len(q.Levels) {
		return 0
	}
	return q.Levels[level].BidPx
}

// BestAsk returns the ask price at the given level, or 0 if out of range.
func (q Quote) BestAsk(level int) Ticks {
	if level < 0 || level >= len(q.Levels) {
		return 0
	}
	return q.Levels[level].AskPx
}

// BidSize returns the resting bid size at the given level, or 0 if out of range.
func (q Quote) BidSize(level int) Quantity {
	if level < 0 || level >= len(q.Levels) {
		return 0
	}
	return q.Levels[level].BidSz
}

// AskSize returns the resting ask size at the given level, or 0 if out of range.
func (q Quote) AskSize(level int) Quantity {
	if level < 0 || level >= len(q.Levels) {
		return 0
	}
	return q.Levels[level].AskSz
}

// MarketState is one simulation step: a common timestamp plus one Quote per
// symbol index (0..S-1). Symbols are addressed by position, never by string.
type MarketState struct {
	Timestamp TimeStamp
	Quotes    []Quote
}

// Quote returns the quote for the given symbol, or the zero Quote if the
// index is out of range.
func (m MarketState) Quote(sym SymbolIdx) Quote {
	if int(sym) >= len(m.Quotes) {
		return core_zeroQuote
	}
	return m.Quotes[sym]
}

var core_zeroQuote Quote

// NewOrder is a user-submitted order intent. Id is assigned by the Engine at
// enqueue time; LimitPrice is 0 for Market orders.
type NewOrder struct {
	Id         OrderId
	SymbolIdx  SymbolIdx
	Side       Side
	Type       OrderType
	Quantity   Quantity
	TIF        TIF
	LimitPrice Ticks
}

// Fill is a single execution against the recorded book.
type Fill struct {
	OrderId           OrderId
	SymbolIdx         SymbolIdx
	Side              Side
	Type              OrderType
	TIF               TIF
	Quantity          Quantity
	Price             Ticks
	OriginalLimitPrice Ticks
	Timestamp         TimeStamp
}
