package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicksArithmetic(t *testing.T) {
	px := Ticks(150 * TickScale) // $150.00
	notional := px.Mul(Quantity(10))
	assert.Equal(t, Ticks(1500*TickScale), notional)
	assert.Equal(t, px, notional.Div(10))
	assert.Equal(t, "$150.00", px.Dollars())

	neg := Ticks(-50 * TickScale)
	assert.Equal(t, "-$50.00", neg.Dollars())
}

func TestTicksDecimal(t *testing.T) {
	px := Ticks(1234560) // $1.23456 -> rounded by StringFixed(2) to 1.23
	assert.Equal(t, "1.23", px.Decimal().StringFixed(2))
}

func TestQuoteValid(t *testing.T) {
	valid := Quote{Levels: []Level{
		{BidPx: 100 * TickScale, AskPx: 101 * TickScale, BidSz: 10, AskSz: 10},
		{BidPx: 99 * TickScale, AskPx: 102 * TickScale, BidSz: 5, AskSz: 5},
	}}
	assert.True(t, valid.Valid())

	crossed := Quote{Levels: []Level{{BidPx: 101 * TickScale, AskPx: 100 * TickScale}}}
	assert.False(t, crossed.Valid())

	zeroBid := Quote{Levels: []Level{{BidPx: 0, AskPx: TickScale}}}
	assert.False(t, zeroBid.Valid())

	nonMonotoneBid := Quote{Levels: []Level{
		{BidPx: 100 * TickScale, AskPx: 101 * TickScale},
		{BidPx: 101 * TickScale, AskPx: 102 * TickScale}, // bid increased at deeper level
	}}
	assert.False(t, nonMonotoneBid.Valid())

	empty := Quote{}
	assert.False(t, empty.Valid())
}

func TestQuoteAccessorsOutOfRange(t *testing.T) {
	q := Quote{Levels: []Level{{BidPx: 100, AskPx: 101, BidSz: 1, AskSz: 1}}}
	assert.Equal(t, Ticks(0), q.BestBid(5))
	assert.Equal(t, Ticks(0), q.BestAsk(-1))
	assert.Equal(t, Quantity(0), q.BidSize(5))
	assert.Equal(t, Quantity(0), q.AskSize(5))
}

func TestMarketStateQuoteOutOfRange(t *testing.T) {
	ms := MarketState{Quotes: []Quote{{Levels: []Level{{BidPx: 1, AskPx: 2}}}}}
	assert.Equal(t, 1, ms.Quote(0).Depth())
	assert.Equal(t, Quote{}, ms.Quote(5))
}

func TestSideAndOrderTypeStrings(t *testing.T) {
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "MARKET", Market.String())
	assert.Equal(t, "LIMIT", Limit.String())
	assert.Equal(t, "GTC", GTC.String())
	assert.Equal(t, "DAY", Day.String())
}
