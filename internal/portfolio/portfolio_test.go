package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KlmnCapital/simulation-engine/internal/core"
)

const day = uint64(86400) * 1_000_000_000

func TestApplyBuyUsesSettledFundsThenMargin(t *testing.T) {
	p := New(1, 1000*core.TickScale, day, 5.0)
	p.SettledFunds = 500 * core.TickScale

	p.ApplyFill(core.Fill{SymbolIdx: 0, Side: core.Buy, Quantity: 10, Price: 80 * core.TickScale})

	// Notional = 800; 500 from settled funds, 300 borrowed.
	assert.Equal(t, core.Ticks(0), p.SettledFunds)
	assert.Equal(t, core.Ticks(300*core.TickScale), p.Loan)
	assert.Equal(t, core.Ticks(200*core.TickScale), p.Cash) // 1000 - 800
	assert.Equal(t, core.Quantity(10), p.LongQty[0])
	assert.Equal(t, core.Ticks(80*core.TickScale), p.CostBasis[0])
}

func TestApplyBuyCoversShortBeforeOpeningLong(t *testing.T) {
	p := New(1, 1000*core.TickScale, day, 0)
	p.ShortQty[0] = 5
	p.CostBasis[0] = 90 * core.TickScale

	p.ApplyFill(core.Fill{SymbolIdx: 0, Side: core.Buy, Quantity: 8, Price: 85 * core.TickScale})

	assert.Equal(t, core.Quantity(0), p.ShortQty[0])
	assert.Equal(t, core.Quantity(3), p.LongQty[0])
	assert.Equal(t, core.Ticks(85*core.TickScale), p.CostBasis[0])
}

func TestApplySellRepaysLoanThenQueuesUnsettled(t *testing.T) {
	p := New(1, 0, day, 0)
	p.Loan = 200 * core.TickScale
	p.LongQty[0] = 10
	p.CostBasis[0] = 50 * core.TickScale

	fillTs := core.TimeStamp(1000)
	p.ApplyFill(core.Fill{SymbolIdx: 0, Side: core.Sell, Quantity: 10, Price: 60 * core.TickScale, Timestamp: fillTs})

	// Notional = 600; 200 repays the loan, 400 becomes pending settlement.
	assert.Equal(t, core.Ticks(0), p.Loan)
	assert.Equal(t, core.Ticks(600*core.TickScale), p.Cash)
	assert.Len(t, p.PendingFunds, 1)
	assert.Equal(t, core.Ticks(400*core.TickScale), p.PendingFunds[0].Amount)
	assert.Equal(t, fillTs.Add(day), p.PendingFunds[0].EarliestSettlementTs)
	assert.Equal(t, core.Quantity(0), p.LongQty[0])
}

func TestApplySellOpensShortWhenNoLong(t *testing.T) {
	p := New(1, 1000*core.TickScale, day, 0)

	p.ApplyFill(core.Fill{SymbolIdx: 0, Side: core.Sell, Quantity: 5, Price: 70 * core.TickScale})

	assert.Equal(t, core.Quantity(5), p.ShortQty[0])
	assert.Equal(t, core.Ticks(70*core.TickScale), p.CostBasis[0])
}

func TestIsSettlementTickGatesOncePerDay(t *testing.T) {
	p := New(1, 0, day, 0)

	morning := core.TimeStamp(9 * 3600 * 1_000_000_000) // 09:00 UTC day 0
	assert.True(t, p.IsSettlementTick(morning))

	p.Settle(morning)
	assert.False(t, p.IsSettlementTick(morning.Add(3600*1_000_000_000))) // same day, later

	nextDay := morning.Add(day)
	assert.True(t, p.IsSettlementTick(nextDay))
}

func TestSettleAccruesInterestAndMaturesFunds(t *testing.T) {
	p := New(1, 0, day, 36.5) // chosen so daily rate is a clean 0.1%
	p.Loan = 1000 * core.TickScale
	p.PendingFunds = []UnsettledFunds{
		{Amount: 50 * core.TickScale, EarliestSettlementTs: 100},
		{Amount: 30 * core.TickScale, EarliestSettlementTs: 10 * 3600 * 1_000_000_000}, // 10:00 UTC, after now
	}

	now := core.TimeStamp(9 * 3600 * 1_000_000_000)
	p.Settle(now)

	assert.Equal(t, core.Ticks(50*core.TickScale), p.SettledFunds)
	assert.Len(t, p.PendingFunds, 1)
	assert.Equal(t, core.Ticks(1*core.TickScale), p.InterestOwed) // 1000 * 0.001
}

func TestPayInterestClampsToAvailable(t *testing.T) {
	p := New(1, 0, day, 0)
	p.SettledFunds = 10 * core.TickScale
	p.InterestOwed = 50 * core.TickScale

	paid := p.PayInterest(1000 * core.TickScale)
	assert.Equal(t, core.Ticks(10*core.TickScale), paid)
	assert.Equal(t, core.Ticks(0), p.SettledFunds)
	assert.Equal(t, core.Ticks(40*core.TickScale), p.InterestOwed)
}

func TestViolatesMarginAtMaintenanceBoundary(t *testing.T) {
	p := New(1, 0, day, 0)
	p.LongQty[0] = 100
	p.CostBasis[0] = 10 * core.TickScale

	bestBid := []core.Ticks{10 * core.TickScale}
	bestAsk := []core.Ticks{10 * core.TickScale}

	// Gross MV = 1000, maintenance = 300. NetLiq = cash(0) + netMV(1000) = 1000 > 300.
	assert.False(t, p.ViolatesMargin(bestBid, bestAsk))

	p.Cash = -900 * core.TickScale // netLiq now 100, still above the 300 requirement? No: 100 < 300.
	assert.True(t, p.ViolatesMargin(bestBid, bestAsk))
}

func TestPreTradeCheckRejectsOverLeveragedOrder(t *testing.T) {
	p := New(1, 100*core.TickScale, day, 0)
	quote := core.Quote{Levels: []core.Level{{BidPx: 10 * core.TickScale, AskPx: 10 * core.TickScale, BidSz: 1000, AskSz: 1000}}}
	bestBid := []core.Ticks{10 * core.TickScale}
	bestAsk := []core.Ticks{10 * core.TickScale}

	order := core.NewOrder{SymbolIdx: 0, Side: core.Buy, Type: core.Limit, Quantity: 5, LimitPrice: 10 * core.TickScale}
	err := p.PreTradeCheck(order, quote, bestBid, bestAsk, 2.0)
	assert.NoError(t, err) // 50 notional opened <= 100*2

	big := core.NewOrder{SymbolIdx: 0, Side: core.Buy, Type: core.Limit, Quantity: 100, LimitPrice: 10 * core.TickScale}
	err = p.PreTradeCheck(big, quote, bestBid, bestAsk, 2.0)
	assert.Error(t, err)
}

func TestPreTradeCheckRejectsNonPositiveNetLiquidation(t *testing.T) {
	p := New(1, 0, day, 0)
	p.Cash = -10 * core.TickScale
	quote := core.Quote{Levels: []core.Level{{BidPx: 1, AskPx: 1, BidSz: 10, AskSz: 10}}}

	order := core.NewOrder{SymbolIdx: 0, Side: core.Buy, Type: core.Market, Quantity: 1}
	err := p.PreTradeCheck(order, quote, []core.Ticks{1}, []core.Ticks{1}, 2.0)
	assert.Error(t, err)
}
