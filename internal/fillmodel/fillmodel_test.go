package fillmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/filldist"
)

func twoLevelQuote() core.Quote {
	return core.Quote{Levels: []core.Level{
		{BidPx: 99 * core.TickScale, AskPx: 100 * core.TickScale, BidSz: 5, AskSz: 5},
		{BidPx: 98 * core.TickScale, AskPx: 101 * core.TickScale, BidSz: 10, AskSz: 10},
	}}
}

func TestMatchMarketBuyWalksMultipleLevels(t *testing.T) {
	order := core.NewOrder{Id: 1, Side: core.Buy, Type: core.Market, Quantity: 8}
	result := Match(order, twoLevelQuote(), 0, nil, filldist.Constant{Rate: 100}, filldist.Constant{Rate: 100})

	assert.NotNil(t, result.Fill)
	assert.Equal(t, core.Quantity(8), result.Fill.Quantity)
	assert.True(t, result.IsComplete)
	// 5 @ $100 + 3 @ $101 = $500 + $303 = $803 notional, avg = 803e6/8 = 100375000 ticks.
	assert.Equal(t, core.Ticks(100375000), result.Fill.Price)
}

func TestMatchLimitBuyStopsAtBreach(t *testing.T) {
	// Limit price below the second level's ask: only level 0 is fillable.
	order := core.NewOrder{Id: 1, Side: core.Buy, Type: core.Limit, Quantity: 8, LimitPrice: 100 * core.TickScale}
	result := Match(order, twoLevelQuote(), 0, nil, filldist.Constant{Rate: 100}, filldist.Constant{Rate: 100})

	assert.NotNil(t, result.Fill)
	assert.Equal(t, core.Quantity(5), result.Fill.Quantity)
	assert.False(t, result.IsComplete)
	assert.Equal(t, core.Quantity(3), result.Remaining)
	assert.Equal(t, core.Ticks(100*core.TickScale), result.Fill.Price)
}

func TestMatchPartialFillRateLeavesResidual(t *testing.T) {
	order := core.NewOrder{Id: 1, Side: core.Sell, Type: core.Market, Quantity: 10}
	result := Match(order, twoLevelQuote(), 0, nil, filldist.Constant{Rate: 50}, filldist.Constant{Rate: 50})

	assert.NotNil(t, result.Fill)
	assert.Equal(t, core.Quantity(5), result.Fill.Quantity) // 50% of 10 available at bid
	assert.Equal(t, core.Quantity(5), result.Remaining)
	assert.False(t, result.IsComplete)
}

func TestMatchNoLiquidityReturnsNilFill(t *testing.T) {
	order := core.NewOrder{Id: 1, Side: core.Buy, Type: core.Limit, Quantity: 5, LimitPrice: 50 * core.TickScale}
	result := Match(order, twoLevelQuote(), 0, nil, filldist.Constant{Rate: 100}, filldist.Constant{Rate: 100})

	assert.Nil(t, result.Fill)
	assert.Equal(t, core.Quantity(5), result.Remaining)
	assert.False(t, result.IsComplete)
}

func TestMatchZeroFillRateReturnsNilFill(t *testing.T) {
	order := core.NewOrder{Id: 1, Side: core.Buy, Type: core.Market, Quantity: 5}
	result := Match(order, twoLevelQuote(), 0, nil, filldist.Constant{Rate: 0}, filldist.Constant{Rate: 0})

	assert.Nil(t, result.Fill)
	assert.Equal(t, core.Quantity(5), result.Remaining)
}
