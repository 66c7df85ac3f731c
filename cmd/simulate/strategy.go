package main

import (
	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/engine"
)

// gridStrategy is a minimal reference implementation of engine.Strategy: it
// keeps one resting buy and one resting sell order per symbol spaced around
// the current mid price, replacing them whenever the mid moves far enough,
// in the spirit of the teacher's trailing grid strategy adapted to the
// Handle capability instead of a target-state diff.
type gridStrategy struct {
	interval core.Ticks
	orderQty core.Quantity

	buyOrder  []core.OrderId
	sellOrder []core.OrderId
	buyAnchor []core.Ticks
	sellAnchor []core.Ticks
}

func defaultStrategy() engine.Strategy {
	return &gridStrategy{
		interval: core.Ticks(1 * core.TickScale),
		orderQty: 10,
	}
}

func (g *gridStrategy) ensureSized(n int) {
	for len(g.buyOrder) < n {
		g.buyOrder = append(g.buyOrder, 0)
		g.sellOrder = append(g.sellOrder, 0)
		g.buyAnchor = append(g.buyAnchor, 0)
		g.sellAnchor = append(g.sellAnchor, 0)
	}
}

func (g *gridStrategy) OnMarketData(h *engine.Handle, state core.MarketState) {
	g.ensureSized(len(state.Quotes))

	for i, q := range state.Quotes {
		sym := core.SymbolIdx(i)
		if q.Depth() == 0 {
			continue
		}
		mid := q.BestBid(0).Add(q.BestAsk(0)) / 2

		if g.buyOrder[i] == 0 || absTicks(mid-g.buyAnchor[i]) > g.interval {
			if g.buyOrder[i] != 0 {
				h.Cancel(g.buyOrder[i])
			}
			buyPx := mid - g.interval
			g.buyOrder[i] = h.PlaceOrder(sym, core.Buy, core.Limit, g.orderQty, core.GTC, buyPx)
			g.buyAnchor[i] = mid
		}

		if g.sellOrder[i] == 0 || absTicks(mid-g.sellAnchor[i]) > g.interval {
			if g.sellOrder[i] != 0 {
				h.Cancel(g.sellOrder[i])
			}
			sellPx := mid + g.interval
			g.sellOrder[i] = h.PlaceOrder(sym, core.Sell, core.Limit, g.orderQty, core.GTC, sellPx)
			g.sellAnchor[i] = mid
		}
	}
}

func (g *gridStrategy) OnFill(h *engine.Handle, fill core.Fill) {
	sym := int(fill.SymbolIdx)
	if sym >= len(g.buyOrder) {
		return
	}
	if fill.Side == core.Buy && fill.OrderId == g.buyOrder[sym] {
		g.buyOrder[sym] = 0
	}
	if fill.Side == core.Sell && fill.OrderId == g.sellOrder[sym] {
		g.sellOrder[sym] = 0
	}
}

func (g *gridStrategy) OnEnd(h *engine.Handle) {
	for _, id := range g.buyOrder {
		if id != 0 {
			h.Cancel(id)
		}
	}
	for _, id := range g.sellOrder {
		if id != 0 {
			h.Cancel(id)
		}
	}
}

func absTicks(t core.Ticks) core.Ticks {
	if t < 0 {
		return -t
	}
	return t
}
