// Package fillmodel decides, per pending order and current book snapshot,
// how many shares execute and at what volume-weighted price, per spec.md §4.D.
package fillmodel

import (
	"math"
	"math/rand"

	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/filldist"
)

// MatchResult is the outcome of matching one order against one quote.
type MatchResult struct {
	Fill       *core.Fill    // nil if nothing traded this tick
	Remaining  core.Quantity // unfilled quantity left in the order
	IsComplete bool          // true once Remaining == 0
}

type levelTake struct {
	price core.Ticks
	qty   core.Quantity
}

// Match attempts to execute order against quote at timestamp now, sampling
// the fill rate from the side-appropriate distribution using rng (which may
// be nil, e.g. when RunParams.UseRandomness is false).
func Match(order core.NewOrder, quote core.Quote, now core.TimeStamp, rng *rand.Rand, buyDist, sellDist filldist.Distribution) MatchResult {
	desired := order.Quantity
	levels, available := walkLevels(order, quote, desired)

	if available <= 0 {
		return MatchResult{Remaining: desired, IsComplete: false}
	}

	var dist filldist.Distribution
	if order.Side == core.Buy {
		dist = buyDist
	} else {
		dist = sellDist
	}
	rate := 100.0
	if dist != nil {
		rate = dist.Sample(rng)
	}

	fillable := core.Quantity(math.Floor(float64(available) * rate / 100.0))
	if fillable <= 0 {
		return MatchResult{Remaining: desired, IsComplete: false}
	}
	if fillable > available {
		fillable = available
	}

	notional := core.Ticks(0)
	remaining := fillable
	for _, lv := range levels {
		if remaining <= 0 {
			break
		}
		take := lv.qty
		if take > remaining {
			take = remaining
		}
		notional = notional.Add(lv.price.Mul(take))
		remaining -= take
	}
	avgPrice := notional.Div(fillable)

	fill := &core.Fill{
		OrderId:            order.Id,
		SymbolIdx:          order.SymbolIdx,
		Side:               order.Side,
		Type:               order.Type,
		TIF:                order.TIF,
		Quantity:           fillable,
		Price:              avgPrice,
		OriginalLimitPrice: order.LimitPrice,
		Timestamp:          now,
	}

	residual := desired - fillable
	return MatchResult{Fill: fill, Remaining: residual, IsComplete: residual == 0}
}

// walkLevels walks the relevant side of the book (asks for Buy, bids for
// Sell), accumulating up to `desired` shares. For Limit orders the walk
// stops at the first level that breaches the limit price; for Market orders
// it walks unconditionally until `desired` is satisfied or depth is
// exhausted. It returns the per-level quantities consumed (in book order)
// and their sum.
func walkLevels(order core.NewOrder, quote core.Quote, desired core.Quantity) ([]levelTake, core.Quantity) {
	var levels []levelTake
	var available core.Quantity

	depth := quote.Depth()
	for l := 0; l < depth && available < desired; l++ {
		var price core.Ticks
		var size core.Quantity

		if order.Side == core.Buy {
			price = quote.BestAsk(l)
			size = quote.AskSize(l)
			if order.Type == core.Limit && price > order.LimitPrice {
				break
			}
		} else {
			price = quote.BestBid(l)
			size = quote.BidSize(l)
			if order.Type == core.Limit && price < order.LimitPrice {
				break
			}
		}

		if size <= 0 {
			continue
		}

		take := size
		if remaining := desired - available; take > remaining {
			take = remaining
		}
		if take <= 0 {
			break
		}

		levels = append(levels, levelTake{price: price, qty: take})
		available += take
	}

	return levels, available
}
