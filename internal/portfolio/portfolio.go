// Package portfolio implements the cash/margin/positions bookkeeping of
// spec.md §4.C: fill application, settlement, daily interest, and the
// equity/margin and pre-trade sufficiency checks.
package portfolio

import (
	"math"
	"time"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
	"github.com/KlmnCapital/simulation-engine/internal/core"
)

// MaintenanceRate is the 30% maintenance margin requirement on gross
// exposure, per spec.md §4.C.
const MaintenanceRate = 0.30

// UnsettledFunds is sale proceeds not yet available as settled cash.
type UnsettledFunds struct {
	Amount               core.Ticks
	EarliestSettlementTs core.TimeStamp
}

// Portfolio tracks cash, settled/unsettled funds, margin loan, interest, and
// per-symbol long/short positions with their cost basis. At most one of
// LongQty[i]/ShortQty[i] is nonzero for any symbol at any instant.
type Portfolio struct {
	Cash         core.Ticks
	SettledFunds core.Ticks
	Loan         core.Ticks
	InterestOwed core.Ticks

	LongQty   []core.Quantity
	ShortQty  []core.Quantity
	CostBasis []core.Ticks

	PendingFunds []UnsettledFunds

	SettlementDelayNs   uint64
	AnnualInterestRate  float64 // percent, e.g. 5.0 for 5%

	lastSettlementDay int64
	settledOnce       bool
}

// New returns a Portfolio for symbolCount symbols, fully capitalized with
// startingCash as both cash and settled funds.
func New(symbolCount int, startingCash core.Ticks, settlementDelayNs uint64, annualInterestRate float64) *Portfolio {
	return &Portfolio{
		Cash:               startingCash,
		SettledFunds:       startingCash,
		LongQty:            make([]core.Quantity, symbolCount),
		ShortQty:           make([]core.Quantity, symbolCount),
		CostBasis:          make([]core.Ticks, symbolCount),
		SettlementDelayNs:  settlementDelayNs,
		AnnualInterestRate: annualInterestRate,
		lastSettlementDay:  -1,
	}
}

func minQty(a, b core.Quantity) core.Quantity {
	if a < b {
		return a
	}
	return b
}

// ApplyFill updates cash, loan, settlement, and position state for one fill,
// per the Buy/Sell rules of spec.md §4.C.
func (p *Portfolio) ApplyFill(fill core.Fill) {
	sym := int(fill.SymbolIdx)
	qty := fill.Quantity
	px := fill.Price
	notional := px.Mul(qty)

	if fill.Side == core.Buy {
		p.applyBuy(sym, qty, px, notional)
	} else {
		p.applySell(sym, qty, px, notional, fill.Timestamp)
	}
}

func (p *Portfolio) applyBuy(sym int, qty core.Quantity, px, notional core.Ticks) {
	settledUsed := notional
	if settledUsed > p.SettledFunds {
		settledUsed = p.SettledFunds
	}
	if settledUsed < 0 {
		settledUsed = 0
	}
	marginUsed := notional - settledUsed

	p.SettledFunds -= settledUsed
	p.Loan += marginUsed
	p.Cash -= notional

	cover := minQty(qty, p.ShortQty[sym])
	p.ShortQty[sym] -= cover
	open := qty - cover
	if open > 0 {
		total := p.LongQty[sym] + open
		p.CostBasis[sym] = weightedAvg(p.CostBasis[sym], p.LongQty[sym], px, open, total)
		p.LongQty[sym] = total
	}
	if p.LongQty[sym] == 0 && p.ShortQty[sym] == 0 {
		p.CostBasis[sym] = 0
	}
}

func (p *Portfolio) applySell(sym int, qty core.Quantity, px, notional core.Ticks, ts core.TimeStamp) {
	p.Cash += notional

	repay := notional
	if repay > p.Loan {
		repay = p.Loan
	}
	p.Loan -= repay
	remainder := notional - repay
	if remainder > 0 {
		p.PendingFunds = append(p.PendingFunds, UnsettledFunds{
			Amount:               remainder,
			EarliestSettlementTs: ts.Add(p.SettlementDelayNs),
		})
	}

	cover := minQty(qty, p.LongQty[sym])
	p.LongQty[sym] -= cover
	open := qty - cover
	if open > 0 {
		total := p.ShortQty[sym] + open
		p.CostBasis[sym] = weightedAvg(p.CostBasis[sym], p.ShortQty[sym], px, open, total)
		p.ShortQty[sym] = total
	}
	if p.LongQty[sym] == 0 && p.ShortQty[sym] == 0 {
		p.CostBasis[sym] = 0
	}
}

func weightedAvg(existingBasis core.Ticks, existingQty core.Quantity, px core.Ticks, addQty, totalQty core.Quantity) core.Ticks {
	if totalQty == 0 {
		return 0
	}
	return existingBasis.Mul(existingQty).Add(px.Mul(addQty)).Div(totalQty)
}

// dayNumber returns the UTC epoch-day index of ts.
func dayNumber(ts core.TimeStamp) int64 {
	t := time.Unix(0, int64(ts)).UTC()
	return t.Unix() / 86400
}

// IsSettlementTick reports whether settlement should run at now: at or
// after 09:00 UTC of a calendar day strictly greater than the last
// settlement day.
func (p *Portfolio) IsSettlementTick(now core.TimeStamp) bool {
	t := time.Unix(0, int64(now)).UTC()
	day := dayNumber(now)
	if p.settledOnce && day <= p.lastSettlementDay {
		return false
	}
	return t.Hour() >= 9
}

// Settle moves every matured UnsettledFunds entry into SettledFunds and
// accrues one day of compound interest on any outstanding loan, per
// spec.md §4.C. Must only be called when IsSettlementTick(now) is true.
func (p *Portfolio) Settle(now core.TimeStamp) {
	remaining := p.PendingFunds[:0]
	for _, uf := range p.PendingFunds {
		if now >= uf.EarliestSettlementTs {
			p.SettledFunds += uf.Amount
		} else {
			remaining = append(remaining, uf)
		}
	}
	p.PendingFunds = remaining

	if p.Loan > 0 {
		dailyRate := p.AnnualInterestRate / (365.0 * 100.0)
		p.InterestOwed += core.Ticks(math.Floor(float64(p.Loan+p.InterestOwed) * dailyRate))
	}

	p.lastSettlementDay = dayNumber(now)
	p.settledOnce = true
}

// PayInterest deducts amount from SettledFunds and InterestOwed, never more
// than is available in either, and returns the amount actually paid.
func (p *Portfolio) PayInterest(amount core.Ticks) core.Ticks {
	if amount > p.InterestOwed {
		amount = p.InterestOwed
	}
	if amount > p.SettledFunds {
		amount = p.SettledFunds
	}
	if amount < 0 {
		return 0
	}
	p.SettledFunds -= amount
	p.InterestOwed -= amount
	return amount
}

// LongMV returns the mark-to-market value of all long positions, using the
// best bid per symbol.
func (p *Portfolio) LongMV(bestBid []core.Ticks) core.Ticks {
	var sum core.Ticks
	for i, q := range p.LongQty {
		if i < len(bestBid) {
			sum = sum.Add(bestBid[i].Mul(q))
		}
	}
	return sum
}

// ShortMV returns the mark-to-market value of all short positions, using
// the best ask per symbol.
func (p *Portfolio) ShortMV(bestAsk []core.Ticks) core.Ticks {
	var sum core.Ticks
	for i, q := range p.ShortQty {
		if i < len(bestAsk) {
			sum = sum.Add(bestAsk[i].Mul(q))
		}
	}
	return sum
}

// GrossMV is the total notional exposure across longs and shorts.
func (p *Portfolio) GrossMV(bestBid, bestAsk []core.Ticks) core.Ticks {
	return p.LongMV(bestBid).Add(p.ShortMV(bestAsk))
}

// NetMV is long exposure minus short exposure.
func (p *Portfolio) NetMV(bestBid, bestAsk []core.Ticks) core.Ticks {
	return p.LongMV(bestBid).Sub(p.ShortMV(bestAsk))
}

// NetLiquidation is cash plus net market value minus loan and interest owed.
func (p *Portfolio) NetLiquidation(bestBid, bestAsk []core.Ticks) core.Ticks {
	return p.Cash.Add(p.NetMV(bestBid, bestAsk)).Sub(p.Loan.Add(p.InterestOwed))
}

// MaintenanceRequirement is 30% of gross market value.
func (p *Portfolio) MaintenanceRequirement(bestBid, bestAsk []core.Ticks) core.Ticks {
	gross := p.GrossMV(bestBid, bestAsk)
	return core.Ticks(int64(float64(gross) * MaintenanceRate))
}

// ViolatesMargin reports whether net liquidation has fallen below the
// maintenance requirement.
func (p *Portfolio) ViolatesMargin(bestBid, bestAsk []core.Ticks) bool {
	return p.NetLiquidation(bestBid, bestAsk) < p.MaintenanceRequirement(bestBid, bestAsk)
}

// TotalOrderPrice computes the notional an order would cost against the
// current book: limit_px*qty for Limit orders, or the depth-weighted walk
// of the opposite side of the book for Market orders, per spec.md §4.C.
func TotalOrderPrice(order core.NewOrder, quote core.Quote) core.Ticks {
	if order.Type == core.Limit {
		return order.LimitPrice.Mul(order.Quantity)
	}

	var total core.Ticks
	var filled core.Quantity
	depth := quote.Depth()
	for l := 0; l < depth && filled < order.Quantity; l++ {
		var px core.Ticks
		var sz core.Quantity
		if order.Side == core.Buy {
			px, sz = quote.BestAsk(l), quote.AskSize(l)
		} else {
			px, sz = quote.BestBid(l), quote.BidSize(l)
		}
		take := sz
		if remaining := order.Quantity - filled; take > remaining {
			take = remaining
		}
		total = total.Add(px.Mul(take))
		filled += take
	}
	return total
}

// PreTradeCheck implements the spec.md §4.C sufficiency check: an order is
// acceptable iff net_liquidation > 0 AND projected_gross_mv <=
// net_liquidation * leverage_factor. bestBid/bestAsk are per-symbol level-0
// prices across the whole symbol universe; quote is the book for the
// order's own symbol (used to value the closing/opening split).
func (p *Portfolio) PreTradeCheck(order core.NewOrder, quote core.Quote, bestBid, bestAsk []core.Ticks, leverageFactor float64) error {
	netLiq := p.NetLiquidation(bestBid, bestAsk)
	if netLiq <= 0 {
		return apperrors.ErrInsufficientFunds
	}

	sym := int(order.SymbolIdx)
	currentGross := p.GrossMV(bestBid, bestAsk)
	bid0, ask0 := quote.BestBid(0), quote.BestAsk(0)

	var projectedGross core.Ticks
	if order.Side == core.Buy {
		closing := minQty(order.Quantity, p.ShortQty[sym])
		opening := order.Quantity - closing
		projectedGross = currentGross.Sub(ask0.Mul(closing)).Add(bid0.Mul(opening))
	} else {
		closing := minQty(order.Quantity, p.LongQty[sym])
		opening := order.Quantity - closing
		projectedGross = currentGross.Sub(bid0.Mul(closing)).Add(ask0.Mul(opening))
	}

	limit := core.Ticks(float64(netLiq) * leverageFactor)
	if projectedGross > limit {
		return apperrors.ErrInsufficientFunds
	}
	return nil
}
