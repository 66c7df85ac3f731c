package engine

import "github.com/KlmnCapital/simulation-engine/internal/core"

// Handle is the limited capability a Strategy callback receives into the
// Engine: PlaceOrder/Cancel/Replace only, per the cyclic-reference design
// note in spec.md §9. It has no lifetime of its own beyond the callback.
type Handle struct {
	engine *Engine
}

// PlaceOrder enqueues a new order, returning its assigned OrderId, or 0 if
// the pre-trade sufficiency check fails (the order is not enqueued).
func (h *Handle) PlaceOrder(sym core.SymbolIdx, side core.Side, typ core.OrderType, qty core.Quantity, tif core.TIF, limitPrice core.Ticks) core.OrderId {
	return h.engine.placeOrder(sym, side, typ, qty, tif, limitPrice)
}

// Cancel enqueues a cancellation of id, subject to latency. Returns false
// only if id was never a valid order id issued by this engine.
func (h *Handle) Cancel(id core.OrderId) bool {
	return h.engine.cancel(id)
}

// Replace enqueues a quantity/price mutation of id, subject to latency.
func (h *Handle) Replace(id core.OrderId, qty core.Quantity, price core.Ticks) bool {
	return h.engine.replace(id, qty, price)
}
