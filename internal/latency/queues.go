// Package latency implements the four unordered, linearly-scanned pending
// queues described in spec.md §4.E: new orders, cancels, replaces, and fill
// notifications, each gated by an "earliest-effective" timestamp.
package latency

import "github.com/KlmnCapital/simulation-engine/internal/core"

// PendingOrder is a new order that has been sent but cannot execute until
// the current tick reaches EarliestExecTs.
type PendingOrder struct {
	Order          core.NewOrder
	SendTs         core.TimeStamp
	EarliestExecTs core.TimeStamp
}

// PendingCancel targets an order id for cancellation once matured.
type PendingCancel struct {
	TargetOrderId  core.OrderId
	EarliestExecTs core.TimeStamp
}

// PendingReplace mutates an order's quantity/price once matured.
type PendingReplace struct {
	TargetOrderId  core.OrderId
	NewQuantity    core.Quantity
	NewPrice       core.Ticks
	EarliestExecTs core.TimeStamp
}

// PendingNotification carries a Fill to the strategy once EarliestNotifyTs
// matures; Delivered marks it handled so it can be compacted out later.
type PendingNotification struct {
	Fill             core.Fill
	EarliestNotifyTs core.TimeStamp
	Delivered        bool
}

// Queues owns the four pending lists exclusively for one Engine instance.
type Queues struct {
	orders        []*PendingOrder
	cancels       []PendingCancel
	replaces      []PendingReplace
	notifications []*PendingNotification
}

// New returns an empty Queues.
func New() *Queues {
	return &Queues{}
}

// AddOrder enqueues a newly placed order.
func (q *Queues) AddOrder(po *PendingOrder) {
	q.orders = append(q.orders, po)
}

// AddCancel enqueues a cancel request.
func (q *Queues) AddCancel(pc PendingCancel) {
	q.cancels = append(q.cancels, pc)
}

// AddReplace enqueues a replace request.
func (q *Queues) AddReplace(pr PendingReplace) {
	q.replaces = append(q.replaces, pr)
}

// AddNotification enqueues a fill notification.
func (q *Queues) AddNotification(pn *PendingNotification) {
	q.notifications = append(q.notifications, pn)
}

// FindOrder returns the pending order with the given id, if present.
func (q *Queues) FindOrder(id core.OrderId) (*PendingOrder, bool) {
	for _, po := range q.orders {
		if po.Order.Id == id {
			return po, true
		}
	}
	return nil, false
}

// RemoveOrder drops the pending order with the given id, if present.
func (q *Queues) RemoveOrder(id core.OrderId) bool {
	for i, po := range q.orders {
		if po.Order.Id == id {
			q.orders = append(q.orders[:i], q.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Orders returns the current pending orders. Callers may mutate the returned
// pointers in place (e.g. to apply a partial fill's residual quantity).
func (q *Queues) Orders() []*PendingOrder {
	return q.orders
}

// HasPendingOrder reports whether the order with the given id is still
// pending.
func (q *Queues) HasPendingOrder(id core.OrderId) bool {
	_, ok := q.FindOrder(id)
	return ok
}

// DrainMaturedCancels removes and returns every cancel whose EarliestExecTs
// has matured as of now. Per spec.md §4.E step 1, a cancel that matures
// after its target has already filled is simply discarded by the caller.
func (q *Queues) DrainMaturedCancels(now core.TimeStamp) []PendingCancel {
	var matured []PendingCancel
	var remaining []PendingCancel
	for _, c := range q.cancels {
		if now >= c.EarliestExecTs {
			matured = append(matured, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	q.cancels = remaining
	return matured
}

// DrainMaturedReplaces removes and returns every replace whose EarliestExecTs
// has matured as of now.
func (q *Queues) DrainMaturedReplaces(now core.TimeStamp) []PendingReplace {
	var matured []PendingReplace
	var remaining []PendingReplace
	for _, r := range q.replaces {
		if now >= r.EarliestExecTs {
			matured = append(matured, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	q.replaces = remaining
	return matured
}

// MaturedOrders returns the pending orders whose EarliestExecTs has matured
// as of now, in insertion order. The caller is responsible for the
// trading-hours gate and for removing completed orders via RemoveOrder.
func (q *Queues) MaturedOrders(now core.TimeStamp) []*PendingOrder {
	var matured []*PendingOrder
	for _, po := range q.orders {
		if now >= po.EarliestExecTs {
			matured = append(matured, po)
		}
	}
	return matured
}

// MaturedNotifications returns every undelivered notification whose
// EarliestNotifyTs has matured as of now, marking each Delivered.
func (q *Queues) MaturedNotifications(now core.TimeStamp) []*PendingNotification {
	var matured []*PendingNotification
	for _, n := range q.notifications {
		if !n.Delivered && now >= n.EarliestNotifyTs {
			n.Delivered = true
			matured = append(matured, n)
		}
	}
	return matured
}

// CompactNotifications drops delivered notifications from the list. Called
// periodically by the Engine so the list does not grow unbounded across a
// long replay.
func (q *Queues) CompactNotifications() {
	remaining := q.notifications[:0]
	for _, n := range q.notifications {
		if !n.Delivered {
			remaining = append(remaining, n)
		}
	}
	q.notifications = remaining
}
