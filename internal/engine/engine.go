// Package engine implements the single-threaded, strictly sequential event
// loop of spec.md §4.F: it advances a market-data source tick by tick,
// dispatches strategy callbacks, processes the latency queues in the fixed
// sub-order of spec.md §4.E, enforces margin, and drives settlement.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
	"github.com/KlmnCapital/simulation-engine/internal/config"
	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/filldist"
	"github.com/KlmnCapital/simulation-engine/internal/fillmodel"
	"github.com/KlmnCapital/simulation-engine/internal/latency"
	"github.com/KlmnCapital/simulation-engine/internal/logging"
	"github.com/KlmnCapital/simulation-engine/internal/marketdata"
	"github.com/KlmnCapital/simulation-engine/internal/portfolio"
	"github.com/KlmnCapital/simulation-engine/internal/stats"
	"github.com/KlmnCapital/simulation-engine/internal/telemetry"
)

// Strategy is the user-implemented callback set, per spec.md §6. Strategies
// may call Handle mutators from OnMarketData freely; calls made from OnFill
// are permitted but their effects manifest one tick later due to latency.
type Strategy interface {
	OnMarketData(h *Handle, state core.MarketState)
	OnFill(h *Handle, fill core.Fill)
	OnEnd(h *Handle)
}

// TickFrame is one live-monitor broadcast unit (spec.md §4.L).
type TickFrame struct {
	Timestamp        core.TimeStamp
	NetLiquidation   core.Ticks
	OpenOrders       int
	QuotesProcessed  uint64
}

// Observer receives a TickFrame after every processed snapshot. Implemented
// by internal/live.Hub; kept as a local interface so this package never
// imports the websocket transport.
type Observer interface {
	OnTick(frame TickFrame)
}

// RunRecord is the persisted summary of one completed run (spec.md §3),
// written by whatever ResultSink the caller wires in.
type RunRecord struct {
	RunID           string
	StrategyName    string
	StartedAt       time.Time
	FinishedAt      time.Time
	QuotesProcessed uint64
	Summary         stats.Summary
	Report          string
}

// ResultSink persists a RunRecord after a run completes. Implemented by
// internal/persistence.SQLiteStore.
type ResultSink interface {
	SaveRun(ctx context.Context, record RunRecord) error
}

// Result is returned by Run: the full fill log, the final portfolio, and
// the run's statistics.
type Result struct {
	Fills           []core.Fill
	Portfolio       *portfolio.Portfolio
	QuotesProcessed uint64
	Summary         stats.Summary
	Report          string
}

// Engine owns the Portfolio, the four latency queues, the Statistics
// accumulator, the RNG, and the market-data source exclusively; a Strategy
// is a guest object borrowed across each step with no independent lifetime.
type Engine struct {
	params    *config.RunParams
	source    marketdata.Source
	portfolio *portfolio.Portfolio
	queues    *latency.Queues
	stats     *stats.Statistics
	logger    logging.Logger

	rng      *rand.Rand
	buyDist  filldist.Distribution
	sellDist filldist.Distribution

	nextOrderID core.OrderId
	quotesSeen  uint64
	lastState   core.MarketState
	bestBid     []core.Ticks
	bestAsk     []core.Ticks

	observer Observer
	sink     ResultSink

	tracer trace.Tracer
	meter  metric.Meter
}

// New constructs an Engine from RunParams and a market-data Source. logger
// may be nil, in which case logs are discarded.
func New(params *config.RunParams, source marketdata.Source, logger logging.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigError, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	meter := telemetry.GetMeter("engine")
	if err := telemetry.GetGlobalMetrics().Init(meter); err != nil {
		return nil, fmt.Errorf("failed to init engine metrics: %w", err)
	}

	var rng *rand.Rand
	if params.UseRandomness {
		seed := params.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	e := &Engine{
		params:      params,
		source:      source,
		portfolio:   portfolio.New(params.SymbolCount, core.Ticks(params.StartingCash), params.SettlementDelayNs, params.InterestRate),
		queues:      latency.New(),
		stats:       stats.New(params.StatisticsUpdateRateSeconds, core.Ticks(params.StartingCash)),
		logger:      logger.WithField("component", "engine"),
		rng:         rng,
		buyDist:     distributionFrom(params.BuyFillDistribution),
		sellDist:    distributionFrom(params.SellFillDistribution),
		nextOrderID: 1,
		bestBid:     make([]core.Ticks, params.SymbolCount),
		bestAsk:     make([]core.Ticks, params.SymbolCount),
		tracer:      telemetry.GetTracer("engine"),
		meter:       meter,
	}
	return e, nil
}

func distributionFrom(cfg config.FillDistributionConfig) filldist.Distribution {
	switch cfg.Kind {
	case config.DistributionNormal:
		return filldist.Normal{Mean: cfg.Mean, StdDev: cfg.StdDev}
	default:
		return filldist.Constant{Rate: cfg.Value}
	}
}

// SetObserver wires an optional live-monitor observer.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// SetResultSink wires an optional persistence sink.
func (e *Engine) SetResultSink(s ResultSink) { e.sink = s }

// effectiveDistributions returns the Constant(100)/nil-rng pair when
// RunParams.UseRandomness is false (deterministic "always max fill" per
// spec.md §9), or the configured distributions and seeded RNG otherwise.
func (e *Engine) effectiveDistributions() (filldist.Distribution, filldist.Distribution, *rand.Rand) {
	if !e.params.UseRandomness {
		return filldist.Constant{Rate: 100}, filldist.Constant{Rate: 100}, nil
	}
	return e.buyDist, e.sellDist, e.rng
}

func (e *Engine) updateBestPrices(state core.MarketState) {
	for i := 0; i < e.params.SymbolCount && i < len(state.Quotes); i++ {
		e.bestBid[i] = state.Quotes[i].BestBid(0)
		e.bestAsk[i] = state.Quotes[i].BestAsk(0)
	}
}

func (e *Engine) placeOrder(sym core.SymbolIdx, side core.Side, typ core.OrderType, qty core.Quantity, tif core.TIF, limitPrice core.Ticks) core.OrderId {
	if qty <= 0 {
		return 0
	}
	now := e.lastState.Timestamp
	quote := e.lastState.Quote(sym)

	candidate := core.NewOrder{
		SymbolIdx:  sym,
		Side:       side,
		Type:       typ,
		Quantity:   qty,
		TIF:        tif,
		LimitPrice: limitPrice,
	}

	if err := e.portfolio.PreTradeCheck(candidate, quote, e.bestBid, e.bestAsk, e.params.LeverageFactor); err != nil {
		e.logger.Warn("order rejected by pre-trade check", "symbol", sym, "side", side, "qty", qty, "error", err)
		e.stats.RecordOrder(candidate, now, false)
		return 0
	}

	id := e.nextOrderID
	e.nextOrderID++
	candidate.Id = id

	sendLatency := e.params.SendLatencyNs
	recvLatency := e.params.ReceiveLatencyNs
	po := &latency.PendingOrder{
		Order:          candidate,
		SendTs:         now,
		EarliestExecTs: now.Add(sendLatency + recvLatency),
	}
	e.queues.AddOrder(po)
	e.stats.RecordOrder(candidate, now, true)
	return id
}

func (e *Engine) cancel(id core.OrderId) bool {
	if id == 0 || id >= e.nextOrderID {
		return false
	}
	now := e.lastState.Timestamp
	e.queues.AddCancel(latency.PendingCancel{
		TargetOrderId:  id,
		EarliestExecTs: now.Add(e.params.SendLatencyNs + e.params.ReceiveLatencyNs),
	})
	return true
}

func (e *Engine) replace(id core.OrderId, qty core.Quantity, price core.Ticks) bool {
	now := e.lastState.Timestamp
	e.queues.AddReplace(latency.PendingReplace{
		TargetOrderId:  id,
		NewQuantity:    qty,
		NewPrice:       price,
		EarliestExecTs: now.Add(e.params.SendLatencyNs + e.params.ReceiveLatencyNs),
	})
	return true
}

// Run drives strategy through every snapshot source yields, per the main
// loop of spec.md §4.F, and returns the accumulated Result.
func (e *Engine) Run(ctx context.Context, strategy Strategy) (Result, error) {
	handle := &Handle{engine: e}
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	startedAt := time.Now()

	for {
		state, ok, err := e.source.Next()
		if err != nil {
			return e.partialResult(), fmt.Errorf("market data source error: %w", err)
		}
		if !ok {
			break
		}

		_, span := e.tracer.Start(ctx, "engine.tick", trace.WithAttributes(
			attribute.Int64("timestamp_ns", int64(state.Timestamp)),
		))

		e.lastState = state
		e.quotesSeen++
		e.updateBestPrices(state)
		telemetry.GetGlobalMetrics().QuotesProcessed.Add(ctx, 1)

		strategy.OnMarketData(handle, state)

		if e.portfolio.ViolatesMargin(e.bestBid, e.bestAsk) {
			e.forceLiquidate(ctx, state.Timestamp)
		}

		e.processPendingOrders(ctx, state)
		e.processNotifications(state.Timestamp, strategy, handle)

		if e.portfolio.IsSettlementTick(state.Timestamp) {
			before := e.portfolio.InterestOwed
			e.portfolio.Settle(state.Timestamp)
			if delta := e.portfolio.InterestOwed - before; delta > 0 {
				e.stats.RecordInterest(delta)
			}
		}

		netLiq := e.portfolio.NetLiquidation(e.bestBid, e.bestAsk)
		e.stats.Sample(state.Timestamp, netLiq)
		telemetry.GetGlobalMetrics().ObserveNetLiquidation(runID, float64(netLiq))

		if e.observer != nil {
			e.observer.OnTick(TickFrame{
				Timestamp:       state.Timestamp,
				NetLiquidation:  netLiq,
				OpenOrders:      len(e.queues.Orders()),
				QuotesProcessed: e.quotesProcessedCount(),
			})
		}

		span.End()
	}

	strategy.OnEnd(handle)

	finalNetLiq := e.portfolio.NetLiquidation(e.bestBid, e.bestAsk)
	summary := e.stats.Summarize(finalNetLiq)
	report := e.stats.Report(summary, e.params.StrategyName, e.params.VerbosityLevel)

	result := Result{
		Fills:           e.stats.Fills(),
		Portfolio:       e.portfolio,
		QuotesProcessed: e.quotesProcessedCount(),
		Summary:         summary,
		Report:          report,
	}

	if e.sink != nil {
		record := RunRecord{
			RunID:           runID,
			StrategyName:    e.params.StrategyName,
			StartedAt:       startedAt,
			FinishedAt:      time.Now(),
			QuotesProcessed: result.QuotesProcessed,
			Summary:         summary,
			Report:          report,
		}
		if err := e.sink.SaveRun(ctx, record); err != nil {
			e.logger.Error("failed to persist run record", "run_id", runID, "error", err)
		}
	}

	return result, nil
}

func (e *Engine) quotesProcessedCount() uint64 {
	return e.quotesSeen
}

func (e *Engine) partialResult() Result {
	finalNetLiq := e.portfolio.NetLiquidation(e.bestBid, e.bestAsk)
	summary := e.stats.Summarize(finalNetLiq)
	return Result{
		Fills:           e.stats.Fills(),
		Portfolio:       e.portfolio,
		QuotesProcessed: e.quotesProcessedCount(),
		Summary:         summary,
	}
}

// processPendingOrders implements the fixed sub-order of spec.md §4.E:
// matured cancels, then matured replaces, then matured new orders (gated by
// trading hours).
func (e *Engine) processPendingOrders(ctx context.Context, state core.MarketState) {
	now := state.Timestamp

	for _, c := range e.queues.DrainMaturedCancels(now) {
		e.queues.RemoveOrder(c.TargetOrderId)
	}

	for _, r := range e.queues.DrainMaturedReplaces(now) {
		if po, ok := e.queues.FindOrder(r.TargetOrderId); ok {
			po.Order.Quantity = r.NewQuantity
			po.Order.LimitPrice = r.NewPrice
		}
	}

	ts := time.Unix(0, int64(now)).UTC()
	if !canTrade(ts, e.params.EnforceTradingHours, e.params.AllowExtendedHours, e.params.DaylightSavings) {
		return
	}

	buyDist, sellDist, rng := e.effectiveDistributions()
	for _, po := range e.queues.MaturedOrders(now) {
		quote := state.Quote(po.Order.SymbolIdx)
		result := fillmodel.Match(po.Order, quote, now, rng, buyDist, sellDist)

		if result.Fill != nil {
			e.portfolio.ApplyFill(*result.Fill)
			e.stats.RecordFill(*result.Fill)
			telemetry.GetGlobalMetrics().FillsTotal.Add(ctx, 1)
			e.queues.AddNotification(&latency.PendingNotification{
				Fill:             *result.Fill,
				EarliestNotifyTs: result.Fill.Timestamp.Add(e.params.ReceiveLatencyNs),
			})
		}

		po.Order.Quantity = result.Remaining
		if result.IsComplete {
			e.queues.RemoveOrder(po.Order.Id)
		}
	}
}

func (e *Engine) processNotifications(now core.TimeStamp, strategy Strategy, handle *Handle) {
	for _, n := range e.queues.MaturedNotifications(now) {
		strategy.OnFill(handle, n.Fill)
	}
	e.queues.CompactNotifications()
}

// forceLiquidate liquidates up to 100 shares per iteration at the adverse
// side until the margin violation is cured or no position remains, per
// spec.md §4.F. This is a local loop, not recursion, so a book too thin to
// cure the violation cannot cause unbounded recursion.
func (e *Engine) forceLiquidate(ctx context.Context, now core.TimeStamp) {
	const chunk = core.Quantity(100)

	for e.portfolio.ViolatesMargin(e.bestBid, e.bestAsk) {
		sym, side, qty, ok := e.pickLiquidationChunk(chunk)
		if !ok {
			e.logger.Warn("force liquidation could not cure margin violation; book exhausted", "timestamp", now)
			return
		}

		var price core.Ticks
		if side == core.Sell {
			price = e.bestBid[sym]
		} else {
			price = e.bestAsk[sym]
		}

		fill := core.Fill{
			OrderId:   0,
			SymbolIdx: core.SymbolIdx(sym),
			Side:      side,
			Type:      core.Market,
			TIF:       core.IOC,
			Quantity:  qty,
			Price:     price,
			Timestamp: now,
		}
		e.portfolio.ApplyFill(fill)
		e.stats.RecordFill(fill)
		telemetry.GetGlobalMetrics().ForceLiquidations.Add(ctx, 1)
		telemetry.GetGlobalMetrics().FillsTotal.Add(ctx, 1)
		e.queues.AddNotification(&latency.PendingNotification{
			Fill:             fill,
			EarliestNotifyTs: now.Add(e.params.ReceiveLatencyNs),
		})
	}
}

// pickLiquidationChunk finds a symbol with a nonzero position and returns
// the side/quantity to liquidate (sell long at bid, buy-to-cover short at
// ask), capped at chunk shares.
func (e *Engine) pickLiquidationChunk(chunk core.Quantity) (sym int, side core.Side, qty core.Quantity, ok bool) {
	for i := 0; i < e.params.SymbolCount; i++ {
		if e.portfolio.LongQty[i] > 0 {
			q := e.portfolio.LongQty[i]
			if q > chunk {
				q = chunk
			}
			return i, core.Sell, q, true
		}
		if e.portfolio.ShortQty[i] > 0 {
			q := e.portfolio.ShortQty[i]
			if q > chunk {
				q = chunk
			}
			return i, core.Buy, q, true
		}
	}
	return 0, 0, 0, false
}
