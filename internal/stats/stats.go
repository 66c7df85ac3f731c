// Package stats accumulates the sampled equity series and order/fill logs
// the engine uses to compute drawdown, volatility, and Sharpe ratio, per
// spec.md §4.G.
package stats

import (
	"math"

	"github.com/KlmnCapital/simulation-engine/internal/core"
)

// SecondsPerYear anchors the annualization factor for volatility/Sharpe.
const SecondsPerYear = 365 * 24 * 3600

// Sample is one point of the net-liquidation series.
type Sample struct {
	Timestamp      core.TimeStamp
	NetLiquidation core.Ticks
}

// OrderRecord logs one PlaceOrder call, accepted or rejected.
type OrderRecord struct {
	Order    core.NewOrder
	PlacedTs core.TimeStamp
	Accepted bool
}

// Statistics accumulates the sampled equity series and order/fill logs for
// one simulation run.
type Statistics struct {
	updateIntervalNs uint64
	hasFirstSample   bool
	lastSampleTs     core.TimeStamp

	startValue core.Ticks
	minNetLiq  core.Ticks

	samples []Sample
	orders  []OrderRecord
	fills   []core.Fill

	interestAccrued core.Ticks
}

// New returns a Statistics accumulator sampling every updateRateSeconds of
// simulated time, starting from startValue.
func New(updateRateSeconds int, startValue core.Ticks) *Statistics {
	if updateRateSeconds <= 0 {
		updateRateSeconds = 60
	}
	return &Statistics{
		updateIntervalNs: uint64(updateRateSeconds) * 1_000_000_000,
		startValue:       startValue,
		minNetLiq:        startValue,
	}
}

// RecordOrder logs a PlaceOrder attempt.
func (s *Statistics) RecordOrder(o core.NewOrder, ts core.TimeStamp, accepted bool) {
	s.orders = append(s.orders, OrderRecord{Order: o, PlacedTs: ts, Accepted: accepted})
}

// RecordFill logs an executed fill, including synthetic force-liquidation
// fills (OrderId == 0).
func (s *Statistics) RecordFill(f core.Fill) {
	s.fills = append(s.fills, f)
}

// RecordInterest accumulates interest charged against the account.
func (s *Statistics) RecordInterest(amount core.Ticks) {
	s.interestAccrued = s.interestAccrued.Add(amount)
}

// Sample records netLiq at now if at least one update interval has elapsed
// since the last sample (or this is the first sample).
func (s *Statistics) Sample(now core.TimeStamp, netLiq core.Ticks) {
	if s.hasFirstSample && uint64(now-s.lastSampleTs) < s.updateIntervalNs {
		return
	}
	s.samples = append(s.samples, Sample{Timestamp: now, NetLiquidation: netLiq})
	s.lastSampleTs = now
	s.hasFirstSample = true
	if netLiq < s.minNetLiq {
		s.minNetLiq = netLiq
	}
}

// Orders returns the recorded order log.
func (s *Statistics) Orders() []OrderRecord { return s.orders }

// Fills returns the recorded fill log.
func (s *Statistics) Fills() []core.Fill { return s.fills }

// Summary is the computed performance metrics of a completed run.
type Summary struct {
	StartValue          core.Ticks
	FinalValue          core.Ticks
	TotalReturn         float64 // fraction, e.g. 0.05 = 5%
	MaxDrawdown         float64 // fraction
	AnnualizedVolatility float64
	Sharpe              float64
	InterestOwed        core.Ticks
	FillCount           int
	OrderCount          int
}

// Summarize computes the final Summary. finalNetLiq is the last-observed
// net liquidation value (typically the final sample, but may be passed
// explicitly so callers can summarize mid-run).
func (s *Statistics) Summarize(finalNetLiq core.Ticks) Summary {
	sum := Summary{
		StartValue:   s.startValue,
		FinalValue:   finalNetLiq,
		InterestOwed: s.interestAccrued,
		FillCount:    len(s.fills),
		OrderCount:   len(s.orders),
	}

	if s.startValue != 0 {
		sum.TotalReturn = float64(finalNetLiq-s.startValue) / float64(s.startValue)
		sum.MaxDrawdown = float64(s.startValue-s.minNetLiq) / float64(s.startValue)
	}

	sum.AnnualizedVolatility, sum.Sharpe = s.volatilityAndSharpe()
	return sum
}

// volatilityAndSharpe computes annualized volatility and Sharpe ratio from
// the log-return series between consecutive samples, assuming a risk-free
// rate of zero.
func (s *Statistics) volatilityAndSharpe() (vol float64, sharpe float64) {
	if len(s.samples) < 2 {
		return 0, 0
	}

	logReturns := make([]float64, 0, len(s.samples)-1)
	var sumIntervalSeconds float64
	for i := 1; i < len(s.samples); i++ {
		prev := float64(s.samples[i-1].NetLiquidation)
		cur := float64(s.samples[i].NetLiquidation)
		if prev <= 0 || cur <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(cur/prev))
		sumIntervalSeconds += float64(s.samples[i].Timestamp-s.samples[i-1].Timestamp) / 1e9
	}
	if len(logReturns) == 0 {
		return 0, 0
	}

	avgIntervalSeconds := sumIntervalSeconds / float64(len(logReturns))
	if avgIntervalSeconds <= 0 {
		avgIntervalSeconds = float64(s.updateIntervalNs) / 1e9
	}
	periodsPerYear := SecondsPerYear / avgIntervalSeconds

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	var variance float64
	for _, r := range logReturns {
		d := r - mean
		variance += d * d
	}
	if len(logReturns) > 1 {
		variance /= float64(len(logReturns) - 1)
	}

	periodVol := math.Sqrt(variance)
	vol = periodVol * math.Sqrt(periodsPerYear)

	annualizedReturn := mean * periodsPerYear
	if vol > 0 {
		sharpe = annualizedReturn / vol
	}
	return vol, sharpe
}
