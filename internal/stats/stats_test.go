package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KlmnCapital/simulation-engine/internal/core"
)

func TestSampleRespectsUpdateInterval(t *testing.T) {
	s := New(60, 1000*core.TickScale)

	s.Sample(0, 1000*core.TickScale)
	s.Sample(30*1_000_000_000, 990*core.TickScale) // within 60s, dropped
	s.Sample(60*1_000_000_000, 980*core.TickScale) // exactly one interval later, kept

	assert.Len(t, s.samples, 2)
	assert.Equal(t, core.Ticks(980*core.TickScale), s.minNetLiq)
}

func TestSummarizeTotalReturnAndDrawdown(t *testing.T) {
	s := New(60, 1000*core.TickScale)
	s.Sample(0, 1000*core.TickScale)
	s.Sample(60*1_000_000_000, 800*core.TickScale)
	s.Sample(120*1_000_000_000, 1100*core.TickScale)

	sum := s.Summarize(1100 * core.TickScale)
	assert.Equal(t, core.Ticks(1000*core.TickScale), sum.StartValue)
	assert.Equal(t, core.Ticks(1100*core.TickScale), sum.FinalValue)
	assert.InDelta(t, 0.10, sum.TotalReturn, 1e-9)
	assert.InDelta(t, 0.20, sum.MaxDrawdown, 1e-9) // (1000-800)/1000
}

func TestSummarizeFewerThanTwoSamplesYieldsZeroVolatility(t *testing.T) {
	s := New(60, 1000*core.TickScale)
	s.Sample(0, 1000*core.TickScale)

	sum := s.Summarize(1000 * core.TickScale)
	assert.Equal(t, 0.0, sum.AnnualizedVolatility)
	assert.Equal(t, 0.0, sum.Sharpe)
}

func TestSummarizeCountsOrdersAndFillsAndInterest(t *testing.T) {
	s := New(60, 0)
	s.RecordOrder(core.NewOrder{Id: 1}, 0, true)
	s.RecordOrder(core.NewOrder{Id: 2}, 0, false)
	s.RecordFill(core.Fill{OrderId: 1})
	s.RecordInterest(core.Ticks(5 * core.TickScale))
	s.RecordInterest(core.Ticks(3 * core.TickScale))

	sum := s.Summarize(0)
	assert.Equal(t, 2, sum.OrderCount)
	assert.Equal(t, 1, sum.FillCount)
	assert.Equal(t, core.Ticks(8*core.TickScale), sum.InterestOwed)
	assert.Len(t, s.Orders(), 2)
	assert.Len(t, s.Fills(), 1)
}

func TestSummarizeZeroStartValueAvoidsDivideByZero(t *testing.T) {
	s := New(60, 0)
	sum := s.Summarize(500 * core.TickScale)
	assert.Equal(t, 0.0, sum.TotalReturn)
	assert.Equal(t, 0.0, sum.MaxDrawdown)
}
