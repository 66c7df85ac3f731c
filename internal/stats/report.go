package stats

import (
	"fmt"
	"strings"

	"github.com/KlmnCapital/simulation-engine/internal/config"
)

// Report renders a Summary (plus the order/fill logs) to text at the
// requested verbosity, per spec.md §6. Monetary values are formatted as
// "$X.YY" after dividing ticks by core.TickScale, except the DETAILED equity
// series, which prints net liquidation as a plain two-decimal number.
func (s *Statistics) Report(summary Summary, strategyName string, verbosity config.Verbosity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Simulation Report: %s ===\n", strategyName)
	fmt.Fprintf(&b, "Starting equity:        %s\n", summary.StartValue.Dollars())
	fmt.Fprintf(&b, "Final portfolio value:  %s\n", summary.FinalValue.Dollars())
	fmt.Fprintf(&b, "Total return:           %.2f%%\n", summary.TotalReturn*100)
	fmt.Fprintf(&b, "Max drawdown:           %.2f%%\n", summary.MaxDrawdown*100)
	fmt.Fprintf(&b, "Annualized volatility:  %.2f%%\n", summary.AnnualizedVolatility*100)
	fmt.Fprintf(&b, "Sharpe ratio:           %.4f\n", summary.Sharpe)
	fmt.Fprintf(&b, "Interest owed:          %s\n", summary.InterestOwed.Dollars())
	fmt.Fprintf(&b, "Fill count:             %d\n", summary.FillCount)

	if verbosity == config.Minimal {
		return b.String()
	}

	b.WriteString("\n--- Orders ---\n")
	for _, o := range s.orders {
		status := "accepted"
		if !o.Accepted {
			status = "rejected"
		}
		fmt.Fprintf(&b, "id=%d sym=%d %s %s qty=%d tif=%s px=%s [%s]\n",
			o.Order.Id, o.Order.SymbolIdx, o.Order.Side, o.Order.Type, o.Order.Quantity,
			o.Order.TIF, o.Order.LimitPrice.Dollars(), status)
	}

	b.WriteString("\n--- Fills ---\n")
	for _, f := range s.fills {
		fmt.Fprintf(&b, "order=%d sym=%d %s qty=%d px=%s ts=%d\n",
			f.OrderId, f.SymbolIdx, f.Side, f.Quantity, f.Price.Dollars(), f.Timestamp)
	}

	if verbosity == config.Standard {
		return b.String()
	}

	b.WriteString("\n--- Equity series ---\n")
	for _, smp := range s.samples {
		fmt.Fprintf(&b, "ts=%d net_liq=%s\n", smp.Timestamp, smp.NetLiquidation.Decimal().StringFixed(2))
	}

	return b.String()
}
