package engine

import "time"

// canTrade implements the trading-hours gate of spec.md §4.F/§6. Whether
// the current timestamp falls within a daylight-savings shifted session is
// a property of the calendar date — the determination itself is left to an
// external collaborator (spec.md §1 lists trading-calendar/DST arithmetic
// as out of scope) and surfaces here only as the already-resolved
// RunParams.DaylightSavings flag.
func canTrade(ts time.Time, enforce, allowExtended, dst bool) bool {
	if !enforce {
		return true
	}
	if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
		return false
	}

	minuteOfDay := ts.Hour()*60 + ts.Minute()

	regularStart, regularEnd := 14*60+30, 21*60
	if dst {
		regularStart, regularEnd = 13*60+30, 20*60
	}

	if minuteOfDay >= regularStart && minuteOfDay < regularEnd {
		return true
	}
	if !allowExtended {
		return false
	}

	const preMarketStart = 9 * 60
	if minuteOfDay >= preMarketStart && minuteOfDay < regularStart {
		return true
	}

	if dst {
		return minuteOfDay >= regularEnd && minuteOfDay < 24*60
	}
	// Non-DST after-hours window extends past midnight to 01:00 next day.
	return minuteOfDay >= regularEnd || minuteOfDay < 60
}
