// Package busdate implements the settlement-date arithmetic used across the
// wallet ledger and stock transaction lifecycle: trade effects become final
// a fixed number of business days after execution, at the clearing house's
// settlement clock time.
package busdate

import "time"

// SettlementHour is the local clock time at which settled trades become
// final (BIST clearing time).
const SettlementHour = 17

// AddBusinessDays advances t by n business days, skipping Saturdays and
// Sundays. The time of day is preserved.
func AddBusinessDays(t time.Time, n int) time.Time {
	added := 0
	for added < n {
		t = t.AddDate(0, 0, 1)
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			added++
		}
	}
	return t
}

// SettlementTime returns the T+2 settlement point for a trade executed at
// tradeTime: two business days later at the settlement clock time.
func SettlementTime(tradeTime time.Time) time.Time {
	return SettlementTimeAfter(tradeTime, 2)
}

// SettlementTimeAfter returns the settlement point n business days after
// tradeTime at the settlement clock time. Dividends settle T+1, trades T+2.
func SettlementTimeAfter(tradeTime time.Time, n int) time.Time {
	d := AddBusinessDays(tradeTime, n)
	return time.Date(d.Year(), d.Month(), d.Day(), SettlementHour, 0, 0, 0, d.Location())
}
