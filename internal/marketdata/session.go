package marketdata

import "time"

// SessionGate answers whether the market is currently open. The end-of-day
// sweep uses it as a defensive guard against clock skew or an unrecognized
// holiday.
type SessionGate interface {
	IsOpen() bool
}

// Session hours for the Istanbul exchange. Orders are collected in a
// slightly wider window than the continuous trading session.
var (
	sessionOpen     = clockTime{10, 0}
	sessionClose    = clockTime{18, 0}
	collectionStart = clockTime{9, 30}
	collectionEnd   = clockTime{17, 30}
)

type clockTime struct {
	hour, minute int
}

func (ct clockTime) onDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), ct.hour, ct.minute, 0, 0, t.Location())
}

// Calendar is the weekday/clock based SessionGate implementation. The zero
// value uses the wall clock; Now is injectable for tests.
type Calendar struct {
	Now func() time.Time
}

func NewCalendar() *Calendar {
	return &Calendar{Now: time.Now}
}

func (c *Calendar) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// IsOpen reports whether the continuous trading session is running.
func (c *Calendar) IsOpen() bool {
	now := c.now()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	return now.After(sessionOpen.onDay(now)) && now.Before(sessionClose.onDay(now))
}

// CanPlaceOrder reports whether the order collection window is open.
func (c *Calendar) CanPlaceOrder() bool {
	now := c.now()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	return now.After(collectionStart.onDay(now)) && now.Before(collectionEnd.onDay(now))
}
