package core

import "time"

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1m", "5m", "1d"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// IsValid reports whether the bar has a timestamp and a consistent price range.
func (b OHLCV) IsValid() bool {
	if b.Time.IsZero() || b.High < b.Low {
		return false
	}
	return b.Open > 0 && b.Close > 0
}

// DateLayout is the calendar date format used for scene dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
