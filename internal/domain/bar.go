package domain

import (
	"fmt"
	"strings"
	"time"
)

// Bar represents a single OHLCV sample of a price series.
type Bar struct {
	Time   int64   // Unix milliseconds of the bar
	Open   float64 // Opening price
	High   float64 // Highest price
	Low    float64 // Lowest price
	Close  float64 // Closing price
	Volume float64 // Traded volume
}

// At returns the bar time as a time.Time in UTC.
func (b Bar) At() time.Time {
	return time.UnixMilli(b.Time).UTC()
}

// Range returns the distance between the bar's high and low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Contains reports whether price lies within [Low, High].
func (b Bar) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// BarsBySymbol maps a symbol to its latest built bar.
type BarsBySymbol map[string]Bar

// Timeframe identifies the sampling interval of a price series.
type Timeframe string

const (
	Minute   Timeframe = "minute"
	Minute5  Timeframe = "minute5"
	Minute10 Timeframe = "minute10"
	Minute15 Timeframe = "minute15"
	Minute30 Timeframe = "minute30"
	Hour     Timeframe = "hour"
	Hour4    Timeframe = "hour4"
	Day      Timeframe = "day"
	Week     Timeframe = "week"
	Month    Timeframe = "month"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Minute:   time.Minute,
	Minute5:  5 * time.Minute,
	Minute10: 10 * time.Minute,
	Minute15: 15 * time.Minute,
	Minute30: 30 * time.Minute,
	Hour:     time.Hour,
	Hour4:    4 * time.Hour,
	Day:      24 * time.Hour,
	Week:     7 * 24 * time.Hour,
	Month:    30 * 24 * time.Hour,
}

// exchange-style interval aliases (1m, 4h, 1d ...)
var timeframeAliases = map[string]Timeframe{
	"1m":  Minute,
	"5m":  Minute5,
	"10m": Minute10,
	"15m": Minute15,
	"30m": Minute30,
	"1h":  Hour,
	"4h":  Hour4,
	"1d":  Day,
	"1w":  Week,
	"7d":  Week,
	"1mo": Month,
	"1M":  Month,
}

// ParseTimeframe accepts either a canonical timeframe name ("hour4") or an
// exchange interval alias ("4h").
func ParseTimeframe(input string) (Timeframe, error) {
	trimmed := strings.TrimSpace(input)
	if tf, ok := timeframeAliases[trimmed]; ok {
		return tf, nil
	}
	tf := Timeframe(strings.ToLower(trimmed))
	if _, ok := timeframeDurations[tf]; ok {
		return tf, nil
	}
	return "", fmt.Errorf("unsupported timeframe: %q", input)
}

// Duration returns the nominal length of one bar of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Interval returns the exchange interval string for the timeframe ("4h").
func (tf Timeframe) Interval() string {
	for alias, t := range timeframeAliases {
		if t == tf && alias != "7d" && alias != "1mo" {
			return alias
		}
	}
	return string(tf)
}

// SeriesKey identifies one price series.
type SeriesKey struct {
	Symbol    string
	Timeframe Timeframe
}

// String renders the key as SYMBOL_timeframe.
func (k SeriesKey) String() string {
	return k.Symbol + "_" + string(k.Timeframe)
}

// PriceHistory is one ingested, time-ascending price series.
type PriceHistory struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

// Key returns the series key of the history.
func (p PriceHistory) Key() SeriesKey {
	return SeriesKey{Symbol: p.Symbol, Timeframe: p.Timeframe}
}

// ValidateSeries checks that a history is non-empty and strictly time-ascending.
func ValidateSeries(p PriceHistory) error {
	if p.Symbol == "" {
		return fmt.Errorf("price history has no symbol")
	}
	if len(p.Bars) == 0 {
		return fmt.Errorf("price history %s has no bars", p.Key())
	}
	for i := 1; i < len(p.Bars); i++ {
		if p.Bars[i].Time <= p.Bars[i-1].Time {
			return fmt.Errorf("price history %s is not strictly ascending at index %d (%d after %d)",
				p.Key(), i, p.Bars[i].Time, p.Bars[i-1].Time)
		}
	}
	return nil
}
