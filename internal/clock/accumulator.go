package clock

import "marketReplay/internal/domain"

// Accumulator folds consecutive sub-timeframe bars into one bar. The first
// pushed bar seeds the result; every later bar updates close, volume, the
// high/low extrema and the time.
type Accumulator struct {
	bar   domain.Bar
	count  int
}

// Push folds bar into the running result.
func (a *Accumulator) Push(bar domain.Bar) {
	if a.count == 0 {
		a.bar = bar
		a.count = 1
		return
	}
	a.count++
	a.bar.Close = bar.Close
	a.bar.Volume += bar.Volume
	if bar.Time > a.bar.Time {
		a.bar.Time = bar.Time
	}
	if bar.High > a.bar.High {
		a.bar.High = bar.High
	}
	if bar.Low < a.bar.Low {
		a.bar.Low = bar.Low
	}
}

// Result returns the folded bar, or false when nothing was pushed.
func (a *Accumulator) Result() (domain.Bar, bool) {
	return a.bar, a.count > 0
}

// Len returns the number of bars pushed since the last Reset.
func (a *Accumulator) Len() int {
	return a.count
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	a.bar = domain.Bar{}
	a.count = 0
}
