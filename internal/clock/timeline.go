package clock

import (
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// BarEvent is delivered to timeline observers.
type BarEvent struct {
	Key domain.SeriesKey
	Bar domain.Bar
}

type series struct {
	key     domain.SeriesKey
	bars    []domain.Bar
	cursor  int // index of the last consumed bar, -1 before the first
	present []domain.Bar
}

// Timeline owns simulated time. Steps are the bar times of the main series;
// every other registered series is consumed up to the current step and
// folded into one bar per step.
type Timeline struct {
	steps     []int64
	stepIndex int
	time      int64
	started   bool

	mainTimeframe domain.Timeframe
	series        []*series // registration order
	byKey         map[domain.SeriesKey]*series

	latest     domain.BarsBySymbol
	builtOrder []string
	maxSearch  int

	onBar   []func(BarEvent)
	onBuilt []func(BarEvent)
}

// NewTimeline creates an empty timeline. maxSearch bounds nearest-index
// lookups; zero means DefaultMaxSearchIterations.
func NewTimeline(maxSearch int) *Timeline {
	if maxSearch <= 0 {
		maxSearch = DefaultMaxSearchIterations
	}
	return &Timeline{
		byKey:     make(map[domain.SeriesKey]*series),
		latest:    make(domain.BarsBySymbol),
		maxSearch: maxSearch,
	}
}

// Register adds a price history. Series are processed in registration order.
func (t *Timeline) Register(h domain.PriceHistory) error {
	if err := domain.ValidateSeries(h); err != nil {
		return err
	}
	key := h.Key()
	if _, exists := t.byKey[key]; exists {
		return fmt.Errorf("series %s already registered: %w", key, ports.ErrDuplicateEntry)
	}
	s := &series{key: key, bars: h.Bars, cursor: -1}
	t.series = append(t.series, s)
	t.byKey[key] = s
	return nil
}

// OnBar registers fn for every raw bar consumed.
func (t *Timeline) OnBar(fn func(BarEvent)) {
	t.onBar = append(t.onBar, fn)
}

// OnBuiltBar registers fn for every bar that becomes a symbol's latest built bar.
func (t *Timeline) OnBuiltBar(fn func(BarEvent)) {
	t.onBuilt = append(t.onBuilt, fn)
}

// InitFromSeries derives the step sequence from the series at key, makes its
// timeframe the main timeframe and moves to the first step.
func (t *Timeline) InitFromSeries(key domain.SeriesKey) error {
	s, ok := t.byKey[key]
	if !ok {
		return fmt.Errorf("series %s: %w", key, ports.ErrNotFound)
	}
	t.steps = make([]int64, len(s.bars))
	for i, b := range s.bars {
		t.steps[i] = b.Time
	}
	t.mainTimeframe = key.Timeframe
	return t.SetStartTime(t.steps[0])
}

// MainTimeframe returns the timeframe whose bars take priority as a symbol's
// latest built bar.
func (t *Timeline) MainTimeframe() domain.Timeframe {
	return t.mainTimeframe
}

// Steps returns the step times.
func (t *Timeline) Steps() []int64 {
	return t.steps
}

// StepIndex returns the index of the current step.
func (t *Timeline) StepIndex() int {
	return t.stepIndex
}

// Time returns the current simulated time in unix ms.
func (t *Timeline) Time() int64 {
	return t.time
}

// SetStartTime moves to time and clears the bars consumed on the way, so the
// first step starts with an empty present. The step cursor is placed on the
// last step at or before time.
func (t *Timeline) SetStartTime(time int64) error {
	if err := t.SetTime(time); err != nil {
		return err
	}
	for _, s := range t.series {
		s.present = nil
	}
	t.builtOrder = nil

	idx, err := nearIndex(len(t.steps), func(i int) int64 { return t.steps[i] }, time, t.maxSearch)
	if err != nil {
		return err
	}
	if t.steps[idx] > time {
		idx--
	}
	t.stepIndex = idx
	return nil
}

// Advance moves to the next step. It returns false at the end of the steps.
func (t *Timeline) Advance() (bool, error) {
	if t.stepIndex+1 >= len(t.steps) {
		return false, nil
	}
	if err := t.SetTime(t.steps[t.stepIndex+1]); err != nil {
		return false, err
	}
	t.stepIndex++
	return true, nil
}

// SetTime consumes every bar at or before time. Going back in time or past
// the final step is an error.
func (t *Timeline) SetTime(time int64) error {
	if len(t.steps) == 0 {
		return fmt.Errorf("set time %d without a timeline: %w", time, ports.ErrInvalidRequest)
	}
	if last := t.steps[len(t.steps)-1]; time > last {
		return fmt.Errorf("set time %d past the final step %d: %w", time, last, ports.ErrInvalidRequest)
	}
	if t.started && time < t.time {
		return fmt.Errorf("from %d to %d: %w", t.time, time, ports.ErrTimeRegression)
	}

	built := make(map[string]bool)
	t.builtOrder = t.builtOrder[:0]

	for _, s := range t.series {
		s.present = nil
		next := s.cursor + 1
		if next >= len(s.bars) {
			continue
		}
		symbol := s.key.Symbol
		isMain := s.key.Timeframe == t.mainTimeframe

		if isMain && s.bars[next].Time == time {
			bar := s.bars[next]
			s.cursor = next
			s.present = s.bars[next : next+1 : next+1]
			t.emit(t.onBar, s.key, bar)
			t.setLatest(built, s.key, bar)
			continue
		}

		var acc Accumulator
		start := next
		for next < len(s.bars) && s.bars[next].Time <= time {
			acc.Push(s.bars[next])
			s.cursor = next
			t.emit(t.onBar, s.key, s.bars[next])
			next++
		}
		bar, ok := acc.Result()
		if !ok {
			continue
		}
		s.present = s.bars[start:next:next]

		// a non-main series only speaks for its symbol when nothing was
		// built for it yet this step
		if isMain || !built[symbol] {
			t.setLatest(built, s.key, bar)
		}
	}

	t.time = time
	t.started = true
	return nil
}

func (t *Timeline) setLatest(built map[string]bool, key domain.SeriesKey, bar domain.Bar) {
	if !built[key.Symbol] {
		t.builtOrder = append(t.builtOrder, key.Symbol)
	}
	built[key.Symbol] = true
	t.latest[key.Symbol] = bar
	t.emit(t.onBuilt, key, bar)
}

func (t *Timeline) emit(fns []func(BarEvent), key domain.SeriesKey, bar domain.Bar) {
	for _, fn := range fns {
		fn(BarEvent{Key: key, Bar: bar})
	}
}

// LatestBuilt returns the latest built bar of symbol. It is not necessarily
// from the current step.
func (t *Timeline) LatestBuilt(symbol string) (domain.Bar, bool) {
	bar, ok := t.latest[symbol]
	return bar, ok
}

// LatestBuiltAll returns a copy of the latest built bar per symbol.
func (t *Timeline) LatestBuiltAll() domain.BarsBySymbol {
	out := make(domain.BarsBySymbol, len(t.latest))
	for sym, bar := range t.latest {
		out[sym] = bar
	}
	return out
}

// BuiltThisStep returns the symbols that built a latest bar during the last
// SetTime, in build order.
func (t *Timeline) BuiltThisStep() []string {
	return append([]string(nil), t.builtOrder...)
}

// PastBars returns every consumed bar of key, current step included.
func (t *Timeline) PastBars(key domain.SeriesKey) []domain.Bar {
	s, ok := t.byKey[key]
	if !ok || s.cursor < 0 {
		return []domain.Bar{}
	}
	n := s.cursor + 1
	return s.bars[:n:n]
}

// PresentBars returns the bars of key consumed during the last step.
func (t *Timeline) PresentBars(key domain.SeriesKey) []domain.Bar {
	s, ok := t.byKey[key]
	if !ok || s.present == nil {
		return []domain.Bar{}
	}
	return s.present
}

// PastBarsBetween returns the consumed bars of key between the bars nearest
// to start and end, both included. Nil bounds are open.
func (t *Timeline) PastBarsBetween(key domain.SeriesKey, start, end *int64) ([]domain.Bar, error) {
	past := t.PastBars(key)
	if len(past) == 0 || (start == nil && end == nil) {
		return past, nil
	}
	first, last := 0, len(past)-1
	var err error
	if start != nil {
		if first, err = IndexNearTime(past, *start, t.maxSearch); err != nil {
			return nil, err
		}
	}
	if end != nil {
		if last, err = IndexNearTime(past, *end, t.maxSearch); err != nil {
			return nil, err
		}
	}
	if first > last {
		return []domain.Bar{}, nil
	}
	return past[first : last+1 : last+1], nil
}

// IndexAtTime returns the index of the bar of key with exactly time.
func (t *Timeline) IndexAtTime(key domain.SeriesKey, time int64) (int, bool) {
	s, ok := t.byKey[key]
	if !ok {
		return 0, false
	}
	return IndexAtTime(s.bars, time)
}

// HasSeries reports whether key is registered.
func (t *Timeline) HasSeries(key domain.SeriesKey) bool {
	_, ok := t.byKey[key]
	return ok
}

// Reset rewinds to before the first step keeping series and steps.
func (t *Timeline) Reset() {
	t.stepIndex = 0
	t.time = 0
	t.started = false
	t.builtOrder = nil
	t.latest = make(domain.BarsBySymbol)
	for _, s := range t.series {
		s.cursor = -1
		s.present = nil
	}
}
