package analytics

import (
	"math"
	"sort"

	"marketReplay/internal/domain"
	"marketReplay/internal/store"
)

// Results summarizes one run from the point of view of its account.
// Durations are in milliseconds of simulated time.
type Results struct {
	Steps                   int     `json:"steps"`
	StepsInPositions        int     `json:"stepsInPositions"`
	EquityStarting          float64 `json:"equityStarting"`
	EquityEnding            float64 `json:"equityEnding"`
	EquityMax               float64 `json:"equityMax"`
	EquityMin               float64 `json:"equityMin"`
	ReturnPercent           float64 `json:"returnPercent"`
	DrawdownPercentMax      float64 `json:"drawdownPercentMax"`
	DrawdownPercentAvg      float64 `json:"drawdownPercentAvg"`
	DrawdownDurationMax     int64   `json:"drawdownDurationMax"`
	CalmarRatio             float64 `json:"calmarRatio"`
	PositionDrawdownMax     float64 `json:"positionDrawdownMax"`
	PositionDrawdownAvg     float64 `json:"positionDrawdownAvg"`
	TradeCount              int     `json:"tradeCount"`
	TradeCountLong          int     `json:"tradeCountLong"`
	TradeCountShort         int     `json:"tradeCountShort"`
	WinCount                int     `json:"winCount"`
	WinCountLong            int     `json:"winCountLong"`
	WinCountShort           int     `json:"winCountShort"`
	WinPercent              float64 `json:"winPercent"`
	WinPercentLong          float64 `json:"winPercentLong"`
	WinPercentShort         float64 `json:"winPercentShort"`
	TradeProfitPercentBest  float64 `json:"tradeProfitPercentBest"`
	TradeProfitPercentWorst float64 `json:"tradeProfitPercentWorst"`
	TradeProfitPercentAvg   float64 `json:"tradeProfitPercentAvg"`
	TradeDurationAvg        float64 `json:"tradeDurationAvg"`
	TradeDurationMax        int64   `json:"tradeDurationMax"`
}

// openPosition is what the tracker needs to mark an open position.
type openPosition struct {
	symbol  string
	typ     domain.PositionType
	qty     float64
	cost    float64
	entry   float64
	extreme float64 // lowest low for LONG, highest high for SHORT
}

// Tracker computes run statistics incrementally. It is fed by the position
// and account store observers and by one OnStep call per simulation step,
// and never queries the kernel itself.
type Tracker struct {
	account domain.Account
	status  map[int64]domain.PositionStatus
	open    map[int64]*openPosition
	closes  map[string]float64 // last close per symbol
	trades  []*domain.Trade

	equityHistory []float64
	results       Results

	drawdownPercent   float64 // depth of the running equity drawdown
	drawdownStartTime int64
	inDrawdown        bool
	drawdownSum       float64
	drawdownCount     int

	positionDrawdownSum float64
	tradeDurationSum    int64
	tradeProfitSum      float64
}

// NewTracker creates a tracker for account, seeded with its current state.
func NewTracker(account domain.Account) *Tracker {
	equity := account.StartingCash - account.StartingMarginDebt
	return &Tracker{
		account: account,
		status:  make(map[int64]domain.PositionStatus),
		open:    make(map[int64]*openPosition),
		closes:  make(map[string]float64),
		results: Results{
			EquityStarting:          equity,
			EquityMax:               equity,
			EquityMin:               equity,
			EquityEnding:            equity,
			TradeProfitPercentWorst: math.Inf(1),
		},
	}
}

// OnAccount is an account store observer.
func (t *Tracker) OnAccount(ev store.Event[domain.Account]) {
	if ev.Entity == nil || ev.Entity.ID != t.account.ID {
		return
	}
	t.account = *ev.Entity
}

// OnPosition is a position store observer. It reacts to the OPEN and CLOSED
// transitions of the tracked account's positions.
func (t *Tracker) OnPosition(ev store.Event[domain.Position]) {
	p := ev.Entity
	if p == nil || p.AccountID != t.account.ID {
		return
	}
	prev := t.status[p.ID]
	t.status[p.ID] = p.Status
	if prev == p.Status {
		return
	}

	switch p.Status {
	case domain.StatusOpen:
		t.open[p.ID] = &openPosition{
			symbol:  p.Symbol,
			typ:     p.Type,
			qty:     p.Qty,
			cost:    p.Cost,
			entry:   p.EntryPrice,
			extreme: p.EntryPrice,
		}
	case domain.StatusClosed:
		t.closePosition(p)
	}
}

// OnStep records the equity of the account after a step. bars are the
// latest built bars per symbol.
func (t *Tracker) OnStep(time int64, bars domain.BarsBySymbol) {
	for symbol, bar := range bars {
		t.closes[symbol] = bar.Close
	}
	for _, op := range t.open {
		bar, ok := bars[op.symbol]
		if !ok {
			continue
		}
		if op.typ == domain.Long {
			op.extreme = math.Min(op.extreme, bar.Low)
		} else {
			op.extreme = math.Max(op.extreme, bar.High)
		}
	}

	t.results.Steps++
	if len(t.open) > 0 {
		t.results.StepsInPositions++
	}

	equity := t.Equity()
	t.equityHistory = append(t.equityHistory, equity)
	t.results.EquityEnding = equity
	if equity > t.results.EquityMax {
		t.results.EquityMax = equity
	}
	if equity < t.results.EquityMin {
		t.results.EquityMin = equity
	}

	if equity < t.results.EquityMax {
		if !t.inDrawdown {
			t.inDrawdown = true
			t.drawdownStartTime = time
		} else if d := time - t.drawdownStartTime; d > t.results.DrawdownDurationMax {
			t.results.DrawdownDurationMax = d
		}
		if t.results.EquityMax > 0 {
			dd := (t.results.EquityMax - equity) / t.results.EquityMax
			t.drawdownPercent = math.Max(t.drawdownPercent, dd)
			t.results.DrawdownPercentMax = math.Max(t.results.DrawdownPercentMax, dd)
		}
		return
	}
	t.endDrawdown()
}

func (t *Tracker) endDrawdown() {
	if !t.inDrawdown {
		return
	}
	t.drawdownSum += t.drawdownPercent
	t.drawdownCount++
	t.results.DrawdownPercentAvg = t.drawdownSum / float64(t.drawdownCount)
	t.drawdownPercent = 0
	t.inDrawdown = false
}

// Equity returns cash plus the mark-to-market of the open positions at the
// last known closes. Margin debt not backed by an open SHORT counts against
// equity.
func (t *Tracker) Equity() float64 {
	ids := make([]int64, 0, len(t.open))
	for id := range t.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var longValue, shortCost, shortValue float64
	for _, id := range ids {
		op := t.open[id]
		price, ok := t.closes[op.symbol]
		if !ok {
			price = op.entry
		}
		if op.typ == domain.Long {
			longValue += price * op.qty
		} else {
			shortCost += op.cost
			shortValue += price * op.qty
		}
	}
	return t.account.Cash - (t.account.MarginDebt - shortCost) + longValue + (shortCost - shortValue)
}

func (t *Tracker) closePosition(p *domain.Position) {
	op, wasOpen := t.open[p.ID]
	delete(t.open, p.ID)

	trade := domain.TradeFromPosition(p)
	if trade == nil {
		return
	}
	t.trades = append(t.trades, trade)

	r := &t.results
	profitPercent := trade.ProfitPercent()
	duration := p.ExitTime - p.EntryTime

	r.TradeCount++
	r.TradeProfitPercentBest = math.Max(r.TradeProfitPercentBest, profitPercent)
	r.TradeProfitPercentWorst = math.Min(r.TradeProfitPercentWorst, profitPercent)
	t.tradeProfitSum += profitPercent
	r.TradeProfitPercentAvg = t.tradeProfitSum / float64(r.TradeCount)

	win := profitPercent > 0
	if win {
		r.WinCount++
	}
	r.WinPercent = float64(r.WinCount) / float64(r.TradeCount)
	if p.Type == domain.Long {
		r.TradeCountLong++
		if win {
			r.WinCountLong++
		}
		r.WinPercentLong = float64(r.WinCountLong) / float64(r.TradeCountLong)
	} else {
		r.TradeCountShort++
		if win {
			r.WinCountShort++
		}
		r.WinPercentShort = float64(r.WinCountShort) / float64(r.TradeCountShort)
	}

	if duration > r.TradeDurationMax {
		r.TradeDurationMax = duration
	}
	t.tradeDurationSum += duration
	r.TradeDurationAvg = float64(t.tradeDurationSum) / float64(r.TradeCount)

	if wasOpen && op.entry != 0 {
		// adverse excursion while the position was held, exit price included
		extreme := op.extreme
		var dd float64
		if op.typ == domain.Long {
			extreme = math.Min(extreme, p.ExitPrice)
			dd = (op.entry - extreme) / op.entry
		} else {
			extreme = math.Max(extreme, p.ExitPrice)
			dd = (extreme - op.entry) / op.entry
		}
		t.positionDrawdownSum += dd
		r.PositionDrawdownMax = math.Max(r.PositionDrawdownMax, dd)
		r.PositionDrawdownAvg = t.positionDrawdownSum / float64(r.TradeCount)
	}
}

// Trades returns the trades closed so far in close order.
func (t *Tracker) Trades() []*domain.Trade {
	return append([]*domain.Trade(nil), t.trades...)
}

// EquityHistory returns the equity recorded after every step.
func (t *Tracker) EquityHistory() []float64 {
	return append([]float64(nil), t.equityHistory...)
}

// Results finalizes and returns the statistics. It may be called more than
// once.
func (t *Tracker) Results() Results {
	r := t.results
	if math.IsInf(r.TradeProfitPercentWorst, 1) {
		r.TradeProfitPercentWorst = 0
	}
	if r.EquityStarting != 0 {
		r.ReturnPercent = (r.EquityEnding - r.EquityStarting) / r.EquityStarting
	}
	if r.DrawdownPercentMax > 0 {
		r.CalmarRatio = r.ReturnPercent / r.DrawdownPercentMax
	}
	if t.inDrawdown {
		r.DrawdownPercentAvg = (t.drawdownSum + t.drawdownPercent) / float64(t.drawdownCount+1)
	}
	return r
}
