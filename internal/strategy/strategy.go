package strategy

import (
	"context"
	"fmt"

	"marketReplay/config"
	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/risk"
	"marketReplay/internal/strategy/indicators"
)

// Config holds parameters for the trading strategy.
type Config struct {
	Symbol    string
	Timeframe domain.Timeframe

	ShortMAPeriod int                          // e.g., 10
	LongMAPeriod  int                          // e.g., 30
	MAType        indicators.MovingAverageType // SMA when empty
	ATRPeriod     int                          // e.g., 14
	ATRMultiplier float64                      // stop and trailing distance in ATRs
	RSIPeriod     int                          // e.g., 14
	RSIOverbought float64                      // e.g., 70.0, blocks long entries
	RSIOversold   float64                      // e.g., 30.0, blocks short entries
	AllowShort    bool

	Sizer risk.SizerConfig
}

// FromAppConfig builds the strategy configuration for the series key from
// the application settings.
func FromAppConfig(cfg *config.Config, key domain.SeriesKey) Config {
	return Config{
		Symbol:        key.Symbol,
		Timeframe:     key.Timeframe,
		ShortMAPeriod: cfg.StrategyShortMAPeriod,
		LongMAPeriod:  cfg.StrategyLongMAPeriod,
		ATRPeriod:     cfg.StrategyATRPeriod,
		ATRMultiplier: cfg.StrategyATRMultiplier,
		RSIPeriod:     cfg.StrategyRSIPeriod,
		RSIOverbought: cfg.StrategyRSIOverbought,
		RSIOversold:   cfg.StrategyRSIOversold,
		AllowShort:    cfg.StrategyAllowShort,
		Sizer: risk.SizerConfig{
			RiskPerTrade:   cfg.StrategyRiskPerTrade,
			MaxPositionPct: cfg.StrategyMaxPositionPct,
			MaxDrawdown:    cfg.StrategyMaxDrawdown,
		},
	}
}

// Validate checks the strategy parameters.
func (c Config) Validate() error {
	switch {
	case c.Symbol == "":
		return fmt.Errorf("strategy symbol is required: %w", ports.ErrConfigurationError)
	case c.Timeframe.Duration() == 0:
		return fmt.Errorf("strategy timeframe %q is invalid: %w", c.Timeframe, ports.ErrConfigurationError)
	case c.ShortMAPeriod <= 0 || c.LongMAPeriod <= 0 || c.ATRPeriod <= 0 || c.RSIPeriod <= 0:
		return fmt.Errorf("strategy periods must be positive: %w", ports.ErrConfigurationError)
	case c.ShortMAPeriod >= c.LongMAPeriod:
		return fmt.Errorf("short MA period %d must be less than long MA period %d: %w",
			c.ShortMAPeriod, c.LongMAPeriod, ports.ErrConfigurationError)
	case c.ATRMultiplier <= 0:
		return fmt.Errorf("ATR multiplier must be positive: %w", ports.ErrConfigurationError)
	case c.RSIOversold >= c.RSIOverbought:
		return fmt.Errorf("RSI oversold %v must be below overbought %v: %w",
			c.RSIOversold, c.RSIOverbought, ports.ErrConfigurationError)
	}
	if err := c.Sizer.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	return nil
}

// ApplyParams overrides numeric parameters by name, as found in a run
// manifest or an optimizer grid.
func (c *Config) ApplyParams(params map[string]float64) error {
	for name, v := range params {
		switch name {
		case "short_ma_period":
			c.ShortMAPeriod = int(v)
		case "long_ma_period":
			c.LongMAPeriod = int(v)
		case "atr_period":
			c.ATRPeriod = int(v)
		case "atr_multiplier":
			c.ATRMultiplier = v
		case "rsi_period":
			c.RSIPeriod = int(v)
		case "rsi_overbought":
			c.RSIOverbought = v
		case "rsi_oversold":
			c.RSIOversold = v
		case "allow_short":
			c.AllowShort = v != 0
		case "risk_per_trade":
			c.Sizer.RiskPerTrade = v
		case "max_position_pct":
			c.Sizer.MaxPositionPct = v
		case "max_drawdown":
			c.Sizer.MaxDrawdown = v
		case "qty_step":
			c.Sizer.QtyStep = v
		default:
			return fmt.Errorf("unknown strategy parameter %q: %w", name, ports.ErrConfigurationError)
		}
	}
	return nil
}

var _ ports.Strategy = (*Strategy)(nil)

// Strategy trades moving average crossovers of one series. Entries carry an
// ATR stop loss and an ATR trailing stop and are sized by a risk.Sizer. An
// opposite crossover closes the open side.
type Strategy struct {
	cfg    Config
	logger ports.Logger

	fast  *indicators.MovingAverage
	slow  *indicators.MovingAverage
	atr   *indicators.ATR
	rsi   *indicators.RSI
	sizer *risk.Sizer

	client   ports.Client
	lastTime int64
	halted   bool
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MAType == "" {
		cfg.MAType = indicators.SimpleMovingAverage
	}
	sizer, err := risk.NewSizer(cfg.Sizer)
	if err != nil {
		return nil, err
	}
	return &Strategy{
		cfg:    cfg,
		logger: logger,
		fast: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ShortMAPeriod},
			Type:            cfg.MAType,
		}),
		slow: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongMAPeriod},
			Type:            cfg.MAType,
		}),
		atr: indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ATRPeriod}}),
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		}),
		sizer: sizer,
	}, nil
}

// RequiredDataPoints returns the number of bars the indicators look at. The
// long MA needs one extra bar to detect a crossover.
func (s *Strategy) RequiredDataPoints() int {
	return max(s.cfg.LongMAPeriod+1, s.atr.RequiredDataPoints(), s.rsi.RequiredDataPoints())
}

func (s *Strategy) Init(ctx context.Context, client ports.Client) error {
	s.client = client
	s.lastTime = 0
	s.halted = false
	s.logger.Info(ctx, "Strategy initialized", map[string]interface{}{
		"symbol":    s.cfg.Symbol,
		"timeframe": s.cfg.Timeframe,
		"shortMA":   s.cfg.ShortMAPeriod,
		"longMA":    s.cfg.LongMAPeriod,
		"required":  s.RequiredDataPoints(),
	})
	return nil
}

// Next evaluates the strategy once per new bar of its series. Steps that do
// not advance the series are ignored.
func (s *Strategy) Next(ctx context.Context, bars domain.BarsBySymbol) error {
	if _, ok := bars[s.cfg.Symbol]; !ok {
		return nil
	}
	candles, err := s.client.GetCandles(ports.CandleQuery{Symbol: s.cfg.Symbol, Timeframe: s.cfg.Timeframe})
	if err != nil {
		return fmt.Errorf("get candles of %s: %w", s.cfg.Symbol, err)
	}
	if len(candles) == 0 {
		return nil
	}
	last := candles[len(candles)-1]
	if last.Time <= s.lastTime {
		return nil
	}
	s.lastTime = last.Time

	if err := s.trackDrawdown(ctx); err != nil {
		return err
	}

	need := s.RequiredDataPoints()
	if len(candles) < need {
		s.logger.Debug(ctx, "Not enough bars for strategy evaluation",
			map[string]interface{}{"available": len(candles), "required": need})
		return nil
	}
	window := candles[len(candles)-need:]

	fast, err := s.fast.Series(window)
	if err != nil {
		return err
	}
	slow, err := s.slow.Series(window)
	if err != nil {
		return err
	}
	atr, err := s.atr.Calculate(ctx, window)
	if err != nil {
		return err
	}
	rsi, err := s.rsi.Calculate(ctx, window)
	if err != nil {
		return err
	}

	f, sl := len(fast)-1, len(slow)-1
	switch indicators.Crossover(fast[f-1], slow[sl-1], fast[f], slow[sl]) {
	case indicators.CrossUp:
		return s.onCross(ctx, domain.Long, last, atr, rsi)
	case indicators.CrossDown:
		return s.onCross(ctx, domain.Short, last, atr, rsi)
	default:
		return nil
	}
}

// onCross closes the side opposite to side and opens side when the filters
// allow it.
func (s *Strategy) onCross(ctx context.Context, side domain.PositionType, bar domain.Bar, atr, rsi float64) error {
	opposite := domain.Short
	if side == domain.Short {
		opposite = domain.Long
	}
	if s.client.HasPositions(domain.PositionFilter{Symbol: s.cfg.Symbol, Type: opposite, Status: domain.FilterOpenPending}) {
		closed, err := s.client.CloseOrders(ports.CloseRequest{Symbol: s.cfg.Symbol, Type: opposite})
		if err != nil {
			return fmt.Errorf("close %s positions: %w", opposite, err)
		}
		s.logger.Info(ctx, "Closed positions on crossover", map[string]interface{}{
			"symbol": s.cfg.Symbol,
			"type":   opposite,
			"count":  len(closed),
			"price":  bar.Close,
		})
	}

	if side == domain.Short && !s.cfg.AllowShort {
		return nil
	}
	if s.client.HasPositions(domain.PositionFilter{Symbol: s.cfg.Symbol, Type: side, Status: domain.FilterOpenPending}) {
		return nil
	}
	if (side == domain.Long && s.rsi.IsOverbought(rsi)) || (side == domain.Short && s.rsi.IsOversold(rsi)) {
		s.logger.Debug(ctx, "Entry blocked by RSI", map[string]interface{}{"side": side, "rsi": rsi})
		return nil
	}
	if s.halted {
		s.logger.Debug(ctx, "Entry blocked by drawdown", map[string]interface{}{"side": side})
		return nil
	}

	account, err := s.client.GetAccount()
	if err != nil {
		return err
	}
	distance := atr * s.cfg.ATRMultiplier
	qty := s.sizer.PositionSize(account.Cash, bar.Close, distance)
	if qty <= 0 {
		s.logger.Debug(ctx, "Position size is zero", map[string]interface{}{
			"cash":     account.Cash,
			"price":    bar.Close,
			"distance": distance,
		})
		return nil
	}

	stopLoss := s.sizer.StopLoss(bar.Close, distance, side)
	p, err := s.client.PlaceOrder(ports.OrderRequest{
		Symbol:       s.cfg.Symbol,
		Type:         side,
		OrderQty:     qty,
		StopLoss:     &stopLoss,
		TrailingStop: &distance,
	})
	if err != nil {
		return fmt.Errorf("place %s order: %w", side, err)
	}

	s.logger.Info(ctx, "Trade entry conditions met", map[string]interface{}{
		"positionId": p.ID,
		"side":       side,
		"qty":        qty,
		"price":      bar.Close,
		"stopLoss":   stopLoss,
		"trailing":   distance,
		"atr":        atr,
		"rsi":        rsi,
	})
	return nil
}

// trackDrawdown marks the account to the current quotes and halts new
// entries once the sizer reports too deep a drawdown.
func (s *Strategy) trackDrawdown(ctx context.Context) error {
	account, err := s.client.GetAccount()
	if err != nil {
		return err
	}
	equity := s.equity(account)
	err = s.sizer.CheckDrawdown(equity)
	if err != nil && !s.halted {
		s.logger.Warn(ctx, "Drawdown limit reached, halting entries", map[string]interface{}{
			"equity": equity,
			"error":  err.Error(),
		})
	}
	s.halted = err != nil
	return nil
}

// equity is cash plus the value of the open longs plus the open profit of
// the shorts. Positions without a quote are marked at their entry price.
func (s *Strategy) equity(account *domain.AccountWithPositions) float64 {
	equity := account.Cash
	for _, p := range account.Positions {
		if p.Status != domain.StatusOpen {
			continue
		}
		mark := p.EntryPrice
		if q, ok := s.client.GetQuote(p.Symbol); ok {
			mark = q.Bid
		}
		value := p.Qty * mark
		if p.Type == domain.Long {
			equity += value
		} else {
			equity += p.Cost - value
		}
	}
	return equity
}
