package strategy

import (
	"context"
	"testing"

	"marketReplay/config"
	"marketReplay/internal/backtest"
	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

// fakeClient serves a fixed bar list and fills every order at the last close.
type fakeClient struct {
	candles   []domain.Bar
	cash      float64
	positions []*domain.Position
	placed    []ports.OrderRequest
	closes    []ports.CloseRequest
}

func (f *fakeClient) last() domain.Bar { return f.candles[len(f.candles)-1] }

func (f *fakeClient) Time() int64 { return f.last().Time }

func (f *fakeClient) PlaceOrder(req ports.OrderRequest) (*domain.Position, error) {
	f.placed = append(f.placed, req)
	p := &domain.Position{
		ID:         int64(len(f.positions) + 1),
		Symbol:     req.Symbol,
		Type:       req.Type,
		Status:     domain.StatusOpen,
		OrderQty:   req.OrderQty,
		Qty:        req.OrderQty,
		EntryPrice: f.last().Close,
		Cost:       req.OrderQty * f.last().Close,
	}
	f.positions = append(f.positions, p)
	return p.Clone(), nil
}

func (f *fakeClient) CloseOrders(req ports.CloseRequest) ([]*domain.Position, error) {
	f.closes = append(f.closes, req)
	var closed []*domain.Position
	for _, p := range f.positions {
		if p.Status == domain.StatusOpen && p.Type == req.Type {
			p.Status = domain.StatusClosed
			closed = append(closed, p.Clone())
		}
	}
	return closed, nil
}

func (f *fakeClient) GetPositions(filter domain.PositionFilter) []*domain.Position {
	var out []*domain.Position
	for _, p := range f.positions {
		if p.Status == domain.StatusOpen && (filter.Type == "" || p.Type == filter.Type) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (f *fakeClient) HasPositions(filter domain.PositionFilter) bool {
	return len(f.GetPositions(filter)) > 0
}

func (f *fakeClient) GetAccount() (*domain.AccountWithPositions, error) {
	return &domain.AccountWithPositions{
		Account:   domain.Account{ID: 1, Cash: f.cash},
		Positions: f.GetPositions(domain.PositionFilter{}),
	}, nil
}

func (f *fakeClient) GetQuote(symbol string) (ports.Quote, bool) {
	if len(f.candles) == 0 {
		return ports.Quote{}, false
	}
	return ports.Quote{Bid: f.last().Close, Ask: f.last().Close, Time: f.last().Time}, true
}

func (f *fakeClient) GetCandles(q ports.CandleQuery) ([]domain.Bar, error) {
	return f.candles, nil
}

// push appends a bar with the given close one day after the previous one.
func (f *fakeClient) push(closes ...float64) {
	for _, c := range closes {
		t := int64(1661002943915)
		if len(f.candles) > 0 {
			t = f.last().Time + 86400000
		}
		f.candles = append(f.candles, domain.Bar{Time: t, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 10})
	}
}

func testStrategyConfig() Config {
	return Config{
		Symbol:        "AAPL",
		Timeframe:     domain.Day,
		ShortMAPeriod: 2,
		LongMAPeriod:  3,
		ATRPeriod:     2,
		ATRMultiplier: 1,
		RSIPeriod:     2,
		RSIOverbought: 101,
		RSIOversold:   -1,
		Sizer:         risk.SizerConfig{RiskPerTrade: 0.01, MaxPositionPct: 1},
	}
}

// step pushes closes one at a time and runs Next after each.
func step(t *testing.T, s *Strategy, c *fakeClient, closes ...float64) {
	t.Helper()
	for _, v := range closes {
		c.push(v)
		require.NoError(t, s.Next(context.Background(), domain.BarsBySymbol{"AAPL": c.last()}))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		logger  ports.Logger
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, logger: &mockLogger{}},
		{name: "nil logger", mutate: func(*Config) {}, logger: nil, wantErr: true},
		{name: "missing symbol", mutate: func(c *Config) { c.Symbol = "" }, logger: &mockLogger{}, wantErr: true},
		{name: "bad timeframe", mutate: func(c *Config) { c.Timeframe = "fortnight" }, logger: &mockLogger{}, wantErr: true},
		{name: "zero period", mutate: func(c *Config) { c.ATRPeriod = 0 }, logger: &mockLogger{}, wantErr: true},
		{name: "short not below long", mutate: func(c *Config) { c.ShortMAPeriod = 3 }, logger: &mockLogger{}, wantErr: true},
		{name: "zero multiplier", mutate: func(c *Config) { c.ATRMultiplier = 0 }, logger: &mockLogger{}, wantErr: true},
		{name: "inverted RSI bounds", mutate: func(c *Config) { c.RSIOversold = 200 }, logger: &mockLogger{}, wantErr: true},
		{name: "invalid sizer", mutate: func(c *Config) { c.Sizer.RiskPerTrade = 0 }, logger: &mockLogger{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStrategyConfig()
			tt.mutate(&cfg)
			s, err := New(cfg, tt.logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4, s.RequiredDataPoints())
		})
	}
}

func TestConfig_ApplyParams(t *testing.T) {
	cfg := testStrategyConfig()
	require.NoError(t, cfg.ApplyParams(map[string]float64{
		"short_ma_period": 5,
		"long_ma_period":  20,
		"atr_multiplier":  2.5,
		"allow_short":     1,
		"risk_per_trade":  0.02,
	}))
	assert.Equal(t, 5, cfg.ShortMAPeriod)
	assert.Equal(t, 20, cfg.LongMAPeriod)
	assert.Equal(t, 2.5, cfg.ATRMultiplier)
	assert.True(t, cfg.AllowShort)
	assert.Equal(t, 0.02, cfg.Sizer.RiskPerTrade)

	err := cfg.ApplyParams(map[string]float64{"lookback": 3})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		StrategyShortMAPeriod:  10,
		StrategyLongMAPeriod:   30,
		StrategyATRPeriod:      14,
		StrategyATRMultiplier:  2,
		StrategyRiskPerTrade:   0.01,
		StrategyMaxPositionPct: 0.25,
		StrategyMaxDrawdown:    0.3,
		StrategyRSIPeriod:      14,
		StrategyRSIOverbought:  70,
		StrategyRSIOversold:    30,
		StrategyAllowShort:     true,
	}
	cfg := FromAppConfig(app, domain.SeriesKey{Symbol: "BTCUSDT", Timeframe: domain.Hour4})

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, domain.Hour4, cfg.Timeframe)
	assert.True(t, cfg.AllowShort)
	assert.Equal(t, risk.SizerConfig{RiskPerTrade: 0.01, MaxPositionPct: 0.25, MaxDrawdown: 0.3}, cfg.Sizer)
}

func TestStrategy_CrossUpEntersLong(t *testing.T) {
	logger := &mockLogger{}
	s, err := New(testStrategyConfig(), logger)
	require.NoError(t, err)
	client := &fakeClient{cash: 10000}
	require.NoError(t, s.Init(context.Background(), client))

	step(t, s, client, 10, 10, 10)
	assert.Contains(t, logger.debugMsgs, "Not enough bars for strategy evaluation")

	step(t, s, client, 10, 13)
	require.Len(t, client.placed, 1)
	req := client.placed[0]
	assert.Equal(t, domain.Long, req.Type)
	assert.Equal(t, "AAPL", req.Symbol)
	// ATR(2) of the window is 2.25, so 1% of 10000 risks 100 over 2.25
	assert.InDelta(t, 100/2.25, req.OrderQty, 1e-9)
	require.NotNil(t, req.StopLoss)
	assert.InDelta(t, 10.75, *req.StopLoss, 1e-9)
	require.NotNil(t, req.TrailingStop)
	assert.InDelta(t, 2.25, *req.TrailingStop, 1e-9)
	assert.Nil(t, req.TakeProfit)

	// the same bar again is ignored
	require.NoError(t, s.Next(context.Background(), domain.BarsBySymbol{"AAPL": client.last()}))
	assert.Len(t, client.placed, 1)

	// a cross down closes the long; shorts are disabled
	step(t, s, client, 6)
	require.Len(t, client.closes, 1)
	assert.Equal(t, domain.Long, client.closes[0].Type)
	assert.Len(t, client.placed, 1)
	assert.False(t, client.HasPositions(domain.PositionFilter{Type: domain.Long}))
}

func TestStrategy_CrossDownEntersShort(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.AllowShort = true
	s, err := New(cfg, &mockLogger{})
	require.NoError(t, err)
	client := &fakeClient{cash: 10000}
	require.NoError(t, s.Init(context.Background(), client))

	step(t, s, client, 10, 10, 10, 10, 7)
	require.Len(t, client.placed, 1)
	assert.Equal(t, domain.Short, client.placed[0].Type)
	assert.InDelta(t, 9.25, *client.placed[0].StopLoss, 1e-9)
	assert.Empty(t, client.closes)
}

func TestStrategy_Filters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		before func(*fakeClient)
		// closes run before the crossing bar, between them the cash may change
		warm  []float64
		cross float64
		warn  bool
	}{
		{
			name:   "overbought RSI blocks long",
			mutate: func(c *Config) { c.RSIOverbought = 70 },
			warm:   []float64{10, 10, 10, 10},
			cross:  13,
		},
		{
			name:   "drawdown halts entries",
			mutate: func(c *Config) { c.Sizer.MaxDrawdown = 0.1 },
			before: func(c *fakeClient) { c.cash = 8000 },
			warm:   []float64{10, 10, 10, 10},
			cross:  13,
			warn:   true,
		},
		{
			name:   "unaffordable size",
			mutate: func(c *Config) { c.Sizer.QtyStep = 1000 },
			warm:   []float64{10, 10, 10, 10},
			cross:  13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStrategyConfig()
			tt.mutate(&cfg)
			logger := &mockLogger{}
			s, err := New(cfg, logger)
			require.NoError(t, err)
			client := &fakeClient{cash: 10000}
			require.NoError(t, s.Init(context.Background(), client))

			step(t, s, client, tt.warm[0])
			if tt.before != nil {
				tt.before(client)
			}
			step(t, s, client, tt.warm[1:]...)
			step(t, s, client, tt.cross)

			assert.Empty(t, client.placed)
			if tt.warn {
				assert.Equal(t, []string{"Drawdown limit reached, halting entries"}, logger.warnMsgs)
			}
		})
	}
}

func TestStrategy_SkipsOtherSymbols(t *testing.T) {
	s, err := New(testStrategyConfig(), &mockLogger{})
	require.NoError(t, err)
	client := &fakeClient{cash: 10000}
	require.NoError(t, s.Init(context.Background(), client))
	client.push(10, 10, 10, 10, 13)

	require.NoError(t, s.Next(context.Background(), domain.BarsBySymbol{"MSFT": client.last()}))
	assert.Empty(t, client.placed)
}

func TestStrategy_Backtest(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 11, 12, 13, 14, 15, 14, 12, 10, 8, 7, 7, 8, 9, 10}
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Time: 1661002943915 + int64(i)*86400000, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 10}
	}
	kernel := config.DefaultKernelConfig()
	kernel.StartingCash = 10000

	s, err := New(testStrategyConfig(), &mockLogger{})
	require.NoError(t, err)
	runner := backtest.NewRunner(backtest.Config{
		Kernel: kernel,
		Main:   domain.PriceHistory{Symbol: "AAPL", Timeframe: domain.Day, Bars: bars},
	}, &mockLogger{}, nil)

	res, err := runner.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, len(closes)-1, res.Run.Iterations, "the first bar is the starting step")
	require.NotEmpty(t, res.Trades)
	assert.Equal(t, domain.Long, res.Trades[0].Type)
	assert.Equal(t, 11.0, res.Trades[0].EntryPrice)
}
