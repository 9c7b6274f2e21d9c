package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReader serves bars by path.
type stubReader struct {
	bars  map[string][]domain.Bar
	paths []string
}

func (s *stubReader) ReadBars(ctx context.Context, path string) ([]domain.Bar, error) {
	s.paths = append(s.paths, path)
	bars, ok := s.bars[filepath.Base(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return bars, nil
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validManifest = `
name: aapl-gm
start_time: "2022-08-21T00:00:00Z"
series:
  - symbol: AAPL
    timeframe: 1d
    path: bars/AAPL.csv
    main: true
  - symbol: GM
    timeframe: hour4
    path: bars/GM.parquet
strategy:
  short_ma_period: 5
  atr_multiplier: 1.5
optimize:
  - name: long_ma_period
    min: 20
    max: 40
    step: 10
    int: true
`

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, validManifest)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "aapl-gm", m.Name)
	require.Len(t, m.Series, 2)
	assert.True(t, m.Series[0].Main)
	assert.Equal(t, 5.0, m.Strategy["short_ma_period"])
	assert.Equal(t, 1.5, m.Strategy["atr_multiplier"])
	assert.Equal(t, []ParamRange{{Name: "long_ma_period", Min: 20, Max: 40, Step: 10, IsInt: true}}, m.Optimize)

	start, err := m.StartMillis()
	require.NoError(t, err)
	assert.Equal(t, int64(1661040000000), start)
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  bool
	}{
		{
			name: "valid with millisecond start",
			manifest: Manifest{StartTime: "1661002943915", Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true},
			}},
		},
		{name: "no series", manifest: Manifest{}, wantErr: true},
		{
			name: "no main",
			manifest: Manifest{Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.csv"},
			}},
			wantErr: true,
		},
		{
			name: "two mains",
			manifest: Manifest{Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true},
				{Symbol: "GM", Timeframe: "day", Path: "g.csv", Main: true},
			}},
			wantErr: true,
		},
		{
			name: "duplicate series",
			manifest: Manifest{Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true},
				{Symbol: "AAPL", Timeframe: "1d", Path: "b.csv"},
			}},
			wantErr: true,
		},
		{
			name: "unknown format",
			manifest: Manifest{Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.json", Main: true},
			}},
			wantErr: true,
		},
		{
			name: "bad timeframe",
			manifest: Manifest{Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "fortnight", Path: "a.csv", Main: true},
			}},
			wantErr: true,
		},
		{
			name: "bad start time",
			manifest: Manifest{StartTime: "tomorrow", Series: []SeriesSpec{
				{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true},
			}},
			wantErr: true,
		},
		{
			name: "zero optimize step",
			manifest: Manifest{
				Series:   []SeriesSpec{{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true}},
				Optimize: []ParamRange{{Name: "long_ma_period", Min: 1, Max: 2}},
			},
			wantErr: true,
		},
		{
			name: "inverted optimize range",
			manifest: Manifest{
				Series:   []SeriesSpec{{Symbol: "AAPL", Timeframe: "day", Path: "a.csv", Main: true}},
				Optimize: []ParamRange{{Name: "long_ma_period", Min: 3, Max: 2, Step: 1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestManifest_LoadSeries(t *testing.T) {
	path := writeManifest(t, validManifest)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	csv := &stubReader{bars: map[string][]domain.Bar{"AAPL.csv": dayHistory().Bars}}
	pq := &stubReader{bars: map[string][]domain.Bar{"GM.parquet": {{Time: 1, Close: 1}, {Time: 2, Close: 2}}}}

	cfg, err := m.LoadSeries(context.Background(), map[string]ports.BarReader{FormatCSV: csv, FormatParquet: pq})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Main.Symbol)
	assert.Equal(t, domain.Day, cfg.Main.Timeframe)
	assert.Len(t, cfg.Main.Bars, 7)
	require.Len(t, cfg.Extra, 1)
	assert.Equal(t, domain.Hour4, cfg.Extra[0].Timeframe)
	assert.Equal(t, int64(1661040000000), cfg.StartTime)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "bars", "AAPL.csv")}, csv.paths)
}

func TestManifest_LoadSeriesErrors(t *testing.T) {
	m := &Manifest{Series: []SeriesSpec{{Symbol: "AAPL", Timeframe: "day", Path: "AAPL.csv", Main: true}}}

	_, err := m.LoadSeries(context.Background(), map[string]ports.BarReader{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	unsorted := &stubReader{bars: map[string][]domain.Bar{"AAPL.csv": {{Time: 2}, {Time: 1}}}}
	_, err = m.LoadSeries(context.Background(), map[string]ports.BarReader{FormatCSV: unsorted})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	missing := &stubReader{}
	_, err = m.LoadSeries(context.Background(), map[string]ports.BarReader{FormatCSV: missing})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
