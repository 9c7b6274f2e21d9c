package backtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// Bar file formats understood by a manifest.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// SeriesSpec points at one price series on disk.
type SeriesSpec struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	Path      string `yaml:"path"`
	Format    string `yaml:"format"` // csv or parquet, inferred from the extension when empty
	Main      bool   `yaml:"main"`
}

// ParamRange is one axis of a parameter grid search.
type ParamRange struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Step  float64 `yaml:"step"`
	IsInt bool    `yaml:"int"`
}

// Manifest describes one backtest: the series to replay, where to start and
// the strategy parameters to override. Optimize, when set, turns the run
// into a grid search over the listed ranges.
type Manifest struct {
	Name string `yaml:"name"`
	// StartTime is RFC3339 or unix milliseconds. Empty starts at the first
	// bar of the main series.
	StartTime string             `yaml:"start_time"`
	Series    []SeriesSpec       `yaml:"series"`
	Strategy  map[string]float64 `yaml:"strategy"`
	Optimize  []ParamRange       `yaml:"optimize"`

	dir string // relative series paths resolve against it
}

// LoadManifest reads and validates the YAML manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks the manifest without touching the series files.
func (m *Manifest) Validate() error {
	var errs []error
	if len(m.Series) == 0 {
		errs = append(errs, errors.New("no series listed"))
	}

	mains := 0
	seen := make(map[domain.SeriesKey]bool)
	for i, s := range m.Series {
		if s.Main {
			mains++
		}
		if s.Symbol == "" {
			errs = append(errs, fmt.Errorf("series %d has no symbol", i))
		}
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("series %d has no path", i))
		}
		tf, err := domain.ParseTimeframe(s.Timeframe)
		if err != nil {
			errs = append(errs, fmt.Errorf("series %d: %w", i, err))
		}
		if _, err := s.format(); err != nil {
			errs = append(errs, fmt.Errorf("series %d: %w", i, err))
		}
		key := domain.SeriesKey{Symbol: s.Symbol, Timeframe: tf}
		if seen[key] {
			errs = append(errs, fmt.Errorf("series %s listed twice", key))
		}
		seen[key] = true
	}
	if len(m.Series) > 0 && mains != 1 {
		errs = append(errs, fmt.Errorf("exactly one main series required, got %d", mains))
	}
	if _, err := m.StartMillis(); err != nil {
		errs = append(errs, err)
	}
	for i, r := range m.Optimize {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Errorf("optimize range %d has no name", i))
		case r.Step <= 0:
			errs = append(errs, fmt.Errorf("optimize range %s needs a positive step", r.Name))
		case r.Min > r.Max:
			errs = append(errs, fmt.Errorf("optimize range %s has min %v above max %v", r.Name, r.Min, r.Max))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ports.ErrConfigurationError, errors.Join(errs...))
	}
	return nil
}

// StartMillis returns the start time in unix milliseconds, or 0 when unset.
func (m *Manifest) StartMillis() (int64, error) {
	s := strings.TrimSpace(m.StartTime)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid start_time %q", m.StartTime)
	}
	return t.UnixMilli(), nil
}

// LoadSeries reads every series through the reader registered for its
// format and returns a run configuration without kernel settings.
func (m *Manifest) LoadSeries(ctx context.Context, readers map[string]ports.BarReader) (Config, error) {
	var cfg Config
	start, err := m.StartMillis()
	if err != nil {
		return cfg, err
	}
	cfg.StartTime = start

	for _, s := range m.Series {
		format, err := s.format()
		if err != nil {
			return cfg, err
		}
		reader, ok := readers[format]
		if !ok {
			return cfg, fmt.Errorf("no reader for %s files: %w", format, ports.ErrConfigurationError)
		}
		tf, err := domain.ParseTimeframe(s.Timeframe)
		if err != nil {
			return cfg, err
		}

		path := s.Path
		if !filepath.IsAbs(path) && m.dir != "" {
			path = filepath.Join(m.dir, path)
		}
		bars, err := reader.ReadBars(ctx, path)
		if err != nil {
			return cfg, fmt.Errorf("load %s %s: %w", s.Symbol, tf, err)
		}

		history := domain.PriceHistory{Symbol: s.Symbol, Timeframe: tf, Bars: bars}
		if err := domain.ValidateSeries(history); err != nil {
			return cfg, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
		}
		if s.Main {
			cfg.Main = history
		} else {
			cfg.Extra = append(cfg.Extra, history)
		}
	}
	return cfg, nil
}

func (s SeriesSpec) format() (string, error) {
	format := strings.ToLower(strings.TrimSpace(s.Format))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(s.Path)), ".")
	}
	switch format {
	case FormatCSV, FormatParquet:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported bar file format %q for %s", format, s.Path)
	}
}
