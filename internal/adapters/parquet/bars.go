package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	parquetgo "github.com/parquet-go/parquet-go"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// Compile-time interface checks.
var _ ports.BarReader = (*BarFile)(nil)
var _ ports.BarWriter = (*BarFile)(nil)

// BarRecord is the Parquet schema of one bar.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// BarFile reads and writes single-series bar files. Writes merge with the
// bars already present in the file.
type BarFile struct{}

// NewBarFile creates a BarFile codec.
func NewBarFile() *BarFile {
	return &BarFile{}
}

// ReadBars loads every bar of the file in ascending time order.
func (f *BarFile) ReadBars(_ context.Context, path string) ([]domain.Bar, error) {
	records, err := parquetgo.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading parquet bars %s: %w", path, err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})

	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		bars[i] = fromRecord(r)
	}
	return bars, nil
}

// WriteBars merges bars into the file at path, creating parent directories
// as needed. A bar replaces an existing one with the same timestamp.
func (f *BarFile) WriteBars(_ context.Context, path string, bars []domain.Bar) error {
	incoming := make([]BarRecord, len(bars))
	for i, b := range bars {
		incoming[i] = toRecord(b)
	}

	var existing []BarRecord
	if _, err := os.Stat(path); err == nil {
		existing, err = parquetgo.ReadFile[BarRecord](path)
		if err != nil {
			return fmt.Errorf("reading existing parquet bars %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquetgo.WriteFile(path, mergeBarRecords(existing, incoming)); err != nil {
		return fmt.Errorf("writing parquet bars %s: %w", path, err)
	}
	return nil
}

func toRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Timestamp: b.Time,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

func fromRecord(r BarRecord) domain.Bar {
	return domain.Bar{
		Time:   r.Timestamp,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// mergeBarRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. The result is sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
