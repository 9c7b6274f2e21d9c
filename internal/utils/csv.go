package utils

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

var csvHeader = []string{"time", "open", "high", "low", "close", "volume"}

var _ ports.BarReader = (*BarCSV)(nil)
var _ ports.BarWriter = (*BarCSV)(nil)

// BarCSV adapts ReadBarsCSV and WriteBarsCSV to the bar file ports.
type BarCSV struct{}

func (BarCSV) ReadBars(_ context.Context, path string) ([]domain.Bar, error) {
	return ReadBarsCSV(path)
}

func (BarCSV) WriteBars(_ context.Context, path string, bars []domain.Bar) error {
	return WriteBarsCSV(bars, path)
}

// WriteBarsCSV writes bars to filename with a time,open,high,low,close,volume
// header. Times are unix milliseconds.
func WriteBarsCSV(bars []domain.Bar, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			strconv.FormatInt(b.Time, 10),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsCSV reads a bar file written by WriteBarsCSV. The header row is
// optional, the volume column may be omitted, and the time column accepts
// unix milliseconds or RFC3339.
func ReadBarsCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bars, err := parseBarsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return bars, nil
}

func parseBarsCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []domain.Bar
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0]) {
			continue
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 columns, got %d", line, len(record))
		}

		bar := domain.Bar{}
		if bar.Time, err = parseBarTime(record[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		for i, dst := range values {
			if i+1 >= len(record) {
				break
			}
			if *dst, err = strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, csvHeader[i+1], err)
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid bar time %q", s)
	}
	return t.UnixMilli(), nil
}
