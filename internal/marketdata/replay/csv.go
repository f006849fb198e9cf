package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"squeezetrader/internal/model"
)

// CSV layout: time,open,high,low,close[,volume]. A header row is skipped when
// its first column does not parse as a time. Time is RFC 3339 or Unix seconds
// and marks the bar close.

// LoadCSVFile reads bars for symbol from a CSV file.
func LoadCSVFile(path, symbol string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, symbol)
}

// LoadCSV parses bars for symbol. Sequence numbers follow row order.
func LoadCSV(r io.Reader, symbol string) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("csv line %d: expected at least 5 columns, got %d", line, len(rec))
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		b := model.Bar{Symbol: symbol, Seq: int64(len(bars)), Time: ts}
		for i, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close} {
			if *dst, err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64); err != nil {
				return nil, fmt.Errorf("csv line %d column %d: %w", line, i+2, err)
			}
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d volume: %w", line, err)
			}
			b.Volume = int64(v)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
