package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/gotrade/types"
)

// LoadCSV reads candles from a CSV with a header row naming
// time|timestamp, open, high, low, close and volume. Headers are
// case-insensitive, unknown columns are ignored and rows without a time,
// open or close are skipped. The result is sorted by time.
func LoadCSV(r io.Reader) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []types.Candle
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(rec) {
				row[h] = strings.TrimSpace(rec[j])
			}
		}
		ts := first(row, "time", "timestamp", "open_time")
		op, cp := first(row, "open"), first(row, "close")
		if ts == "" || op == "" || cp == "" {
			continue
		}
		tt, err := parseTime(ts)
		if err != nil {
			continue
		}
		c := types.Candle{OpenTime: tt}
		c.Open, _ = strconv.ParseFloat(op, 64)
		c.High, _ = strconv.ParseFloat(first(row, "high"), 64)
		c.Low, _ = strconv.ParseFloat(first(row, "low"), 64)
		c.Close, _ = strconv.ParseFloat(cp, 64)
		c.Volume, _ = strconv.ParseFloat(first(row, "volume", "vol"), 64)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

// parseTime accepts RFC3339, UNIX seconds or UNIX milliseconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
