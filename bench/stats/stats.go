// Package stats summarises latency samples for the bench tools.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// Summary of a latency sample in milliseconds.
type Summary struct {
	Count       int
	TrimmedMean float64
	P50         float64
	P90         float64
	P99         float64
}

func (s Summary) String() string {
	return fmt.Sprintf("count=%d trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f",
		s.Count, s.TrimmedMean, s.P50, s.P90, s.P99)
}

// Summarize sorts data in place and trims trimPercent from both ends
// before computing the mean.
func Summarize(data []float64, trimPercent float64) Summary {
	sort.Float64s(data)
	return Summary{
		Count:       len(data),
		TrimmedMean: trimmedMean(data, trimPercent),
		P50:         Percentile(data, 50),
		P90:         Percentile(data, 90),
		P99:         Percentile(data, 99),
	}
}

func trimmedMean(sorted []float64, trimPercent float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	trim := int(float64(len(sorted)) * trimPercent / 100.0)
	if trim*2 >= len(sorted) {
		trim = len(sorted) / 2
	}
	kept := sorted[trim : len(sorted)-trim]
	if len(kept) == 0 {
		return sorted[len(sorted)/2]
	}
	var sum float64
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept))
}

// Percentile interpolates the p-th percentile of sorted data.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
}

// WriteCSV stores one latency per row.
func WriteCSV(path string, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"latency_ms"}); err != nil {
		return err
	}
	for _, v := range data {
		if err := w.Write([]string{fmt.Sprintf("%.3f", v)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
