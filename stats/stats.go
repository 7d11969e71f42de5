// Package stats summarizes windows of feature records, column by column.
package stats

import (
	"errors"
	"fmt"
	"io"
	"math"

	mstats "github.com/montanaflynn/stats"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// ErrNonFinite is returned when a summary would contain NaN or Inf.
var ErrNonFinite = errors.New("non-finite statistic")

// Series holds one slice per feature column, oldest value first.
type Series struct {
	RTT         []float64
	PacketLoss  []float64
	ICMPRate    []float64
	TTL         []float64
	TTLVariance []float64
}

// Columns splits rows into per-feature series.
func Columns(rows []model.FeatureRecord) Series {
	s := Series{
		RTT:         make([]float64, len(rows)),
		PacketLoss:  make([]float64, len(rows)),
		ICMPRate:    make([]float64, len(rows)),
		TTL:         make([]float64, len(rows)),
		TTLVariance: make([]float64, len(rows)),
	}
	for i, r := range rows {
		s.RTT[i] = r.RTTProxyMs
		s.PacketLoss[i] = r.PacketLoss
		s.ICMPRate[i] = r.ICMPRate
		s.TTL[i] = float64(r.TTL)
		s.TTLVariance[i] = r.TTLVariance
	}
	return s
}

// Named returns the series in model.Columns order, keyed by column name.
func (s Series) Named() []NamedSeries {
	return []NamedSeries{
		{model.ColRTT, s.RTT},
		{model.ColPacketLoss, s.PacketLoss},
		{model.ColICMPRate, s.ICMPRate},
		{model.ColTTL, s.TTL},
		{model.ColTTLVariance, s.TTLVariance},
	}
}

// NamedSeries is a single labelled column.
type NamedSeries struct {
	Name   string
	Values []float64
}

// Summary describes one column.
type Summary struct {
	Mean   float64
	StdDev float64 // sample standard deviation, 0 for fewer than 2 values
	Min    float64
	Max    float64
	Last   float64
}

// Summarize computes the summary of a non-empty series.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("summarize: %w", mstats.EmptyInputErr)
	}

	var sum Summary
	var err error
	if sum.Mean, err = mstats.Mean(values); err != nil {
		return Summary{}, fmt.Errorf("mean: %w", err)
	}
	if len(values) > 1 {
		if sum.StdDev, err = mstats.StandardDeviationSample(values); err != nil {
			return Summary{}, fmt.Errorf("stddev: %w", err)
		}
	}
	if sum.Min, err = mstats.Min(values); err != nil {
		return Summary{}, fmt.Errorf("min: %w", err)
	}
	if sum.Max, err = mstats.Max(values); err != nil {
		return Summary{}, fmt.Errorf("max: %w", err)
	}
	sum.Last = values[len(values)-1]

	for _, v := range []float64{sum.Mean, sum.StdDev, sum.Min, sum.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Summary{}, ErrNonFinite
		}
	}
	return sum, nil
}

// PrintSummary writes a per-column summary table to w.
func PrintSummary(w io.Writer, s Series) error {
	fmt.Fprintln(w, "================================================================================")
	fmt.Fprintf(w, "Feature Window (%d rows)\n", len(s.RTT))
	fmt.Fprintln(w, "================================================================================")
	fmt.Fprintf(w, "%-14s %12s %12s %12s %12s %12s\n", "Column", "Mean", "StdDev", "Min", "Max", "Last")

	for _, col := range s.Named() {
		if len(col.Values) == 0 {
			fmt.Fprintf(w, "%-14s %12s %12s %12s %12s %12s\n", col.Name, "-", "-", "-", "-", "-")
			continue
		}
		sum, err := Summarize(col.Values)
		if err != nil {
			return fmt.Errorf("%s: %w", col.Name, err)
		}
		fmt.Fprintf(w, "%-14s %12.2f %12.2f %12.2f %12.2f %12.2f\n",
			col.Name, sum.Mean, sum.StdDev, sum.Min, sum.Max, sum.Last)
	}
	fmt.Fprintln(w, "================================================================================")
	return nil
}
