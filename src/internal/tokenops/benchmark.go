// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// DefaultBenchmarkCount is the number of /validate/check requests Benchmark
// sends by default.
const DefaultBenchmarkCount = 9

// ErrNoSamples is returned by Stats for an empty sample set.
var ErrNoSamples = errors.New("tokenops: no samples")

// BenchmarkOptions configures Benchmark.
type BenchmarkOptions struct {
	User  string
	Realm string
	Pass  string
	Count int
}

// Timing summarizes request durations in seconds.
type Timing struct {
	Median  float64
	Slowest float64
	Fastest float64
	// Stdev is the sample standard deviation; zero for a single sample.
	Stdev float64
}

// Stats computes the timing summary of samples.
func Stats(samples []float64) (Timing, error) {
	if len(samples) == 0 {
		return Timing{}, ErrNoSamples
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	n := len(sorted)

	t := Timing{Fastest: sorted[0], Slowest: sorted[n-1]}
	if n%2 == 1 {
		t.Median = sorted[n/2]
	} else {
		t.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if n > 1 {
		var sum float64
		for _, v := range sorted {
			sum += v
		}
		mean := sum / float64(n)
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		t.Stdev = math.Sqrt(sq / float64(n-1))
	}
	return t, nil
}

func seconds(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Benchmark times Count authentication requests and prints one line per
// request followed by the summary.
func (o *Ops) Benchmark(ctx context.Context, opts BenchmarkOptions) (Timing, error) {
	count := opts.Count
	if count <= 0 {
		count = DefaultBenchmarkCount
	}
	samples := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		ok, elapsed, err := o.API.ValidateCheck(ctx, opts.User, opts.Realm, opts.Pass)
		if err != nil {
			return Timing{}, fmt.Errorf("request %d: %w", i, err)
		}
		diff := elapsed.Seconds()
		o.printf("%03d : %t : %.4f\n", i, ok, diff)
		samples = append(samples, diff)
	}

	t, err := Stats(samples)
	if err != nil {
		return Timing{}, err
	}
	o.printf("The median time for one request is %s.\n", seconds(t.Median))
	o.printf("The slowest request took %s seconds.\n", seconds(t.Slowest))
	o.printf("The fastest request took %s seconds.\n", seconds(t.Fastest))
	o.printf("The standard deviation is %s seconds.\n", seconds(t.Stdev))
	return t, nil
}

// WriteTable renders the summary as a markdown table.
func (t Timing) WriteTable(w io.Writer) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Metric", "Seconds"})
	rows := [][]string{
		{"Median", fmt.Sprintf("%.4f", t.Median)},
		{"Slowest", fmt.Sprintf("%.4f", t.Slowest)},
		{"Fastest", fmt.Sprintf("%.4f", t.Fastest)},
		{"Stdev", fmt.Sprintf("%.4f", t.Stdev)},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
