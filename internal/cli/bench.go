package cli

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rushteam/inferkit/core"
)

var (
	benchModality string
	benchN        int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure inference latency on a zero input",
	Args:  cobra.NoArgs,
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&benchModality, "modality", "m", string(core.ModalityImage), "image, audio or pose")
	benchCmd.Flags().IntVarP(&benchN, "n", "n", 50, "number of inferences")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	m, err := parseModality(benchModality)
	if err != nil {
		return err
	}
	if benchN <= 0 {
		return fmt.Errorf("-n must be positive")
	}
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	adapter, err := rt.Adapter(m)
	if err != nil {
		return err
	}
	size := rt.Loaded[m].InputSize

	bar := progressbar.NewOptions(benchN,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("bench "+string(m)),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
	)
	latencies := make([]time.Duration, 0, benchN)
	modes := make(map[core.Mode]int)
	for i := 0; i < benchN; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		res, err := adapter.Infer(ctx, nil, zeroRequest(m, size))
		if err != nil {
			return err
		}
		latencies = append(latencies, time.Since(start))
		modes[res.Mode]++
		_ = bar.Add(1)
	}

	s := summarize(latencies)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d runs, mean %.2f ms, p50 %.2f ms, p95 %.2f ms\n",
		m, benchN, ms(s.mean), ms(s.p50), ms(s.p95))
	for _, mode := range []core.Mode{core.ModeModel, core.ModeOverride, core.ModeHeuristic, core.ModeFallback} {
		if n := modes[mode]; n > 0 {
			fmt.Fprintf(out, "  %-9s %d\n", mode, n)
		}
	}
	return nil
}

type latencyStats struct {
	mean, p50, p95 time.Duration
}

func summarize(latencies []time.Duration) latencyStats {
	if len(latencies) == 0 {
		return latencyStats{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return latencyStats{
		mean: total / time.Duration(len(sorted)),
		p50:  percentile(sorted, 0.50),
		p95:  percentile(sorted, 0.95),
	}
}

// percentile 取最近秩百分位，sorted 必须已升序。
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
