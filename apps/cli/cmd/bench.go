package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stress"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	benchDuration   time.Duration
	benchRPS        float64
	benchVUs        int
	benchMaxVUs     int
	benchThink      time.Duration
	benchRampUp     time.Duration
	benchThresholds string
	benchQuiet      bool
)

var benchCmd = &cobra.Command{
	Use:   "bench [METHOD] <url>",
	Short: "Put an endpoint under sustained load",
	Long: `Call an endpoint under load and report latency percentiles and errors.

Load is a fixed call rate (--rps, the default) or a number of virtual users
calling back to back (--vus). Thresholds turn the run into a pass/fail check:

  p50<100ms, p95<200ms, p99<1s, max<2s   latency percentiles
  errors<1%                              share of failed envelopes
  rps>50                                 achieved throughput`,
	Example: `  hitfetch bench https://api.example.com/health --rps 50 --duration 30s
  hitfetch bench /search -q q=go --vus 20 --think 100ms --ramp-up 10s
  hitfetch bench POST /orders -d @order.json --rps 10 --threshold "p95<300ms,errors<1%"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: benchCommand,
}

func init() {
	f := benchCmd.Flags()
	f.DurationVar(&benchDuration, "duration", 30*time.Second, "How long to generate load")
	f.Float64Var(&benchRPS, "rps", 10, "Calls per second")
	f.IntVar(&benchVUs, "vus", 0, "Virtual users; switches to VU mode")
	f.IntVar(&benchMaxVUs, "max-vus", 100, "Maximum calls in flight")
	f.DurationVar(&benchThink, "think", 0, "Pause between calls per virtual user")
	f.DurationVar(&benchRampUp, "ramp-up", 0, "Raise the load linearly over this duration")
	f.StringVar(&benchThresholds, "threshold", "", `Pass/fail thresholds, e.g. "p95<200ms,errors<1%"`)
	f.BoolVar(&benchQuiet, "quiet", false, "Do not print progress")
	f.StringVarP(&dataFlag, "data", "d", "", "Request body; @file reads a file")
	f.StringArrayVarP(&queryFlags, "query", "q", nil, "Query parameter key=value (repeatable)")
	rootCmd.AddCommand(benchCmd)
}

func benchConfig() (*stress.Config, error) {
	cfg := &stress.Config{
		Mode:      stress.RateMode,
		Duration:  benchDuration,
		Rate:      benchRPS,
		MaxVUs:    benchMaxVUs,
		ThinkTime: benchThink,
		RampUp:    benchRampUp,
	}
	if benchVUs > 0 {
		cfg.Mode = stress.VUMode
		cfg.VUs = benchVUs
	}
	th, err := stress.ParseThresholds(benchThresholds)
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = th
	return cfg, cfg.Validate()
}

func benchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := benchConfig()
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	plan, err := parseRequestArgs(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	s, err := newSession(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	call := func(ctx context.Context) *http.Envelope {
		return s.client.Any(ctx, plan.method, plan.url, plan.data, http.CallQuery(plan.query))
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Benchmarking %s %s for %s (%s mode)\n", plan.method, plan.url, cfg.Duration, cfg.Mode)

	var opts []stress.RunnerOption
	if !benchQuiet {
		opts = append(opts, stress.WithProgress(func(p stress.Progress) {
			printProgress(errOut, p)
		}, time.Second))
	}

	result, err := stress.NewRunner(cfg, call, opts...).Run(ctx)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	s.formatter.FormatSummary(result.Summary)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Throughput: %.1f calls/s over %s\n", result.RPS, result.Elapsed.Round(time.Millisecond))
	printThresholds(out, result.Thresholds, s.cfg.GetNoColor())

	if !result.Passed {
		return exitWith(ExitAssertionFailure, nil)
	}
	return nil
}

func printProgress(w io.Writer, p stress.Progress) {
	fmt.Fprintf(w, "[%s/%s] %d calls, %d failed, %d in flight\n",
		p.Elapsed.Round(time.Second), p.Duration, p.Summary.TotalRequests, p.Summary.FailureCount, p.InFlight)
}

func printThresholds(w io.Writer, results []stress.ThresholdResult, noColor bool) {
	if len(results) == 0 {
		return
	}
	pass, fail := color.New(color.FgGreen), color.New(color.FgRed)
	if noColor {
		pass.DisableColor()
		fail.DisableColor()
	}
	fmt.Fprintln(w, "Thresholds:")
	for _, r := range results {
		mark := pass.Sprint("✓")
		if !r.Passed {
			mark = fail.Sprint("✗")
		}
		fmt.Fprintf(w, "  %s %-6s %s (expected %s)\n", mark, r.Name, r.Actual, r.Expected)
	}
}
