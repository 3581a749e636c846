package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/spf13/cobra"
)

var (
	intervalFlag  time.Duration
	countFlag     int
	noReloadFlag  bool
	watchRampFlag time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [METHOD] <url>",
	Short: "Call an endpoint repeatedly until interrupted",
	Long: `Call an endpoint on an interval and print every envelope. Press Ctrl+C to
stop; a summary of all calls is printed on exit.

The config file is watched and applied while running: base URL, default
headers, timeout and rate limit changes take effect on the next call.
Combine with --slack-webhook or --teams-webhook to be told when the endpoint
starts failing and when it recovers.`,
	Example: `  hitfetch watch https://api.example.com/health --interval 10s
  hitfetch watch /health --count 5 --expect 'status == 200'
  hitfetch watch /health --interval 30s --slack-webhook $SLACK_WEBHOOK --notify-on recovery`,
	Args: cobra.RangeArgs(1, 2),
	RunE: watchCommand,
}

func init() {
	f := watchCmd.Flags()
	f.DurationVarP(&intervalFlag, "interval", "i", 5*time.Second, "Time between calls")
	f.IntVarP(&countFlag, "count", "n", 0, "Stop after this many calls, 0 runs until interrupted")
	f.BoolVar(&noReloadFlag, "no-reload", false, "Do not apply config file changes while running")
	f.DurationVar(&watchRampFlag, "ramp-up", 0, "Raise the --rate limit gradually over this duration")
	f.StringVarP(&dataFlag, "data", "d", "", "Request body; @file reads a file")
	f.StringArrayVarP(&queryFlags, "query", "q", nil, "Query parameter key=value (repeatable)")
	f.StringArrayVar(&expectFlags, "expect", nil, `Check every envelope, e.g. "status == 200" (repeatable)`)
}

func watchCommand(cmd *cobra.Command, args []string) error {
	if intervalFlag <= 0 {
		return exitWith(ExitUsageError, errors.New("--interval must be positive"))
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

	if !noReloadFlag && s.configPath != "" {
		go s.watchConfig(ctx)
	}
	if watchRampFlag > 0 && s.limiter != nil {
		go s.limiter.RampUp(ctx, watchRampFlag, watchRampFlag/10)
	}

	assertionFailures := 0
	call := func() {
		env := s.client.Any(ctx, plan.method, plan.url, plan.data, http.CallQuery(plan.query))
		if env.Problem == http.ProblemCancel {
			return
		}
		results, checkErr := assertions.Check(env, plan.expects, assertions.WithBaseDir("."))
		if checkErr != nil {
			assertionFailures++
		}
		s.formatter.FormatEnvelope(env, results)
	}

	ticker := time.NewTicker(intervalFlag)
	defer ticker.Stop()

loop:
	for calls := 1; ; calls++ {
		call()
		if countFlag > 0 && calls >= countFlag {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	summary := s.collector.Summary()
	s.formatter.FormatSummary(summary)

	switch {
	case summary.FailureCount > 0:
		return exitWith(ExitRequestFailure, nil)
	case assertionFailures > 0:
		return exitWith(ExitAssertionFailure, nil)
	}
	return nil
}

func (s *session) watchConfig(ctx context.Context) {
	s.logger.Debug("watching config", "path", s.configPath)
	err := config.Watch(ctx, s.configPath, func(cfg *config.Config, err error) {
		if err != nil {
			s.logger.Warn("config reload failed", "error", err)
			return
		}
		if err := applyFlags(cfg); err != nil {
			s.logger.Warn("config reload failed", "error", err)
			return
		}
		s.reload(cfg)
	})
	if err != nil {
		s.logger.Warn("config watch stopped", "error", err)
	}
}
