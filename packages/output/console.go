package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/fatih/color"
)

const maxBodyBytes = 4096

type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool

	green, red, yellow, cyan, bold func(a ...any) string
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}

	paint := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if f.noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	f.green = paint(color.FgGreen)
	f.red = paint(color.FgRed)
	f.yellow = paint(color.FgYellow)
	f.cyan = paint(color.FgCyan)
	f.bold = paint(color.Bold)
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatEnvelope(env *http.Envelope, results []*assertions.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	failed := !env.OK
	for _, r := range results {
		if !r.Passed {
			failed = true
		}
	}

	symbol := f.green("✓")
	if failed {
		symbol = f.red("✗")
	}

	outcome := f.green(fmt.Sprintf("%d %s", env.Status, env.StatusText))
	switch {
	case env.Status == 0:
		outcome = f.red(env.Problem.String())
	case !env.OK:
		outcome = f.yellow(fmt.Sprintf("%d %s", env.Status, env.StatusText))
	}

	fmt.Fprintf(f.writer, "%s %s %s %s %s\n", symbol, f.bold(env.Method()), env.URL, outcome,
		f.cyan(fmt.Sprintf("(%dms)", env.DurationMs())))

	if env.OriginalError != nil && env.Status == 0 {
		fmt.Fprintf(f.writer, "  %s %v\n", f.red("→"), env.OriginalError)
	}

	if f.verbose && env.Status != 0 {
		f.writeHeaders(env.Headers)
		f.writeBody(env)
	}

	for _, r := range results {
		if r.Passed {
			if f.verbose {
				fmt.Fprintf(f.writer, "  %s %s %s %s\n", f.green("✓"), r.Subject, r.Operator, formatValue(r.Expected, 100))
			}
			continue
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", f.red("→"), r.Subject, r.Operator)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(r.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(r.Actual, 100))
		if r.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", r.Message)
		}
	}
}

func (f *ConsoleFormatter) writeHeaders(h *http.Headers) {
	keys := h.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.writer, "  %s: %s\n", f.cyan(k), h.Get(k))
	}
}

func (f *ConsoleFormatter) writeBody(env *http.Envelope) {
	if len(env.Body) == 0 {
		return
	}
	body := env.Body
	if env.IsJSON() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "  ", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	truncated := len(body) > maxBodyBytes
	if truncated {
		body = body[:maxBodyBytes]
	}
	fmt.Fprintf(f.writer, "\n  %s\n", strings.TrimRight(string(body), "\n"))
	if truncated {
		fmt.Fprintf(f.writer, "  %s\n", f.yellow(fmt.Sprintf("... (%d bytes total)", len(env.Body))))
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatSummary(s *metrics.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.writer, "\nRequests: ")
	if s.SuccessCount > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.green(fmt.Sprintf("%d ok", s.SuccessCount)))
	}
	if s.FailureCount > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.red(fmt.Sprintf("%d failed", s.FailureCount)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.TotalRequests)
	if s.TotalRequests > 0 {
		fmt.Fprintf(f.writer, "Latency:  min %.1fms  avg %.1fms  p50 %.1fms  p95 %.1fms  p99 %.1fms  max %.1fms\n",
			s.MinDurationMs, s.AvgDurationMs, s.P50DurationMs, s.P95DurationMs, s.P99DurationMs, s.MaxDurationMs)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s %v\n", f.red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s %s\n", f.bold("hitfetch"), version)
}
