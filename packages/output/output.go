package output

import (
	"context"
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// Formatter renders envelopes, assertion results and run summaries.
// Implementations are safe for concurrent use.
type Formatter interface {
	FormatEnvelope(env *http.Envelope, results []*assertions.Result)
	FormatSummary(summary *metrics.Summary)
	FormatError(err error)
}

// New returns the formatter named by format: "console" (or empty) or "json".
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w), JSONWithBody(verbose)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console or json)", format)
	}
}

// Monitor renders every envelope with f.
func Monitor(f Formatter) http.Monitor {
	return func(_ context.Context, env *http.Envelope) error {
		f.FormatEnvelope(env, nil)
		return nil
	}
}

// formatValue formats a value for display, summarizing large values.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
