package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/spf13/cobra"
)

var (
	configFlag       string
	envFlag          string
	envFileFlag      string
	baseURLFlag      string
	headerFlags      []string
	timeoutFlag      string
	proxyFlag        string
	insecureFlag     bool
	noFollowFlag     bool
	rateFlag         float64
	burstFlag        int
	requestIDFlag    bool
	userFlag         string
	bearerFlag       string
	outputFlag       string
	verboseFlag      int
	noColorFlag      bool
	logLevelFlag     string
	logFormatFlag    string
	historyFlag      string
	metricsAddrFlag  string
	metricsFileFlag  string
	notifyOnFlag     string
	slackWebhookFlag string
	teamsWebhookFlag string
)

func bindGlobalFlags(c *cobra.Command) {
	f := c.PersistentFlags()

	// Config flags
	f.StringVar(&configFlag, "config", getEnvString("HITFETCH_CONFIG", ""), "Path to config file (env: HITFETCH_CONFIG)")
	f.StringVarP(&envFlag, "env", "e", getEnvString("HITFETCH_ENV", ""), "Environment section of the config file to use (env: HITFETCH_ENV)")
	f.StringVar(&envFileFlag, "env-file", getEnvString("HITFETCH_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITFETCH_ENV_FILE)")

	// Call flags
	f.StringVarP(&baseURLFlag, "base-url", "b", getEnvString("HITFETCH_BASE_URL", ""), "Base URL prepended to relative paths (env: HITFETCH_BASE_URL)")
	f.StringArrayVarP(&headerFlags, "header", "H", nil, `Default header "Name: value" (repeatable)`)
	f.StringVar(&timeoutFlag, "timeout", getEnvString("HITFETCH_TIMEOUT", ""), "Per-call timeout, 0 disables it (e.g., 30s, 1m) (env: HITFETCH_TIMEOUT)")
	f.Float64Var(&rateFlag, "rate", getEnvFloat("HITFETCH_RATE", 0), "Maximum calls per second, 0 is unlimited (env: HITFETCH_RATE)")
	f.IntVar(&burstFlag, "burst", getEnvInt("HITFETCH_BURST", 0), "Calls allowed in a burst when --rate is set (env: HITFETCH_BURST)")
	f.BoolVar(&requestIDFlag, "request-id", getEnvBool("HITFETCH_REQUEST_ID", false), "Add an X-Request-ID header to calls that lack one (env: HITFETCH_REQUEST_ID)")

	// Auth flags
	f.StringVar(&userFlag, "user", getEnvString("HITFETCH_USER", ""), "Basic auth credentials user:password (env: HITFETCH_USER)")
	f.StringVar(&bearerFlag, "bearer", getEnvString("HITFETCH_BEARER", ""), "Bearer token for every call (env: HITFETCH_BEARER)")

	// Network flags
	f.StringVar(&proxyFlag, "proxy", getEnvString("HITFETCH_PROXY", ""), "Proxy URL for HTTP requests (env: HITFETCH_PROXY)")
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITFETCH_INSECURE", false), "Disable SSL certificate validation (env: HITFETCH_INSECURE)")
	f.BoolVar(&noFollowFlag, "no-follow", getEnvBool("HITFETCH_NO_FOLLOW", false), "Do not follow redirects (env: HITFETCH_NO_FOLLOW)")

	// Output flags
	f.StringVarP(&outputFlag, "output", "o", getEnvString("HITFETCH_OUTPUT", ""), "Output format: console, json (env: HITFETCH_OUTPUT)")
	f.CountVarP(&verboseFlag, "verbose", "v", "Verbose output: show headers, body and passing checks")
	f.BoolVar(&noColorFlag, "no-color", getEnvBool("HITFETCH_NO_COLOR", false), "Disable colored output (env: HITFETCH_NO_COLOR)")
	f.StringVar(&logLevelFlag, "log-level", getEnvString("HITFETCH_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITFETCH_LOG_LEVEL)")
	f.StringVar(&logFormatFlag, "log-format", getEnvString("HITFETCH_LOG_FORMAT", ""), "Log format: text, json (env: HITFETCH_LOG_FORMAT)")

	// Recording flags
	f.StringVar(&historyFlag, "history", getEnvString("HITFETCH_HISTORY", ""), "SQLite database that records every call (env: HITFETCH_HISTORY)")
	f.StringVar(&metricsAddrFlag, "metrics-addr", getEnvString("HITFETCH_METRICS_ADDR", ""), "Serve Prometheus metrics on this address, e.g. :9090 (env: HITFETCH_METRICS_ADDR)")
	f.StringVar(&metricsFileFlag, "metrics-file", getEnvString("HITFETCH_METRICS_FILE", ""), "Write a JSON summary of all calls to this file on exit (env: HITFETCH_METRICS_FILE)")

	// Notification flags
	f.StringVar(&notifyOnFlag, "notify-on", getEnvString("HITFETCH_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: HITFETCH_NOTIFY_ON)")
	f.StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	f.StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// parseHeaders reads "Name: value" pairs.
func parseHeaders(values []string) (*http.Headers, error) {
	h := http.NewHeaders()
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", v)
		}
		h.Set(name, strings.TrimSpace(value))
	}
	return h, nil
}

// parsePairs reads "key=value" pairs, keeping their order. Repeated keys
// collect into a list.
func parsePairs(kind string, values []string) (http.Query, error) {
	var q http.Query
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid %s %q, expected key=value", kind, v)
		}
		existing, found := q.Get(key)
		switch {
		case !found:
			q = q.Set(key, value)
		case isStringList(existing):
			q = q.Set(key, append(existing.([]string), value))
		default:
			q = q.Set(key, []string{existing.(string), value})
		}
	}
	return q, nil
}

func isStringList(v any) bool {
	_, ok := v.([]string)
	return ok
}

// parseTimeout accepts Go durations and bare milliseconds.
func parseTimeout(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", s, err)
	}
	return d, nil
}

// readData returns the --data value, reading it from a file when it starts
// with "@" and from stdin for "@-".
func readData(value string) (string, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot read data: %w", err)
	}
	return string(raw), nil
}
