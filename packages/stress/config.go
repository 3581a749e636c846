// Package stress drives an endpoint with sustained load through a hitfetch
// client. Load is either a fixed call rate or a fixed number of virtual users,
// optionally ramped up, and the run is judged against latency, error-rate and
// throughput thresholds.
package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExecutionMode defines how calls are scheduled.
type ExecutionMode int

const (
	// RateMode sends calls at a constant rate (calls per second)
	RateMode ExecutionMode = iota
	// VUMode runs virtual users that call back to back with think time
	VUMode
)

func (m ExecutionMode) String() string {
	if m == VUMode {
		return "vu"
	}
	return "rate"
}

// Config holds all configuration for a stress run.
type Config struct {
	Mode       ExecutionMode
	Duration   time.Duration
	Rate       float64       // calls per second (RateMode)
	VUs        int           // number of virtual users (VUMode)
	MaxVUs     int           // max calls in flight
	ThinkTime  time.Duration // pause between calls per VU
	RampUp     time.Duration
	Thresholds Thresholds
}

// Thresholds are pass/fail criteria. Zero values are not checked.
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0.0 - 1.0
	MinRPS     float64
}

// ThresholdResult is the outcome of one threshold check.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     10,
		MaxVUs:   100,
	}
}

// Validate checks the config for the selected mode.
func (c *Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("duration must be positive")
	case c.Mode == RateMode && c.Rate <= 0:
		return fmt.Errorf("rate must be positive in rate mode")
	case c.Mode == VUMode && c.VUs <= 0:
		return fmt.Errorf("VUs must be positive in VU mode")
	case c.MaxVUs < 1:
		return fmt.Errorf("maxVUs must be at least 1")
	case c.RampUp < 0:
		return fmt.Errorf("rampUp cannot be negative")
	case c.RampUp > c.Duration:
		return fmt.Errorf("rampUp cannot exceed duration")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a list such as "p95<200ms,errors<1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}
	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	m := thresholdPattern.FindStringSubmatch(part)
	if len(m) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}
	metric, op, value := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])

	upper := op == "<" || op == "<="
	latency := func(dst *time.Duration) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, value)
		}
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		*dst = d
		return nil
	}

	switch metric {
	case "p50":
		return latency(&t.P50)
	case "p95":
		return latency(&t.P95)
	case "p99":
		return latency(&t.P99)
	case "max", "maxlatency":
		return latency(&t.MaxLatency)
	case "errors", "error", "errorrate":
		raw, percent := strings.CutSuffix(value, "%")
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", value)
		}
		if percent {
			f /= 100
		}
		if !upper {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f
	case "rps", "rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", value)
		}
		if upper {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		t.MinRPS = f
	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}
	return nil
}

// HasThresholds reports whether any threshold is set.
func (t Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}
