package stress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, RateMode, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, float64(10), cfg.Rate)
	assert.Equal(t, 100, cfg.MaxVUs)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"valid VU mode", &Config{Mode: VUMode, Duration: time.Second, VUs: 5, MaxVUs: 10}, ""},
		{"zero duration", &Config{Mode: RateMode, Rate: 1, MaxVUs: 1}, "duration"},
		{"zero rate", &Config{Mode: RateMode, Duration: time.Second, MaxVUs: 1}, "rate"},
		{"zero VUs", &Config{Mode: VUMode, Duration: time.Second, MaxVUs: 1}, "VUs"},
		{"no slots", &Config{Mode: RateMode, Duration: time.Second, Rate: 1}, "maxVUs"},
		{"negative ramp", &Config{Mode: RateMode, Duration: time.Second, Rate: 1, MaxVUs: 1, RampUp: -1}, "negative"},
		{"ramp too long", &Config{Mode: RateMode, Duration: time.Second, Rate: 1, MaxVUs: 1, RampUp: time.Minute}, "exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	th, err := ParseThresholds("p50<50ms, p95<=200ms,p99<1s,max<2s,errors<1%,rps>=25")
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, th.P50)
	assert.Equal(t, 200*time.Millisecond, th.P95)
	assert.Equal(t, time.Second, th.P99)
	assert.Equal(t, 2*time.Second, th.MaxLatency)
	assert.InDelta(t, 0.01, th.ErrorRate, 1e-9)
	assert.Equal(t, 25.0, th.MinRPS)
	assert.True(t, th.HasThresholds())

	th, err = ParseThresholds("errors<0.05")
	require.NoError(t, err)
	assert.InDelta(t, 0.05, th.ErrorRate, 1e-9)

	th, err = ParseThresholds("")
	require.NoError(t, err)
	assert.False(t, th.HasThresholds())
}

func TestParseThresholds_Errors(t *testing.T) {
	for _, in := range []string{
		"p95",
		"p95<soon",
		"p95>200ms",
		"errors>1%",
		"errors<lots",
		"rps<10",
		"rps>many",
		"latency<1s",
	} {
		_, err := ParseThresholds(in)
		assert.Error(t, err, in)
	}
}

func TestExecutionMode_String(t *testing.T) {
	assert.Equal(t, "rate", RateMode.String())
	assert.Equal(t, "vu", VUMode.String())
}
