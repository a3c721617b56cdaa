package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in       string
		endpoint string
		insecure bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://collector:4317", "collector:4317", true},
		{"https://otel.example.com:443/", "otel.example.com:443", false},
		{" collector:4317 ", "collector:4317", true},
	}

	for _, tc := range cases {
		endpoint, insecure := parseEndpoint(tc.in)
		assert.Equal(t, tc.endpoint, endpoint, tc.in)
		assert.Equal(t, tc.insecure, insecure, tc.in)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	cfg = Config{Environment: "production"}.withDefaults()
	assert.Equal(t, 0.1, cfg.SampleRatio)

	cfg = Config{Environment: "production", SampleRatio: 0.5}.withDefaults()
	assert.Equal(t, 0.5, cfg.SampleRatio)

	cfg = Config{Environment: "staging", SampleRatio: 3}.withDefaults()
	assert.Equal(t, 0.1, cfg.SampleRatio)
}

func TestPipelineViewsCoverDurationHistograms(t *testing.T) {
	assert.Len(t, pipelineViews(), 3)
}
