// Package config defines service configuration and its defaults.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RequestTimeoutMS bounds every outbound provider request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// MinIntervalMS is the minimum spacing between two calls to the same provider.
	MinIntervalMS int `koanf:"min_interval_ms"`

	// SubmissionLimit bounds the recent submissions fetched per sync.
	SubmissionLimit int `koanf:"submission_limit"`

	// ProviderOrder lists provider ids in failover order, comma separated.
	ProviderOrder string `koanf:"provider_order"`

	// AlfaBaseURL and StatsBaseURL point at the two statistics providers.
	AlfaBaseURL  string `koanf:"alfa_base_url"`
	StatsBaseURL string `koanf:"stats_base_url"`

	// UserAgent identifies this service to providers.
	UserAgent string `koanf:"user_agent"`

	// RateLimitMarkers lists extra response messages, comma separated, that
	// mean a provider is throttling even though it answered 200.
	RateLimitMarkers string `koanf:"rate_limit_markers"`

	// QueueSize bounds the background sync queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of background sync workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the in-flight username set.
	DedupeSize int `koanf:"dedupe_size"`

	// OTelEndpoint enables OTLP trace export when non-empty.
	OTelEndpoint string `koanf:"otel_endpoint"`
	OTelEnabled  bool   `koanf:"otel_enabled"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		RequestTimeoutMS: 10_000,
		MinIntervalMS:    1_000,
		SubmissionLimit:  10,
		ProviderOrder:    "alfa,stats",
		AlfaBaseURL:      "https://alfa-leetcode-api.onrender.com",
		StatsBaseURL:     "https://leetcode-api-faisalshohag.vercel.app",
		UserAgent:        "kata-sync/1.0",
		QueueSize:        1_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       10_000,
		OTelEnabled:      true,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// MinInterval returns MinIntervalMS as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Markers splits RateLimitMarkers into trimmed, non-empty messages.
func (c *Config) Markers() []string {
	var out []string
	for _, m := range strings.Split(c.RateLimitMarkers, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Providers splits ProviderOrder into trimmed, non-empty ids.
func (c *Config) Providers() []string {
	var out []string
	for _, p := range strings.Split(c.ProviderOrder, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
