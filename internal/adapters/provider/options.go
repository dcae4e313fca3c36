package provider

import (
	"net/http"
	"time"

	"github.com/okian/kata/pkg/logger"
)

// Defaults shared by every client.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "kata-sync/1.0"
	DefaultMaxBodyBytes = 4 << 20
	DefaultDocumentTTL  = 30 * time.Second
)

// Option configures a provider client.
type Option func(*options)

type options struct {
	timeout     time.Duration
	userAgent   string
	maxBody     int64
	httpClient  *http.Client
	markers     []string
	documentTTL time.Duration
	log         logger.Logger
}

func defaultOptions() options {
	return options{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBody:     DefaultMaxBodyBytes,
		documentTTL: DefaultDocumentTTL,
		log:         logger.Nop(),
	}
}

// WithTimeout bounds every request. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}

// WithHTTPClient replaces the pooled HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithRateLimitMarkers adds body substrings that signal throttling on a
// successful status.
func WithRateLimitMarkers(markers ...string) Option {
	return func(o *options) {
		o.markers = append(o.markers, markers...)
	}
}

// WithDocumentTTL sets how long the stats client reuses a fetched document.
// Zero disables reuse.
func WithDocumentTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.documentTTL = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
