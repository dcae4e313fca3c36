// Package provider implements the HTTP clients for the public statistics
// providers. Clients return provider-native bodies tagged with their origin
// and classify every failure into the source error taxonomy.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/pkg/logger"
	"github.com/tidwall/gjson"
)

var (
	transportOnce sync.Once
	transport     *http.Transport
)

func sharedTransport() *http.Transport {
	transportOnce.Do(func() {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          32,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	})
	return transport
}

// doer performs GET requests against one provider and maps failures.
type doer struct {
	id      source.ID
	base    *url.URL
	client  *http.Client
	ua      string
	maxBody int64
	markers []string
	log     logger.Logger
}

func newDoer(id source.ID, baseURL string, o options) (*doer, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", id, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%s: base url must be absolute: %q", id, baseURL)
	}
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: o.timeout, Transport: sharedTransport()}
	}
	return &doer{
		id:      id,
		base:    base,
		client:  client,
		ua:      o.userAgent,
		maxBody: o.maxBody,
		markers: o.markers,
		log:     o.log.Named(string(id)),
	}, nil
}

// endpoint appends path segments to the base URL without dropping its path.
func (d *doer) endpoint(query url.Values, segments ...string) string {
	u := *d.base
	path := strings.TrimRight(u.Path, "/")
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	u.Path = path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get fetches endpoint and returns the body of a usable 2xx response.
func (d *doer) get(ctx context.Context, op source.Op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, source.NewError(d.id, op, source.ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", d.ua)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.transportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		return nil, d.transportError(ctx, op, err)
	}
	d.log.Debug(ctx, "provider response",
		logger.String("op", string(op)),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)))

	if int64(len(body)) > d.maxBody {
		return nil, d.statusError(op, resp.StatusCode, source.ErrMalformedResponse,
			fmt.Errorf("body exceeds %d bytes", d.maxBody))
	}
	if kind := statusKind(resp.StatusCode); kind != nil {
		return nil, d.statusError(op, resp.StatusCode, kind, nil)
	}
	if d.rateLimited(body) {
		return nil, d.statusError(op, resp.StatusCode, source.ErrRateLimited,
			errors.New("throttling marker in body"))
	}
	return body, nil
}

func (d *doer) statusError(op source.Op, status int, kind, cause error) error {
	e := source.NewError(d.id, op, kind, cause)
	e.Status = status
	return e
}

// transportError classifies a failure that produced no usable response.
// Caller cancellation is returned unwrapped so it stays terminal.
func (d *doer) transportError(ctx context.Context, op source.Op, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return source.NewError(d.id, op, source.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return source.NewError(d.id, op, source.ErrTimeout, err)
	}
	return source.NewError(d.id, op, source.ErrUnavailable, err)
}

func statusKind(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return source.ErrNotFound
	case status == http.StatusTooManyRequests:
		return source.ErrRateLimited
	case status >= 500:
		return source.ErrUnavailable
	default:
		return source.ErrMalformedResponse
	}
}

// rateLimited looks for a throttling marker. JSON objects are only checked in
// their message fields so user content cannot trigger it.
func (d *doer) rateLimited(body []byte) bool {
	if len(d.markers) == 0 {
		return false
	}
	trimmed := bytes.TrimSpace(body)
	haystack := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		r := gjson.GetManyBytes(trimmed, "message", "error")
		haystack = r[0].String() + "\n" + r[1].String()
	}
	haystack = strings.ToLower(haystack)
	for _, m := range d.markers {
		if m != "" && strings.Contains(haystack, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
