package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storegate/internal/platform/tracer"
	dErrors "storegate/pkg/domain-errors"
)

const (
	// DefaultTimeout bounds every outbound call, body included.
	DefaultTimeout = 50 * time.Second

	maxConnsPerHost = 100
	maxIdleConns    = 10
	idleConnTimeout = 30 * time.Second
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is an inbound call to forward. URL is the original path and query, without host.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Result is the buffered upstream response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URI        string
	Target     Target
}

// Client forwards requests to the resolved backend. TLS and plain backends use
// separate bounded connection pools.
type Client struct {
	router  *Router
	secure  HTTPDoer
	plain   HTTPDoer
	logger  *slog.Logger
	metrics *Metrics
	tracer  tracer.Tracer
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithHTTPClients replaces the pooled clients, for tests.
func WithHTTPClients(secure, plain HTTPDoer) Option {
	return func(c *Client) {
		c.secure = secure
		c.plain = plain
	}
}

// NewClient builds a client with pooled transports. When rejectInvalidCert is false,
// TLS certificate verification is disabled.
func NewClient(router *Router, rejectInvalidCert bool, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		router: router,
		secure: &http.Client{Timeout: timeout, Transport: newTransport(!rejectInvalidCert)},
		plain:  &http.Client{Timeout: timeout, Transport: newTransport(false)},
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newTransport(insecure bool) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     maxConnsPerHost,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for backends with broken certificates
	}
	return t
}

// Router exposes the backend resolution used by the client.
func (c *Client) Router() *Router {
	return c.router
}

// Do forwards req to its backend. When sink is non-nil the upstream status, headers and
// body are streamed to it as they arrive, and a response is always written to it, even
// on failure. A status over 304 is returned as a ProxyError carrying the buffered body.
func (c *Client) Do(ctx context.Context, req Request, sink http.ResponseWriter) (*Result, error) {
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	target := c.router.Resolve(header, req.URL)
	uri := BuildURI(target.Server, req.URL)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanProxyCall,
		tracer.String(tracer.AttrMethod, method),
		tracer.String(tracer.AttrTarget, target.Server),
		tracer.String(tracer.AttrAuthzClass, string(target.Authorization)),
	)
	var err error
	defer func() { span.End(err) }()

	start := time.Now()
	result, err := c.forward(ctx, method, uri, header, req.Body, sink)
	elapsed := time.Since(start)
	if result != nil {
		result.Target = target
		span.SetAttributes(tracer.Int(tracer.AttrStatus, result.StatusCode), tracer.Int(tracer.AttrBytesCopied, len(result.Body)))
	}

	status := http.StatusInternalServerError
	if result != nil {
		status = result.StatusCode
	}
	if c.metrics != nil {
		c.metrics.ObserveRequest(target.Authorization, status, elapsed)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "proxy request failed",
			"method", method,
			"uri", uri,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return result, err
	}
	c.logger.InfoContext(ctx, "proxy request",
		"method", method,
		"uri", uri,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (c *Client) forward(ctx context.Context, method, uri string, header http.Header, body []byte, sink http.ResponseWriter) (*Result, error) {
	header.Del("Accept-Encoding")
	header.Del("Host")
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, c.failed(sink, uri, http.StatusInternalServerError, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header = header

	doer := c.plain
	if strings.HasPrefix(uri, "https://") {
		doer = c.secure
	}
	resp, err := doer.Do(httpReq)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		return nil, c.failed(sink, uri, status, err)
	}
	defer resp.Body.Close()

	result := &Result{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), URI: uri}

	var buf bytes.Buffer
	if sink != nil {
		copyHeader(sink.Header(), resp.Header)
		sink.WriteHeader(resp.StatusCode)
		_, err = io.Copy(flushWriter{sink}, io.TeeReader(resp.Body, &buf))
		if c.metrics != nil {
			c.metrics.AddStreamed(buf.Len())
		}
	} else {
		_, err = buf.ReadFrom(resp.Body)
	}
	result.Body = buf.Bytes()
	if err != nil {
		return result, &dErrors.ProxyError{StatusCode: resp.StatusCode, Header: result.Header, Body: result.Body, URI: uri, Err: err}
	}

	if resp.StatusCode > http.StatusNotModified {
		return result, &dErrors.ProxyError{StatusCode: resp.StatusCode, Header: result.Header, Body: result.Body, URI: uri}
	}
	return result, nil
}

// failed answers the sink with status when nothing has been written yet.
func (c *Client) failed(sink http.ResponseWriter, uri string, status int, err error) error {
	if sink != nil {
		sink.Header().Set("Content-Type", "text/plain; charset=utf-8")
		sink.WriteHeader(status)
		_, _ = io.WriteString(sink, err.Error())
	}
	return &dErrors.ProxyError{StatusCode: status, URI: uri, Err: err}
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}

// flushWriter flushes after every write so the caller sees upstream bytes as they arrive.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}
