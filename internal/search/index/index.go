// Package index is the search index client used by the store lookups. It wraps the
// Elasticsearch REST API and hides scroll bookkeeping, envelope unwrapping and error
// translation from callers.
package index

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"storegate/internal/platform/config"
	"storegate/internal/platform/tracer"
	dErrors "storegate/pkg/domain-errors"
)

const (
	// DefaultScrollWindow is how long the server keeps a scroll context alive between pages.
	DefaultScrollWindow = 30 * time.Second

	healthWaitStatus = "yellow"
	healthTimeout    = 10 * time.Second
)

// Client issues requests against the search index.
type Client struct {
	transport    esapi.Transport
	logger       *slog.Logger
	tracer       tracer.Tracer
	scrollWindow time.Duration
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithScrollWindow overrides the scroll keep-alive window.
func WithScrollWindow(d time.Duration) Option {
	return func(c *Client) {
		c.scrollWindow = d
	}
}

// New creates a client over any esapi transport.
func New(transport esapi.Transport, opts ...Option) *Client {
	c := &Client{
		transport:    transport,
		logger:       slog.Default(),
		tracer:       tracer.NewNoop(),
		scrollWindow: DefaultScrollWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig connects to the configured hosts. TLS verification is skipped for https
// hosts when InsecureSkipVerify is set.
func NewFromConfig(cfg config.SearchConfig, opts ...Option) (*Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("at least one search host is required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if strings.HasPrefix(cfg.Hosts[0], "https") && cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // internal cluster with self-signed certs
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Hosts,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}
	return New(es, opts...), nil
}

// GetRequest addresses a single document.
type GetRequest struct {
	Index        string
	ID           string
	Fields       []string
	FullResponse bool
}

// MgetRequest addresses several documents in one index.
type MgetRequest struct {
	Index        string
	IDs          []string
	Fields       []string
	FullResponse bool
}

// SearchRequest is a query against one index. Body is marshalled as JSON.
type SearchRequest struct {
	Index        string
	Body         any
	Fields       []string
	Size         int
	From         int
	FullResponse bool
}

// Get returns the document source, or the whole envelope when FullResponse is set.
// A missing document is reported as NotFound carrying status 404.
func (c *Client) Get(ctx context.Context, req GetRequest) (json.RawMessage, error) {
	if req.Index == "" || req.ID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "index and id are required")
	}
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchGet,
		tracer.String(tracer.AttrIndex, req.Index),
		tracer.String(tracer.AttrDocID, req.ID),
	)
	var err error
	defer func() { span.End(err) }()

	start := time.Now()
	res, err := esapi.GetRequest{
		Index:          req.Index,
		DocumentID:     req.ID,
		SourceIncludes: req.Fields,
	}.Do(ctx, c.transport)
	c.logger.DebugContext(ctx, "search get finished", "index", req.Index, "id", req.ID, "elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		err = dErrors.NewUpstream(http.StatusBadGateway, "get "+req.ID, err)
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		c.logger.WarnContext(ctx, "requested id not found", "index", req.Index, "id", req.ID)
		err = notFound(req.ID)
		return nil, err
	}
	if res.IsError() {
		err = responseError(res, "get "+req.ID)
		c.logger.ErrorContext(ctx, "search get failed", "index", req.Index, "id", req.ID, "error", err)
		return nil, err
	}

	var doc Hit
	body, err := decode(res.Body, &doc)
	if err != nil {
		return nil, err
	}
	if !doc.Found {
		err = notFound(req.ID)
		return nil, err
	}
	if req.FullResponse {
		return body, nil
	}
	return doc.Source, nil
}

// Mget returns the sources of every found document, or the raw response when FullResponse is set.
func (c *Client) Mget(ctx context.Context, req MgetRequest) (json.RawMessage, error) {
	if req.Index == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "index is required")
	}
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchMget,
		tracer.String(tracer.AttrIndex, req.Index),
		tracer.Int(tracer.AttrHits, len(req.IDs)),
	)
	var err error
	defer func() { span.End(err) }()

	payload, err := encode(map[string]any{"ids": req.IDs})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := esapi.MgetRequest{
		Index:          req.Index,
		Body:           payload,
		SourceIncludes: req.Fields,
	}.Do(ctx, c.transport)
	c.logger.DebugContext(ctx, "search mget finished", "index", req.Index, "ids", len(req.IDs), "elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		err = dErrors.NewUpstream(http.StatusBadGateway, "mget", err)
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		err = responseError(res, "mget")
		c.logger.ErrorContext(ctx, "search mget failed", "index", req.Index, "error", err)
		return nil, err
	}

	var docs struct {
		Docs []Hit `json:"docs"`
	}
	body, err := decode(res.Body, &docs)
	if err != nil {
		return nil, err
	}
	if req.FullResponse {
		return body, nil
	}
	return marshal(Sources(docs.Docs))
}

// Search runs a single query. Without FullResponse the result is the hits object with
// each hit replaced by its source.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchSearch, tracer.String(tracer.AttrIndex, req.Index))
	var err error
	defer func() { span.End(err) }()

	start := time.Now()
	res, err := c.search(ctx, req, 0)
	c.logger.DebugContext(ctx, "search finished", "index", req.Index, "elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		c.logger.ErrorContext(ctx, "search failed", "index", req.Index, "error", err)
		return nil, err
	}
	if req.FullResponse {
		return res.raw, nil
	}
	span.SetAttributes(tracer.Int64(tracer.AttrTotal, int64(res.Hits.Total)))
	return marshal(SearchHits{
		Total:    int64(res.Hits.Total),
		MaxScore: res.Hits.MaxScore,
		Hits:     Sources(res.Hits.Hits),
	})
}

// Scroll enumerates every hit of the query. Pages are requested until the accumulated
// count equals the reported total or a page comes back empty. The scroll context is
// cleared on every exit path once it has been opened.
func (c *Client) Scroll(ctx context.Context, req SearchRequest) ([]json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchScroll, tracer.String(tracer.AttrIndex, req.Index))
	var err error
	defer func() { span.End(err) }()

	start := time.Now()
	var (
		all      = make([]json.RawMessage, 0)
		scrollID string
		pages    int
	)
	defer func() {
		if scrollID != "" {
			c.clearScroll(ctx, scrollID)
			span.AddEvent(tracer.EventScrollCleared)
		}
	}()

	page, err := c.search(ctx, req, c.scrollWindow)
	for {
		if err != nil {
			c.logger.ErrorContext(ctx, "scroll failed", "index", req.Index, "pages", pages, "error", err)
			return nil, err
		}
		pages++
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
		for _, hit := range page.Hits.Hits {
			if req.FullResponse {
				all = append(all, hit.raw)
			} else if len(hit.Source) > 0 {
				all = append(all, hit.Source)
			}
		}
		span.AddEvent(tracer.EventScrollPage, tracer.Int(tracer.AttrHits, len(page.Hits.Hits)))

		if int64(page.Hits.Total) == int64(len(all)) || len(page.Hits.Hits) == 0 {
			break
		}
		page, err = c.nextPage(ctx, scrollID)
	}

	span.SetAttributes(tracer.Int(tracer.AttrHits, len(all)), tracer.Int(tracer.AttrPages, pages))
	c.logger.DebugContext(ctx, "scroll finished",
		"index", req.Index,
		"hits", len(all),
		"pages", pages,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return all, nil
}

func (c *Client) search(ctx context.Context, req SearchRequest, scroll time.Duration) (*searchResponse, error) {
	if req.Index == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "index is required")
	}
	payload, err := encode(req.Body)
	if err != nil {
		return nil, err
	}
	sr := esapi.SearchRequest{
		Index:          []string{req.Index},
		Body:           payload,
		SourceIncludes: req.Fields,
		Scroll:         scroll,
	}
	if req.Size > 0 {
		sr.Size = &req.Size
	}
	if req.From > 0 {
		sr.From = &req.From
	}
	res, err := sr.Do(ctx, c.transport)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, "search "+req.Index, err)
	}
	return readSearch(res, "search "+req.Index)
}

func (c *Client) nextPage(ctx context.Context, scrollID string) (*searchResponse, error) {
	payload, err := encode(map[string]any{
		"scroll":    formatWindow(c.scrollWindow),
		"scroll_id": scrollID,
	})
	if err != nil {
		return nil, err
	}
	res, err := esapi.ScrollRequest{Body: payload}.Do(ctx, c.transport)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, "scroll", err)
	}
	return readSearch(res, "scroll")
}

func (c *Client) clearScroll(ctx context.Context, scrollID string) {
	payload, err := encode(map[string]any{"scroll_id": []string{scrollID}})
	if err != nil {
		return
	}
	res, err := esapi.ClearScrollRequest{Body: payload}.Do(context.WithoutCancel(ctx), c.transport)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to clear scroll context", "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		c.logger.WarnContext(ctx, "failed to clear scroll context", "status", res.StatusCode)
	}
}

// Suggest runs a suggest-only search and returns the suggest section of the response.
func (c *Client) Suggest(ctx context.Context, index string, suggest any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchSuggest, tracer.String(tracer.AttrIndex, index))
	var err error
	defer func() { span.End(err) }()

	res, err := c.search(ctx, SearchRequest{
		Index: index,
		Body:  map[string]any{"size": 0, "suggest": suggest},
	}, 0)
	if err != nil {
		return nil, err
	}
	if res.Suggest == nil {
		return json.RawMessage("{}"), nil
	}
	return res.Suggest, nil
}

// Index writes doc under id. An empty id lets the index assign one.
func (c *Client) Index(ctx context.Context, index, id string, doc any, refresh bool) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchWrite,
		tracer.String(tracer.AttrIndex, index),
		tracer.String(tracer.AttrDocID, id),
	)
	var err error
	defer func() { span.End(err) }()

	payload, err := encode(doc)
	if err != nil {
		return nil, err
	}
	res, err := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       payload,
		Refresh:    refreshParam(refresh),
	}.Do(ctx, c.transport)
	body, err := readWrite(res, err, "index "+id)
	return body, err
}

// Update applies a partial document to id.
func (c *Client) Update(ctx context.Context, index, id string, partial any, refresh bool) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchWrite,
		tracer.String(tracer.AttrIndex, index),
		tracer.String(tracer.AttrDocID, id),
	)
	var err error
	defer func() { span.End(err) }()

	payload, err := encode(map[string]any{"doc": partial})
	if err != nil {
		return nil, err
	}
	res, err := esapi.UpdateRequest{
		Index:      index,
		DocumentID: id,
		Body:       payload,
		Refresh:    refreshParam(refresh),
	}.Do(ctx, c.transport)
	body, err := readWrite(res, err, "update "+id)
	if dErrors.StatusCode(err) == http.StatusNotFound {
		err = notFound(id)
	}
	return body, err
}

// Delete removes id. A missing document is reported as NotFound.
func (c *Client) Delete(ctx context.Context, index, id string, refresh bool) error {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchWrite,
		tracer.String(tracer.AttrIndex, index),
		tracer.String(tracer.AttrDocID, id),
	)
	var err error
	defer func() { span.End(err) }()

	res, err := esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    refreshParam(refresh),
	}.Do(ctx, c.transport)
	_, err = readWrite(res, err, "delete "+id)
	if dErrors.StatusCode(err) == http.StatusNotFound {
		err = notFound(id)
	}
	return err
}

// Refresh makes recent writes to the indices visible to search.
func (c *Client) Refresh(ctx context.Context, indices ...string) error {
	res, err := esapi.IndicesRefreshRequest{Index: indices}.Do(ctx, c.transport)
	_, err = readWrite(res, err, "refresh")
	return err
}

// Exists reports whether id is present in index.
func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := esapi.ExistsRequest{Index: index, DocumentID: id}.Do(ctx, c.transport)
	if err != nil {
		return false, dErrors.NewUpstream(http.StatusBadGateway, "exists "+id, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return false, nil
	case res.IsError():
		return false, responseError(res, "exists "+id)
	default:
		return true, nil
	}
}

// ClusterHealth is the subset of the cluster health response callers inspect.
type ClusterHealth struct {
	ClusterName   string `json:"cluster_name"`
	Status        string `json:"status"`
	NumberOfNodes int    `json:"number_of_nodes"`
	TimedOut      bool   `json:"timed_out"`
}

// Healthy waits up to ten seconds for the cluster to reach yellow. A red cluster is an error.
func (c *Client) Healthy(ctx context.Context) (*ClusterHealth, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSearchHealth)
	var err error
	defer func() { span.End(err) }()

	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: healthWaitStatus,
		Timeout:       healthTimeout,
	}.Do(ctx, c.transport)
	if err != nil {
		err = dErrors.NewUpstream(http.StatusServiceUnavailable, "host not ready", err)
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		err = responseError(res, "host not ready")
		return nil, err
	}

	var health ClusterHealth
	if _, err = decode(res.Body, &health); err != nil {
		return nil, err
	}
	if health.Status == "red" {
		err = dErrors.NewUpstream(http.StatusServiceUnavailable, "host not ready", nil)
		return &health, err
	}
	return &health, nil
}

// IsHealthy is Healthy reduced to a boolean.
func (c *Client) IsHealthy(ctx context.Context) bool {
	_, err := c.Healthy(ctx)
	return err == nil
}

// Health adapts Healthy to the readiness check signature.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.Healthy(ctx)
	return err
}

func notFound(id string) error {
	return dErrors.Wrap(
		dErrors.NewUpstream(http.StatusNotFound, fmt.Sprintf("requested id %q not found", id), nil),
		dErrors.CodeNotFound,
		fmt.Sprintf("requested id %q not found", id),
	)
}

func refreshParam(refresh bool) string {
	if refresh {
		return "true"
	}
	return ""
}

func formatWindow(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func encode(v any) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidArgument, "encode search body")
	}
	return &buf, nil
}

func marshal(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}

func decode(r io.Reader, dst any) (json.RawMessage, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, "read search response", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, "decode search response", err)
	}
	return body, nil
}

func readSearch(res *esapi.Response, op string) (*searchResponse, error) {
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, op)
	}
	var sr searchResponse
	raw, err := decode(res.Body, &sr)
	if err != nil {
		return nil, err
	}
	sr.raw = raw
	return &sr, nil
}

func readWrite(res *esapi.Response, err error, op string) (json.RawMessage, error) {
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, op)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, op, err)
	}
	return body, nil
}

func responseError(res *esapi.Response, op string) error {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(res.Body)
	msg := op
	if json.Unmarshal(body, &e) == nil && e.Error.Reason != "" {
		msg = fmt.Sprintf("%s: %s: %s", op, e.Error.Type, e.Error.Reason)
	}
	return dErrors.NewUpstream(res.StatusCode, msg, nil)
}
