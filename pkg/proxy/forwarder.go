package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/httputil"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/metrics"
	"github.com/carbonmock/carbon/pkg/mock"
)

// Failure kinds. Use errors.Is against an *Error.
var (
	ErrTransport       = errors.New("proxy request failed")
	ErrRequestBuilder  = errors.New("proxy request builder script failed")
	ErrResponseBuilder = errors.New("proxy response builder script failed")
)

// Error is a forwarding failure. Kind is one of the Err* sentinels; Err is the
// underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Target describes where and how to forward.
type Target struct {
	// URL is the downstream base URL. A trailing slash is ignored.
	URL string

	// RequestBuilder, if set, is invoked as (request, proxyRequest).
	RequestBuilder script.Function

	// ResponseBuilder, if set, is invoked as (request, proxyRequest, response).
	ResponseBuilder script.Function
}

// Response is a downstream response ready to be written to the client.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// WriteTo writes r to w, dropping hop-by-hop headers.
func (r *Response) WriteTo(w http.ResponseWriter) {
	copyResponseHeaders(w.Header(), r.Header)
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}

// Forwarder performs proxy calls. It is safe for concurrent use.
type Forwarder struct {
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(f *Forwarder) {
		if log != nil {
			f.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) { f.metrics = m }
}

// WithTimeout bounds each downstream call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) { f.client.Timeout = d }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Forwarder) { f.client.Transport = rt }
}

// NewForwarder creates a Forwarder. The default transport never decompresses
// responses and redirects are returned to the caller rather than followed.
func NewForwarder(opts ...Option) *Forwarder {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true

	f := &Forwarder{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward sends req to target and returns the downstream response. Any
// downstream status is a success; errors are always *Error.
func (f *Forwarder) Forward(ctx context.Context, req *mock.MockRequest, target Target) (*Response, error) {
	start := time.Now()
	resp, result, err := f.forward(ctx, req, target)
	f.metrics.ObserveProxy(result, time.Since(start))
	return resp, err
}

func (f *Forwarder) forward(ctx context.Context, req *mock.MockRequest, target Target) (*Response, string, error) {
	base := strings.TrimSuffix(target.URL, "/")
	out := NewOutgoingRequest(base, req)

	reqValue := req.Value()
	var outValue map[string]any
	if target.RequestBuilder != nil {
		outValue = out.Value()
		if _, err := target.RequestBuilder.Invoke(ctx, reqValue, outValue); err != nil {
			return nil, metrics.ProxyRequestBuilder, &Error{Kind: ErrRequestBuilder, Err: err}
		}
		out.ApplyValue(outValue)
		out.URL = resolveURL(base, out.URL)
	}

	downstream, err := f.send(ctx, out)
	if err != nil {
		return nil, metrics.ProxyTransportError, &Error{Kind: ErrTransport, Err: err}
	}

	if target.ResponseBuilder == nil {
		return downstream, metrics.ProxyOK, nil
	}

	if outValue == nil {
		outValue = out.Value()
	}
	built, err := f.buildResponse(ctx, reqValue, outValue, downstream, target.ResponseBuilder)
	if err != nil {
		return nil, metrics.ProxyResponseBuilder, &Error{Kind: ErrResponseBuilder, Err: err}
	}
	return built, metrics.ProxyOK, nil
}

// NewOutgoingRequest builds the initial outgoing request for base (no
// trailing slash) from req: hop-by-hop headers are removed and a literal "{}"
// body is dropped.
func NewOutgoingRequest(base string, req *mock.MockRequest) *mock.OutgoingRequest {
	headers := make(map[string]string, len(req.Headers))
	for name, value := range req.Headers {
		if !IsHopByHop(name) {
			headers[name] = value
		}
	}
	query := make(map[string][]string, len(req.QueryParameters))
	for k, v := range req.QueryParameters {
		query[k] = append([]string(nil), v...)
	}
	body := req.Body
	if body == "{}" {
		body = ""
	}
	return &mock.OutgoingRequest{
		URL:             base + req.Path,
		Method:          req.Method,
		Headers:         headers,
		QueryParameters: query,
		Body:            body,
	}
}

// resolveURL keeps absolute URLs and joins anything else onto base.
func resolveURL(base, raw string) string {
	if u, err := url.Parse(raw); err == nil && u.IsAbs() && u.Host != "" {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return base + raw
	}
	return base + "/" + raw
}

// withQuery appends query to rawURL, keeping any query already present.
func withQuery(rawURL string, query map[string][]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	values := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	if encoded := values.Encode(); encoded != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + encoded
		} else {
			u.RawQuery = encoded
		}
	}
	return u.String(), nil
}

func (f *Forwarder) send(ctx context.Context, out *mock.OutgoingRequest) (*Response, error) {
	target, err := withQuery(out.URL, out.QueryParameters)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if out.Body != "" {
		body = strings.NewReader(out.Body)
	}
	method := out.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for name, value := range out.Headers {
		if IsHopByHop(name) {
			continue
		}
		if !validHeader(name, value) {
			f.log.Warn("dropping invalid outgoing header", "header", name)
			continue
		}
		httpReq.Header.Set(name, value)
	}
	if _, ok := httpReq.Header["User-Agent"]; !ok {
		// An empty value stops net/http adding its own agent.
		httpReq.Header["User-Agent"] = []string{""}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read downstream body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: raw}, nil
}

func (f *Forwarder) buildResponse(ctx context.Context, reqValue, outValue map[string]any, downstream *Response, fn script.Function) (*Response, error) {
	header := downstream.Header.Clone()
	body, err := decodeBody(downstream.Body, header.Get("Content-Encoding"))
	if err != nil {
		f.log.Warn("passing undecodable proxy body to response builder", "error", err)
		body = downstream.Body
	}
	header.Del("Content-Encoding")
	header.Del("Content-Length")

	view := map[string]any{
		"status":  downstream.StatusCode,
		"headers": headerValue(header),
		"body":    string(body),
	}
	if _, err := fn.Invoke(ctx, reqValue, outValue, view); err != nil {
		return nil, err
	}

	built, dropped := headerFromValue(view["headers"])
	if len(dropped) > 0 {
		f.log.Warn("dropping invalid response headers", "headers", dropped)
	}
	built.Del("Content-Length")

	status := mock.ValueInt(view["status"], downstream.StatusCode)
	if !httputil.ValidStatusCode(status) {
		return nil, fmt.Errorf("response status %d is outside 100-999", status)
	}
	out, err := bodyBytes(view["body"])
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: status,
		Header:     built,
		Body:       out,
	}, nil
}

// bodyBytes renders a script body: strings verbatim, structured values as JSON.
func bodyBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(t), nil
	case []byte:
		return bytes.Clone(t), nil
	case map[string]any, []any:
		s, err := script.EncodeJSON(t)
		if err != nil {
			return nil, fmt.Errorf("encode response body: %w", err)
		}
		return []byte(s), nil
	default:
		return []byte(mock.ValueString(t)), nil
	}
}
