// Core HTTP request handler for the mock engine.

package engine

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carbonmock/carbon/internal/matching"
	"github.com/carbonmock/carbon/pkg/httputil"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/metrics"
	"github.com/carbonmock/carbon/pkg/proxy"
	"github.com/carbonmock/carbon/pkg/requestlog"
)

// MaxRequestBodySize is the maximum accepted request body (10MB).
const MaxRequestBodySize = 10 << 20

// StatusClientClosedRequest is logged when the client went away before a
// response was written.
const StatusClientClosedRequest = 499

// Error messages sent in the JSON error envelope.
const (
	MsgNoAPIMatch             = "No matching API found"
	MsgNoProviderMatch        = "No provider matched this request"
	MsgScriptCompileFailed    = "Script compilation failed"
	MsgScriptExecutionFailed  = "Script execution failed"
	MsgTemplateFailed         = "Template rendering failed"
	MsgRequestBuilderFailed   = "Proxy request builder script failed"
	MsgResponseBuilderFailed  = "Proxy response builder script failed"
	MsgProxyFailed            = "Proxy request failed"
	MsgScenarioNotImplemented = `Response provider type "scenario" is not yet implemented`
	MsgBodyTooLarge           = "Request body exceeds maximum allowed size"
	MsgInvalidStatus          = "Provider status code is invalid"
)

// Handler serves mock traffic from a Cache.
type Handler struct {
	cache      *Cache
	counters   *Counters
	forwarder  *proxy.Forwarder
	requestLog requestlog.Logger
	logStore   requestlog.Store
	log        *slog.Logger
	metrics    *metrics.Metrics
	internal   http.Handler
	now        func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRequestLog sets where transaction entries are recorded.
func WithRequestLog(l requestlog.Logger) HandlerOption {
	return func(h *Handler) { h.requestLog = l }
}

// WithRequestStore sets the store served at /__carbon/logs. It is not
// written to unless it is also part of the WithRequestLog logger.
func WithRequestStore(s requestlog.Store) HandlerOption {
	return func(h *Handler) { h.logStore = s }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithForwarder replaces the proxy forwarder.
func WithForwarder(f *proxy.Forwarder) HandlerOption {
	return func(h *Handler) {
		if f != nil {
			h.forwarder = f
		}
	}
}

// WithCounters replaces the request counters.
func WithCounters(c *Counters) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.counters = c
		}
	}
}

// NewHandler creates a Handler serving from cache.
func NewHandler(cache *Cache, opts ...HandlerOption) *Handler {
	h := &Handler{
		cache:    cache,
		counters: NewCounters(),
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.forwarder == nil {
		h.forwarder = proxy.NewForwarder(proxy.WithLogger(h.log), proxy.WithMetrics(h.metrics))
	}
	h.internal = h.internalRoutes()
	return h
}

// Counters returns the per-service request counters.
func (h *Handler) Counters() *Counters { return h.counters }

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, InternalPrefix) {
		h.internal.ServeHTTP(w, r)
		return
	}

	start := h.now()
	sw := &statusWriter{ResponseWriter: w}
	tx := &transaction{
		entry: &requestlog.Entry{
			Timestamp: requestlog.FormatTimestamp(start),
			Method:    strings.ToUpper(r.Method),
			URL:       r.URL.RequestURI(),
			Path:      r.URL.Path,
			Hostname:  matching.StripPort(r.Host),
		},
	}
	defer h.finish(sw, r, tx, start)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.log.Warn("request body too large", "path", r.URL.Path, "limit", MaxRequestBodySize)
			httputil.WriteError(sw, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
	}
	tx.entry.Body = requestlog.TruncateBody(string(body))

	entry, err := MatchRequest(h.cache.All(), r)
	if err != nil {
		httputil.WriteError(sw, http.StatusNotFound, MsgNoAPIMatch)
		return
	}
	tx.entry.Matched = true
	tx.entry.Project = entry.Project.Name
	tx.entry.Service = entry.Service.Name
	tx.entry.APIName = entry.Api.Name

	req, err := BuildRequest(r, body, entry, h.counters.Next(entry.Key()), start)
	if err != nil {
		h.log.Debug("malformed multipart body", "api", entry.Api.Name, "error", err)
	}

	ctx := r.Context()
	provider, err := SelectProvider(ctx, h.cache.Reader(), entry, req, h.log)
	if err != nil {
		httputil.WriteError(sw, http.StatusUnprocessableEntity, MsgNoProviderMatch)
		return
	}
	tx.entry.ProviderName = provider.Name()
	if provider.Config.Provider != nil {
		tx.providerType = string(provider.Config.Provider.Type())
	}

	h.dispatch(ctx, sw, entry, provider, req)
}

// transaction is the state recorded once a request completes.
type transaction struct {
	entry        *requestlog.Entry
	providerType string
}

func (h *Handler) finish(sw *statusWriter, r *http.Request, tx *transaction, start time.Time) {
	status := sw.status
	if status == 0 {
		if r.Context().Err() != nil {
			status = StatusClientClosedRequest
		} else {
			status = http.StatusOK
		}
	}
	elapsed := h.now().Sub(start)

	tx.entry.StatusCode = status
	tx.entry.DurationMs = elapsed.Milliseconds()
	if h.requestLog != nil {
		h.requestLog.Log(tx.entry)
	}
	h.metrics.ObserveTransaction(status, tx.entry.Matched, tx.providerType, elapsed)
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
