package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransaction(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransaction(200, true, "static", 10*time.Millisecond)
	m.ObserveTransaction(200, true, "static", 20*time.Millisecond)
	m.ObserveTransaction(404, false, "", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues("200", "true", "static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("404", "false", Unmatched)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.transactionDuration))
}

func TestObserveReload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReload(nil, 4, 1)
	m.ObserveReload(errors.New("boom"), 99, 99)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheReloads.WithLabelValues(ReloadOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheReloads.WithLabelValues(ReloadError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.cacheEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compileErrors))
}

func TestObserveProxy(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveProxy(ProxyOK, time.Millisecond)
	m.ObserveProxy(ProxyTransportError, time.Millisecond)
	m.ObserveProxy(ProxyOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues(ProxyOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues(ProxyTransportError)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransaction(200, true, "static", time.Millisecond)
		m.ObserveReload(nil, 1, 0)
		m.ObserveProxy(ProxyOK, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.ObserveTransaction(201, true, "script", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `carbon_transactions_total{matched="true",provider_type="script",status="201"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
