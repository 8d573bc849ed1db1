// Package metrics exposes Prometheus collectors for the mock server.
//
// Collectors are registered against an injected prometheus.Registerer so
// tests and embedders can use a private registry:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// A nil *Metrics is valid and records nothing.
//
// # Metrics
//
//   - carbon_transactions_total{status, matched, provider_type}
//   - carbon_transaction_duration_seconds{provider_type}
//   - carbon_cache_reloads_total{result}
//   - carbon_cache_entries
//   - carbon_cache_compile_errors
//   - carbon_proxy_requests_total{result}
//   - carbon_proxy_duration_seconds
package metrics
