// Package middleware provides net/http middleware for the trace streamer's
// HTTP status endpoint.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus request metrics middleware
//
// Both are plain func(http.Handler) http.Handler values and plug into a chi
// router with Use. When mounted on a chi router, metrics and span names use
// the matched route pattern instead of the raw path.
//
// # OpenTelemetry Middleware
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("tracestream-status"),
//	    middleware.WithFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// The tracer comes from the global OpenTelemetry tracer provider.
//
// # Prometheus Metrics
//
//   - tracestream_http_requests_total: requests by route and status code
//   - tracestream_http_request_duration_seconds: latency by route
//   - tracestream_http_requests_in_flight: requests being served
//
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
package middleware
