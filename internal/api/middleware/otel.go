// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// OTelHTTP wraps the handler with OpenTelemetry HTTP instrumentation.
// Probe endpoints are not traced.
func OTelHTTP(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

func shouldTrace(r *http.Request) bool {
	return !isProbe(r.URL.Path)
}

// spanName formats "HTTP GET /path" without query values.
func spanName(_ string, r *http.Request) string {
	return "HTTP " + r.Method + " " + r.URL.Path
}
