// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ManuGH/threadwarden/internal/log"
)

// AccessLog writes one structured line per request. Probe endpoints are
// logged at debug level.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		logger := log.WithComponentFromContext(r.Context(), "http")
		evt := logger.Info()
		switch {
		case status >= 500:
			evt = logger.Error()
		case isProbe(r.URL.Path):
			evt = logger.Debug()
		}
		evt.
			Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request served")
	})
}

func isProbe(path string) bool {
	switch path {
	case "/", "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}
