// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ManuGH/threadwarden/internal/log"
)

// HeaderRequestID carries the correlation ID in both directions.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen caps client-supplied IDs before they reach the logs.
const maxRequestIDLen = 128

// RequestID adds a unique ID to every request. A client-supplied ID is kept
// when it is short enough.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
