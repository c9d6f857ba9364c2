// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pgtest/injection-points/injection/logging"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID reuses a valid X-Request-Id sent by the caller or assigns a new
// one, echoes it in the response and stores it in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		if err != nil {
			id = uuid.New()
		}

		w.Header().Set(RequestIDHeader, id.String())
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id.String()))
		next.ServeHTTP(w, r)
	})
}

// RequestIDFromContext returns the id stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// AccessLogMiddleware writes api access log.
func AccessLogMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := log.WithField("requestId", RequestIDFromContext(r.Context()))
			logger.Debugf("API request -> %s %s", r.Method, r.URL)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := http.StatusOK
			if ww.Status() != 0 {
				status = ww.Status()
			}

			logger = logger.WithField("status", status).WithField("durationMs", logging.Since(start))
			if status/100 != 2 {
				logger.Warnf("API request <- %s %s", r.Method, r.URL)
			} else {
				logger.Debugf("API request <- %s %s", r.Method, r.URL)
			}
		}
		return http.HandlerFunc(fn)
	}
}
