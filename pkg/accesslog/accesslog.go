package accesslog

import (
	"net/http"
	"time"

	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns a middleware that logs every request with its
// duration, status and byte count of the response.
func Handler(logger logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.With(r.Context(),
				"duration", time.Since(start).String(),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			).Infof("%s %s", r.Method, r.URL.Path)
		}

		return http.HandlerFunc(f)
	}
}
