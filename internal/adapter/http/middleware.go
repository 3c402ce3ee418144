package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// CorrelationIDHeader carries the caller's correlation id.
const CorrelationIDHeader = "X-Correlation-ID"

// RequestLogger logs one structured line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if id := r.Header.Get(CorrelationIDHeader); id != "" {
				fields = append(fields, zap.String("correlation_id", id))
			}

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				logger.Error("request", fields...)
			case ww.Status() >= http.StatusBadRequest:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
