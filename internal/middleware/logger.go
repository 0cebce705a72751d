package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestUserKey contextKey = "request_user"

// requestUser is filled in by Authenticate further down the chain, which
// only sees a derived request.
type requestUser struct {
	id   string
	role string
}

func recordRequestUser(ctx context.Context, id, role string) {
	if u, ok := ctx.Value(requestUserKey).(*requestUser); ok {
		u.id = id
		u.role = role
	}
}

// RequestLogger logs one line per request. Expects chimw.RequestID to run
// first so the id can be correlated with service logs.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			user := &requestUser{}
			r = r.WithContext(context.WithValue(r.Context(), requestUserKey, user))

			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", chimw.GetReqID(r.Context())),
				}
				if user.id != "" {
					fields = append(fields, zap.String("user_id", user.id), zap.String("role", user.role))
				}
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					logger.Error("request", fields...)
				default:
					logger.Info("request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
