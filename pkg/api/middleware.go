package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/request"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// HeaderRequestID carries the request ID.
const HeaderRequestID = "X-Request-ID"

// requestIDPattern is what a request ID supplied by the client must look like to be kept.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

type requestIDKey struct{}

// RequestID returns the ID of the request the context belongs to.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Middleware tags requests with an ID, applies the rate limiter, recovers from panics and records metrics.
//
// A nil limiter disables rate limiting.
func Middleware(l *slog.Logger, limiter *RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now().UTC()
			cw := request.NewClientWriter(w)

			id := r.Header.Get(HeaderRequestID)
			if !requestIDPattern.MatchString(id) {
				id = uuid.NewString()
			}
			cw.Header().Set(HeaderRequestID, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			path := routePath(l, r)

			defer func() {
				// Run after the handler, as the status code is not known until then.
				code := fmt.Sprintf("%d", cw.StatusCode())
				HttpTotalRequests.WithLabelValues(path, r.Method, code).Inc()
				HttpRequestDuration.WithLabelValues(path, r.Method, code).Observe(time.Since(now).Seconds())
			}()

			// Recover from any panics that occur in the handler.
			defer func() {
				if rec := recover(); rec != nil {
					l.Error("Panic in handler",
						slog.String(logging.KeyError, fmt.Sprint(rec)),
						slog.String(logging.KeyRequestID, id),
						slog.String("stack", string(debug.Stack())),
					)
					request.Error(l, cw, http.StatusInternalServerError, request.ErrInternalServer.Error())
				}
			}()

			if limiter != nil && !limiter.Allow(limiter.clientKey(r)) {
				HttpRateLimited.Inc()
				request.Error(l, cw, http.StatusTooManyRequests, request.ErrTooManyRequests.Error())
				return
			}

			next.ServeHTTP(cw, r)
		})
	}
}

// routePath is the route template of the request, so metrics are not labelled per ID.
func routePath(l *slog.Logger, r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil { // The route may be nil if the request is not routed.
		return r.URL.Path
	}
	path, err := route.GetPathTemplate()
	if err != nil {
		// An error here is only returned if the route does not define a path.
		l.Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
		return r.URL.Path
	}
	return path
}
