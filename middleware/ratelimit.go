package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// KeyFunc derives the rate-limit key of a request.
type KeyFunc func(r *http.Request) string

// LimitAuth guards an authentication endpoint. A limited client gets 429
// with Retry-After and next never runs. Otherwise the handler's status
// decides the recorded outcome: 2xx is a success, 401 and 403 are
// failures, anything else is not recorded.
//
// A nil keyFunc uses ClientKey.
func LimitAuth(engine *goGuard.Engine, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := ClientKey(engine, r)
			if keyFunc != nil {
				key = keyFunc(r)
			}
			ctx := RequestContext(engine, r)

			limited, err := engine.CheckRateLimit(ctx, key)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "")
				return
			}
			if limited {
				info, err := engine.RateLimitInfo(ctx, key)
				if err == nil {
					w.Header().Set("Retry-After", retryAfter(info.ResetAt.Sub(engine.Now())))
				}
				writeError(w, http.StatusTooManyRequests, "too many attempts", "")
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			// The response is already written; RecordAttempt logs its own
			// failures.
			switch status := rec.code(); {
			case status >= 200 && status < 300:
				_ = engine.RecordAttempt(ctx, key, true)
			case status == http.StatusUnauthorized || status == http.StatusForbidden:
				_ = engine.RecordAttempt(ctx, key, false)
			}
		})
	}
}

// retryAfter renders d as whole seconds, rounded up, never below one.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
