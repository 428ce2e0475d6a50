package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/signer"
)

// MaxEnvelopeBytes caps the request body read by RequireSignature.
const MaxEnvelopeBytes = 1 << 20

type payloadContextKey struct{}

// RequireSignature reads a signed envelope from the request body and
// verifies it. Every rejection is the same 401 {"error":"invalid
// signature"}. On success the handler sees the verified payload as the
// request body, and PayloadFromContext returns it.
func RequireSignature(engine *goGuard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "invalid signature", "")
				return
			}

			var env signer.Envelope
			dec := json.NewDecoder(io.LimitReader(r.Body, MaxEnvelopeBytes))
			if err := dec.Decode(&env); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid signature", "")
				return
			}

			ctx := RequestContext(engine, r)
			if res := engine.VerifyEnvelope(ctx, env); !res.Valid {
				writeError(w, http.StatusUnauthorized, "invalid signature", "")
				return
			}

			ctx = context.WithValue(ctx, payloadContextKey{}, env.Payload)
			r = r.WithContext(ctx)
			r.Body = io.NopCloser(bytes.NewReader(env.Payload))
			r.ContentLength = int64(len(env.Payload))
			next.ServeHTTP(w, r)
		})
	}
}

// PayloadFromContext returns the payload verified by RequireSignature.
func PayloadFromContext(ctx context.Context) (json.RawMessage, bool) {
	p, ok := ctx.Value(payloadContextKey{}).(json.RawMessage)
	return p, ok
}
