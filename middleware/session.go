package middleware

import (
	"context"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/fingerprint"
)

// CodeReauthRequired is the error code sent when a session was terminated
// and the client must log in again.
const CodeReauthRequired = "reauth_required"

// RequireSession validates the session cookie against the request
// fingerprint and stores the result in the request context. A rotated
// session id is written back as a fresh cookie before next runs.
func RequireSession(engine *goGuard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			cookieCfg := engine.Config().Cookie

			c, err := r.Cookie(cookieCfg.Name)
			if err != nil || c.Value == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}

			ctx := RequestContext(engine, r)
			res, err := engine.ValidateSession(ctx, c.Value, fingerprint.MetadataFromRequest(r))
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "session backend unavailable", "")
				return
			}
			if !res.Valid {
				ClearSessionCookie(w, cookieCfg)
				if res.ReauthRequired {
					writeError(w, http.StatusUnauthorized, "reauthentication required", CodeReauthRequired)
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			if res.Rotated {
				SetSessionCookie(w, cookieCfg, res)
			}

			next.ServeHTTP(w, r.WithContext(goGuard.WithAuthResult(ctx, res)))
		})
	}
}

// RequirePrivileged rejects requests whose session is not privileged.
// It must run after RequireSession.
func RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := goGuard.AuthResultFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		if !res.Privileged {
			writeError(w, http.StatusForbidden, "privileged session required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie writes the session id of res using cfg.
func SetSessionCookie(w http.ResponseWriter, cfg goGuard.CookieConfig, res *goGuard.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    res.SessionID,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  res.ExpiresAt,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSiteMode(),
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg goGuard.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSiteMode(),
	})
}

// RequestContext returns r's context carrying the client address for
// audit events. X-Forwarded-For is honored only when engine trusts it.
func RequestContext(engine *goGuard.Engine, r *http.Request) context.Context {
	return goGuard.WithClientIP(r.Context(), ClientKey(engine, r))
}

// ClientKey is the client address used for rate limiting and audit.
func ClientKey(engine *goGuard.Engine, r *http.Request) string {
	forwarded := ""
	if engine != nil && engine.Config().Security.TrustForwardedFor {
		forwarded = r.Header.Get("X-Forwarded-For")
	}
	return fingerprint.ClientAddress(r.RemoteAddr, forwarded)
}
