package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/password"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// credentials is the demo user directory.
type credentials struct {
	hasher *password.Argon2
	users  map[string]user
}

type user struct {
	id   string
	hash string
}

func newCredentials(hasher *password.Argon2) *credentials {
	return &credentials{hasher: hasher, users: make(map[string]user)}
}

func (c *credentials) add(username, plain string) error {
	hash, err := c.hasher.Hash(plain)
	if err != nil {
		return err
	}
	c.users[username] = user{id: "user-" + username, hash: hash}
	return nil
}

// check returns the user id for valid credentials.
func (c *credentials) check(username, plain string) (string, bool) {
	u, ok := c.users[username]
	if !ok {
		return "", false
	}
	match, err := c.hasher.Verify(plain, u.hash)
	if err != nil || !match {
		return "", false
	}
	return u.id, true
}

func (c *credentials) checkID(userID, plain string) bool {
	for name, u := range c.users {
		if u.id == userID {
			_, ok := c.check(name, plain)
			return ok
		}
	}
	return false
}

type server struct {
	engine *goGuard.Engine
	creds  *credentials
	logger zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	requireSession := middleware.RequireSession(s.engine)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", prometheus.New(s.engine).Handler())
	r.Get("/stats", s.handleStats)

	r.With(middleware.LimitAuth(s.engine, nil)).Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/me", s.handleMe)
		r.Post("/logout", s.handleLogout)
		r.Post("/logout-all", s.handleLogoutAll)
		r.With(middleware.LimitAuth(s.engine, nil)).Post("/escalate", s.handleEscalate)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePrivileged)
			r.Post("/sign", s.handleSign)
			r.With(middleware.RequireSignature(s.engine)).Post("/transfer", s.handleTransfer)
		})
	})
	return r
}

func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(goGuard.WithRequestID(r.Context(), id)))
	})
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", ww.Header().Get("X-Request-Id")).
			Msg("request")
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID     string    `json:"user_id"`
	Privileged bool      `json:"privileged"`
	ExpiresAt  time.Time `json:"expires_at"`
	Rotated    bool      `json:"rotated,omitempty"`
	Risk       string    `json:"risk,omitempty"`
	RiskScore  int       `json:"risk_score,omitempty"`
	Reasons    []string  `json:"reasons,omitempty"`
}

func toSessionResponse(res *goGuard.AuthResult) sessionResponse {
	out := sessionResponse{
		UserID:     res.UserID,
		Privileged: res.Privileged,
		ExpiresAt:  res.ExpiresAt,
		Rotated:    res.Rotated,
		RiskScore:  res.RiskScore,
		Reasons:    res.Reasons,
	}
	if res.Flagged() {
		out.Risk = res.Risk.String()
	}
	return out
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, ok := s.creds.check(req.Username, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	res, err := s.engine.CreateSession(r.Context(), userID, fingerprint.MetadataFromRequest(r), false)
	if err != nil {
		s.backendError(w, "create session", err)
		return
	}
	middleware.SetSessionCookie(w, s.engine.Config().Cookie, res)
	writeJSON(w, http.StatusOK, toSessionResponse(res))
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, _ := goGuard.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, toSessionResponse(res))
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	res, _ := goGuard.AuthResultFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), res.SessionID); err != nil {
		s.backendError(w, "logout", err)
		return
	}
	middleware.ClearSessionCookie(w, s.engine.Config().Cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	res, _ := goGuard.AuthResultFromContext(r.Context())
	n, err := s.engine.LogoutAll(r.Context(), res.UserID)
	if err != nil {
		s.backendError(w, "logout all", err)
		return
	}
	middleware.ClearSessionCookie(w, s.engine.Config().Cookie)
	writeJSON(w, http.StatusOK, map[string]int{"destroyed": n})
}

func (s *server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	current, _ := goGuard.AuthResultFromContext(r.Context())
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.creds.checkID(current.UserID, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	res, err := s.engine.EscalateSession(r.Context(), current.SessionID, fingerprint.MetadataFromRequest(r))
	if err != nil {
		s.backendError(w, "escalate session", err)
		return
	}
	if !res.Valid {
		middleware.ClearSessionCookie(w, s.engine.Config().Cookie)
		writeError(w, http.StatusUnauthorized, "session no longer valid")
		return
	}
	middleware.SetSessionCookie(w, s.engine.Config().Cookie, res)
	writeJSON(w, http.StatusOK, toSessionResponse(res))
}

// handleSign stands in for a client-side signer holding the shared
// secret. It is limited to privileged sessions, which already pass the
// same gate as /transfer.
func (s *server) handleSign(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body must be JSON")
		return
	}
	env, err := s.engine.SignPayload(r.Context(), json.RawMessage(body))
	if err != nil {
		if errors.Is(err, goGuard.ErrSecretRequired) {
			writeError(w, http.StatusServiceUnavailable, "signing disabled")
			return
		}
		writeError(w, http.StatusBadRequest, "payload cannot be signed")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	payload, _ := middleware.PayloadFromContext(r.Context())
	res, _ := goGuard.AuthResultFromContext(r.Context())
	s.logger.Info().Str("user_id", res.UserID).RawJSON("payload", payload).Msg("transfer accepted")
	writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "payload": payload})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.SessionStats(r.Context())
	if err != nil {
		s.backendError(w, "session stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) backendError(w http.ResponseWriter, op string, err error) {
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	if errors.Is(err, goGuard.ErrRedisUnavailable) || errors.Is(err, goGuard.ErrStoreBusy) {
		writeError(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
