package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/se-atlas/server/internal/auth"
	"github.com/se-atlas/server/internal/metrics"
	"github.com/se-atlas/server/internal/service"
)

// Context key for the authenticated session
type ctxKey string

const sessionKey ctxKey = "session"

const msgIncorrectPassword = "Incorrect password"

// sessionMiddleware resolves the session token from the cookie or the
// Authorization header and injects the session into the context.
func sessionMiddleware(cfg RouterConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := lookupSession(cfg, r)
			if err != nil || !sess.Authenticated {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getSession(r *http.Request) *auth.Session {
	if s, ok := r.Context().Value(sessionKey).(*auth.Session); ok {
		return s
	}
	return nil
}

func lookupSession(cfg RouterConfig, r *http.Request) (*auth.Session, error) {
	raw := requestToken(cfg, r)
	if raw == "" {
		return nil, auth.ErrInvalidToken
	}
	claims, err := cfg.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	return cfg.Sessions.Get(claims.SessionID)
}

func requestToken(cfg RouterConfig, r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cfg.Cookie.Name); err == nil {
		return c.Value
	}
	return ""
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// loginHandler verifies credentials and opens a new session. A failed
// attempt stores nothing.
func loginHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		role, err := cfg.Verifier.Verify(req.Username, req.Password)
		if err != nil {
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, msgIncorrectPassword)
				return
			}
			writeServiceError(w, r, err)
			return
		}
		metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()

		// A previous session of this client is replaced, not reused.
		if old, err := lookupSession(cfg, r); err == nil {
			cfg.Sessions.Delete(old.ID)
		}

		sess := auth.NewSession()
		sess.Login(req.Username, role)
		sess = cfg.Sessions.Create(sess)

		token, err := cfg.Tokens.Issue(sess)
		if err != nil {
			cfg.Sessions.Delete(sess.ID)
			writeServiceError(w, r, err)
			return
		}
		expires := time.Now().Add(cfg.Tokens.TTL())
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.Cookie.Name,
			Value:    token,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
			Secure:   cfg.Cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		log.Printf("[Auth] %s logged in (%s)", sess.Username, sess.Role)

		writeJSON(w, http.StatusOK, loginResponse{
			Token:     token,
			Username:  sess.Username,
			Role:      sess.Role,
			ExpiresAt: expires,
		})
	}
}

// logoutHandler discards the whole session and clears the cookie.
func logoutHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, err := lookupSession(cfg, r); err == nil {
			cfg.Sessions.Delete(sess.ID)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.Cookie.Name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

type sessionResponse struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	Role       auth.Role         `json:"role"`
	Selection  service.Selection `json:"selection"`
	HasDrawing bool              `json:"has_drawing"`
	CreatedAt  time.Time         `json:"created_at"`
}

func sessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	if sess == nil {
		writeError(w, http.StatusInternalServerError, "session not found in context")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:         sess.ID,
		Username:   sess.Username,
		Role:       sess.Role,
		Selection:  sess.Selection,
		HasDrawing: sess.HasDrawing(),
		CreatedAt:  sess.CreatedAt,
	})
}

// requestSelection returns the selection for this request: the query
// parameters when any is present, else the one stored in the session.
func requestSelection(r *http.Request) service.Selection {
	q := r.URL.Query()
	if q.Has("region") || q.Has("cercle") || q.Has("commune") || q.Has("zone") {
		return service.Selection{
			Region:  q.Get("region"),
			Cercle:  q.Get("cercle"),
			Commune: q.Get("commune"),
			ZoneID:  q.Get("zone"),
		}
	}
	if sess := getSession(r); sess != nil {
		return sess.Selection
	}
	return service.Selection{}
}
