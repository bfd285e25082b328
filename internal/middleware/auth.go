package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/alexedwards/scs/v2"
)

// BoardCodeHeader carries a scoring board's access code.
const BoardCodeHeader = "X-Board-Code"

// AdminSessionKey marks a browser session that logged in with the admin password.
const AdminSessionKey = "isAdmin"

// LoadCaller builds the request's auth.Caller from a bearer token, the admin
// session and the board code header. A bad token is rejected outright; no
// credentials at all gives an anonymous caller.
func LoadCaller(sessionManager *scs.SessionManager, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.Caller{RemoteAddr: r.RemoteAddr}

			if header := r.Header.Get("Authorization"); header != "" {
				tokenStr, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authorization header must be a bearer token"})
					return
				}
				claims, err := auth.ParseToken(secret, strings.TrimSpace(tokenStr))
				if err != nil {
					slog.Warn("rejected token", "remote_addr", r.RemoteAddr, "error", err)
					httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
					return
				}
				fromToken, err := claims.Caller()
				if err != nil {
					httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
					return
				}
				caller.IsAdmin = fromToken.IsAdmin
				caller.PlayerID = fromToken.PlayerID
			}

			if sessionManager != nil && sessionManager.GetBool(r.Context(), AdminSessionKey) {
				caller.IsAdmin = true
			}
			caller.BoardCode = strings.TrimSpace(r.Header.Get(BoardCodeHeader))

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAdmin stops non-admin callers before the handler runs.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := auth.CallerFromContext(r.Context())
		switch {
		case caller.IsAdmin:
			next.ServeHTTP(w, r)
		case caller.Anonymous():
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		default:
			httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "administrator rights required"})
		}
	})
}
