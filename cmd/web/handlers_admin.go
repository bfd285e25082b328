package main

import (
	"log/slog"
	"net/http"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/Exanteros/darts-sub002/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Password string `json:"password"`
}

// adminLogin opens an admin browser session and also hands out a bearer
// token for scripted clients.
func (app *application) adminLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	if err := bcrypt.CompareHashAndPassword(app.adminHash, []byte(in.Password)); err != nil {
		slog.Warn("failed admin login", "remote_addr", r.RemoteAddr)
		httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid password"})
		return
	}

	if err := app.sessionManager.RenewToken(r.Context()); err != nil {
		httputil.InternalServerError(w, "Failed to renew session", err)
		return
	}
	app.sessionManager.Put(r.Context(), middleware.AdminSessionKey, true)

	token, err := auth.GenerateToken(app.cfg.JWTSecret, nil, true, app.cfg.TokenTTL)
	if err != nil {
		httputil.InternalServerError(w, "Failed to sign token", err)
		return
	}

	slog.Info("admin logged in", "remote_addr", r.RemoteAddr)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (app *application) adminLogout(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionManager.Destroy(r.Context()); err != nil {
		httputil.InternalServerError(w, "Failed to end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
