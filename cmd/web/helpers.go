package main

import (
	"net/http"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// urlID parses the {id} route parameter, answering 400 itself on failure.
func urlID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func caller(r *http.Request) auth.Caller {
	return auth.CallerFromContext(r.Context())
}

// decode reads the request body into dst, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.ReadJSON(w, r, dst); err != nil {
		httputil.BadRequest(w, err.Error(), nil)
		return false
	}
	return true
}
