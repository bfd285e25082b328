package main

import (
	"context"
	"net/http"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/google/uuid"
)

type shootoutTransition func(*service.ShootoutService, context.Context, auth.Caller, uuid.UUID) (*bracket.ShootoutState, error)

// shootoutStep serves the body-less state transitions.
func (app *application) shootoutStep(fn shootoutTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}
		state, err := fn(app.shootout, r.Context(), caller(r), id)
		if err != nil {
			httputil.WriteError(w, "Failed to update shootout", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, state)
	}
}

func (app *application) shootoutStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	status, err := app.shootout.Status(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get shootout", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (app *application) shootoutStart(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		BoardID *uuid.UUID `json:"board_id"`
	}
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	state, err := app.shootout.Start(r.Context(), caller(r), id, in.BoardID)
	if err != nil {
		httputil.WriteError(w, "Failed to start shootout", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (app *application) shootoutSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		PlayerID uuid.UUID `json:"player_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	state, err := app.shootout.SelectPlayer(r.Context(), caller(r), id, in.PlayerID)
	if err != nil {
		httputil.WriteError(w, "Failed to select player", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (app *application) shootoutFinish(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		Darts [3]int `json:"darts"`
	}
	if !decode(w, r, &in) {
		return
	}
	state, err := app.shootout.FinishPlayer(r.Context(), caller(r), id, in.Darts)
	if err != nil {
		httputil.WriteError(w, "Failed to record shootout throw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (app *application) shootoutFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	res, err := app.shootout.Finalize(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to finalize shootout", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (app *application) shootoutReset(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := app.shootout.Reset(r.Context(), caller(r), id); err != nil {
		httputil.WriteError(w, "Failed to reset shootout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
