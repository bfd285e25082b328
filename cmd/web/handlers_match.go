package main

import (
	"net/http"

	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/Exanteros/darts-sub002/internal/service"
)

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	detail, err := app.matches.GetMatchDetail(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (app *application) checkMatchBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	authorized, err := app.boards.IsBoardAuthorizedForMatch(r.Context(), id, caller(r).BoardCode)
	if err != nil {
		httputil.WriteError(w, "Failed to check board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

func (app *application) submitThrow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in service.ThrowInput
	if !decode(w, r, &in) {
		return
	}
	res, err := app.matches.SubmitThrow(r.Context(), caller(r), id, in)
	if err != nil {
		httputil.WriteError(w, "Failed to submit throw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (app *application) editThrow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in service.EditInput
	if !decode(w, r, &in) {
		return
	}
	res, err := app.matches.EditThrow(r.Context(), caller(r), id, in)
	if err != nil {
		httputil.WriteError(w, "Failed to edit throw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (app *application) getCurrentThrow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	current, err := app.matches.GetCurrentThrow(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get current throw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, current)
}

func (app *application) setCurrentThrow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in service.CurrentThrowInput
	if !decode(w, r, &in) {
		return
	}
	current, err := app.matches.SetCurrentThrow(r.Context(), caller(r), id, in)
	if err != nil {
		httputil.WriteError(w, "Failed to update current throw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, current)
}

func (app *application) clearCurrentThrow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := app.matches.ClearCurrentThrow(r.Context(), caller(r), id); err != nil {
		httputil.WriteError(w, "Failed to clear current throw", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) startMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	match, err := app.matches.StartMatch(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to start match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) resetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	match, err := app.matches.ResetMatch(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to reset match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) repromote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	res, err := app.matches.Repromote(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to promote winner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
