package main

import (
	"net/http"
	"strconv"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := app.tournaments.ListTournaments(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to get tournaments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournaments)
}

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	var in service.TournamentInput
	if !decode(w, r, &in) {
		return
	}
	tournament, err := app.tournaments.CreateTournament(r.Context(), caller(r), in)
	if err != nil {
		httputil.WriteError(w, "Failed to create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tournament)
}

func (app *application) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	tournament, err := app.tournaments.GetTournament(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

func (app *application) listPlayers(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	players, err := app.tournaments.ListPlayers(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get players", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, players)
}

func (app *application) addPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	player, err := app.tournaments.AddPlayer(r.Context(), caller(r), id, in.Name)
	if err != nil {
		httputil.WriteError(w, "Failed to add player", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, player)
}

func (app *application) setPlayerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		Status bracket.PlayerStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	player, err := app.tournaments.SetPlayerStatus(r.Context(), caller(r), id, in.Status)
	if err != nil {
		httputil.WriteError(w, "Failed to update player", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, player)
}

func (app *application) issuePlayerToken(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	token, err := app.tournaments.IssuePlayerToken(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to issue token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (app *application) closeRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	tournament, err := app.tournaments.CloseRegistration(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to close registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

func (app *application) getBracketConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cfg, err := app.tournaments.GetBracketConfig(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get bracket config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (app *application) updateBracketConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in service.BracketConfigInput
	if !decode(w, r, &in) {
		return
	}
	cfg, err := app.tournaments.UpdateBracketConfig(r.Context(), caller(r), id, in)
	if err != nil {
		httputil.WriteError(w, "Failed to update bracket config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (app *application) getBracketState(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	state, err := app.tournaments.GetBracketState(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (app *application) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	res, err := app.generator.GenerateFromShootout(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to generate bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (app *application) listBoards(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	boards, err := app.boards.ListBoards(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get boards", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boards)
}

func (app *application) createBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in service.BoardInput
	if !decode(w, r, &in) {
		return
	}
	board, err := app.boards.CreateBoard(r.Context(), caller(r), id, in)
	if err != nil {
		httputil.WriteError(w, "Failed to create board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, board)
}

func (app *application) setMainBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	board, err := app.boards.SetMainBoard(r.Context(), caller(r), id)
	if err != nil {
		httputil.WriteError(w, "Failed to set main board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, board)
}

func (app *application) setBoardActive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &in) {
		return
	}
	board, err := app.boards.SetBoardActive(r.Context(), caller(r), id, in.Active)
	if err != nil {
		httputil.WriteError(w, "Failed to update board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, board)
}

func (app *application) autoSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	started, err := app.boards.AutoSchedule(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to schedule matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, started)
}

func (app *application) assignBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var in struct {
		BoardID uuid.UUID `json:"board_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	match, err := app.boards.AssignBoard(r.Context(), caller(r), id, in.BoardID)
	if err != nil {
		httputil.WriteError(w, "Failed to assign board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) checkShootoutBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	authorized, err := app.boards.IsShootoutBoard(r.Context(), id, caller(r).BoardCode)
	if err != nil {
		httputil.WriteError(w, "Failed to check board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

// roundParam parses the {round} route parameter, answering 400 itself on failure.
func roundParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		httputil.BadRequest(w, "Invalid round", err)
		return 0, false
	}
	return round, true
}

func (app *application) startRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	round, ok := roundParam(w, r)
	if !ok {
		return
	}
	res, err := app.boards.StartRound(r.Context(), caller(r), id, round)
	if err != nil {
		httputil.WriteError(w, "Failed to start round", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (app *application) resetRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	round, ok := roundParam(w, r)
	if !ok {
		return
	}
	res, err := app.matches.ResetRound(r.Context(), caller(r), id, round)
	if err != nil {
		httputil.WriteError(w, "Failed to reset round", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
