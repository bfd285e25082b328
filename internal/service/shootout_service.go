package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/scoring"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/Exanteros/darts-sub002/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ShootoutService runs the one-player-at-a-time ranking throw that precedes
// the bracket.
type ShootoutService struct {
	db        *sqlx.DB
	stores    *store.Stores
	boards    *BoardService
	generator *BracketGeneration
	notifier  Notifier
}

func NewShootoutService(db *sqlx.DB, stores *store.Stores, boards *BoardService, generator *BracketGeneration, notifier Notifier) *ShootoutService {
	return &ShootoutService{db: db, stores: stores, boards: boards, generator: generator, notifier: notifier}
}

type ShootoutStatusView struct {
	State            *bracket.ShootoutState   `json:"state"`
	CurrentPlayer    *bracket.Player          `json:"current_player,omitempty"`
	Completed        int                      `json:"completed"`
	Remaining        int                      `json:"remaining"`
	RemainingPlayers []bracket.Player         `json:"remaining_players"`
	Results          []bracket.ShootoutResult `json:"results"`
}

// Start opens the shootout on boardID, or on no particular board when nil.
func (s *ShootoutService) Start(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, boardID *uuid.UUID) (*bracket.ShootoutState, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFoundOr(err, "tournament")
	}
	if tournament.Status != bracket.TournamentRegistrationClosed {
		return nil, conflictf("shootout needs closed registration, tournament is %s", tournament.Status)
	}

	competing, err := s.stores.Players.CountCompeting(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if competing < 2 {
		return nil, validationf("at least 2 players are needed for the shootout, got %d", competing)
	}

	if boardID != nil {
		board, err := s.stores.Boards.GetBoard(ctx, tx, *boardID)
		if err != nil {
			return nil, notFoundOr(err, "board")
		}
		if board.TournamentID != tournamentID {
			return nil, validationf("board %q belongs to another tournament", board.Name)
		}
		if err := s.stores.Tournaments.SetShootoutBoard(ctx, tx, tournamentID, boardID); err != nil {
			return nil, fmt.Errorf("failed to set shootout board: %w", err)
		}
		tournament.ShootoutBoardID = boardID
	}

	if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentShootout); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}

	state := &bracket.ShootoutState{
		TournamentID: tournamentID,
		Status:       bracket.ShootoutWaitingForSelection,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.stores.Shootouts.SaveState(ctx, tx, state); err != nil {
		return nil, fmt.Errorf("failed to save shootout state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(tournament, state)
	return state, nil
}

// step loads the shootout under a transaction, lets apply mutate the state and
// persists it. Admins and the shootout board may drive it.
func (s *ShootoutService) step(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, next bracket.ShootoutStatus,
	apply func(tx *sqlx.Tx, state *bracket.ShootoutState) error) (*bracket.ShootoutState, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, state, err := s.load(ctx, tx, caller, tournamentID)
	if err != nil {
		return nil, err
	}
	if !state.Status.CanTransitionTo(next) {
		return nil, conflictf("shootout is %s, cannot move to %s", state.Status, next)
	}

	state.Status = next
	if apply != nil {
		if err := apply(tx, state); err != nil {
			return nil, err
		}
	}
	state.UpdatedAt = time.Now().UTC()
	if err := s.stores.Shootouts.SaveState(ctx, tx, state); err != nil {
		return nil, fmt.Errorf("failed to save shootout state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(tournament, state)
	return state, nil
}

func (s *ShootoutService) load(ctx context.Context, tx *sqlx.Tx, caller auth.Caller, tournamentID uuid.UUID) (*bracket.Tournament, *bracket.ShootoutState, error) {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, nil, notFoundOr(err, "tournament")
	}
	if err := s.authorize(ctx, tx, caller, tournament); err != nil {
		return nil, nil, err
	}
	if tournament.Status != bracket.TournamentShootout {
		return nil, nil, conflictf("tournament is %s, not in the shootout", tournament.Status)
	}

	state, err := s.stores.Shootouts.GetState(ctx, tx, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, conflictf("shootout has not been started")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get shootout state: %w", err)
	}
	return tournament, state, nil
}

func (s *ShootoutService) authorize(ctx context.Context, q sqlx.ExtContext, caller auth.Caller, tournament *bracket.Tournament) error {
	if caller.IsAdmin {
		return nil
	}
	ok, err := s.boards.isShootoutBoard(ctx, q, tournament, caller.BoardCode)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if caller.Anonymous() {
		return &AuthorizationError{Msg: "authentication required", Unauthenticated: true}
	}
	return forbidden("board not authorized for this shootout")
}

func (s *ShootoutService) SelectPlayer(ctx context.Context, caller auth.Caller, tournamentID, playerID uuid.UUID) (*bracket.ShootoutState, error) {
	return s.step(ctx, caller, tournamentID, bracket.ShootoutPlayerSelected, func(tx *sqlx.Tx, state *bracket.ShootoutState) error {
		player, err := s.stores.Players.GetPlayer(ctx, tx, playerID)
		if err != nil {
			return notFoundOr(err, "player")
		}
		if player.TournamentID != tournamentID {
			return validationf("player %q is not registered for this tournament", player.Name)
		}
		if !player.Status.Competing() {
			return validationf("player %q is %s and cannot throw", player.Name, player.Status)
		}
		state.CurrentPlayerID = utils.Ptr(player.ID)
		return nil
	})
}

func (s *ShootoutService) StartThrowing(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) (*bracket.ShootoutState, error) {
	return s.step(ctx, caller, tournamentID, bracket.ShootoutThrowing, nil)
}

func (s *ShootoutService) CompleteThrowing(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) (*bracket.ShootoutState, error) {
	return s.step(ctx, caller, tournamentID, bracket.ShootoutWaitingForAdmin, nil)
}

// CancelSelection sends the selected player away without a result.
func (s *ShootoutService) CancelSelection(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) (*bracket.ShootoutState, error) {
	return s.step(ctx, caller, tournamentID, bracket.ShootoutWaitingForSelection, func(_ *sqlx.Tx, state *bracket.ShootoutState) error {
		state.CurrentPlayerID = nil
		return nil
	})
}

// FinishPlayer records the current player's darts. The shootout completes once
// every competing player has a result.
func (s *ShootoutService) FinishPlayer(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, darts [3]int) (*bracket.ShootoutState, error) {
	score := darts[0] + darts[1] + darts[2]
	if err := scoring.ValidateThrow(darts, score); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, state, err := s.load(ctx, tx, caller, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != bracket.ShootoutWaitingForAdmin || state.CurrentPlayerID == nil {
		return nil, conflictf("shootout is %s, no finished throw to record", state.Status)
	}
	playerID := *state.CurrentPlayerID

	now := time.Now().UTC()
	result := &bracket.ShootoutResult{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Dart1:        darts[0],
		Dart2:        darts[1],
		Dart3:        darts[2],
		Score:        score,
		CompletedAt:  now,
	}
	if err := s.stores.Shootouts.UpsertResult(ctx, tx, result); err != nil {
		return nil, fmt.Errorf("failed to save shootout result: %w", err)
	}
	// Provisional until the bracket is generated
	if err := s.stores.Players.UpdatePlayerSeed(ctx, tx, playerID, utils.Ptr(score)); err != nil {
		return nil, fmt.Errorf("failed to update seed: %w", err)
	}

	done, remaining, err := shootoutProgress(ctx, tx, s.stores, tournamentID)
	if err != nil {
		return nil, err
	}

	state.CurrentPlayerID = nil
	state.Status = bracket.ShootoutWaitingForSelection
	if remaining == 0 {
		state.Status = bracket.ShootoutCompleted
	}
	state.UpdatedAt = now
	if err := s.stores.Shootouts.SaveState(ctx, tx, state); err != nil {
		return nil, fmt.Errorf("failed to save shootout state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("shootout throw recorded",
		"tournament_id", tournamentID,
		"player_id", playerID,
		"score", score,
		"completed", done,
		"remaining", remaining,
	)
	s.publish(tournament, state)
	return state, nil
}

// shootoutProgress counts competing players with and without a result.
func shootoutProgress(ctx context.Context, q sqlx.ExtContext, stores *store.Stores, tournamentID uuid.UUID) (done, remaining int, err error) {
	total, err := stores.Players.CountCompeting(ctx, q, tournamentID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count players: %w", err)
	}
	done, err = stores.Shootouts.CountCompetingResults(ctx, q, tournamentID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count shootout results: %w", err)
	}
	return done, max(total-done, 0), nil
}

// reconcileShootout realigns a running shootout after a player's status
// changed: a withdrawn current player is dropped, and the state moves between
// waiting_for_selection and completed as the remaining count dictates.
func reconcileShootout(ctx context.Context, q sqlx.ExtContext, stores *store.Stores, tournamentID uuid.UUID) (*bracket.ShootoutState, bool, error) {
	state, err := stores.Shootouts.GetState(ctx, q, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get shootout state: %w", err)
	}

	changed := false
	if state.CurrentPlayerID != nil {
		current, err := stores.Players.GetPlayer(ctx, q, *state.CurrentPlayerID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get current player: %w", err)
		}
		if !current.Status.Competing() {
			state.CurrentPlayerID = nil
			state.Status = bracket.ShootoutWaitingForSelection
			changed = true
		}
	}

	_, remaining, err := shootoutProgress(ctx, q, stores, tournamentID)
	if err != nil {
		return nil, false, err
	}
	switch {
	case state.Status == bracket.ShootoutWaitingForSelection && remaining == 0:
		state.Status = bracket.ShootoutCompleted
		changed = true
	case state.Status == bracket.ShootoutCompleted && remaining > 0:
		state.Status = bracket.ShootoutWaitingForSelection
		changed = true
	}

	if !changed {
		return state, false, nil
	}
	state.UpdatedAt = time.Now().UTC()
	if err := stores.Shootouts.SaveState(ctx, q, state); err != nil {
		return nil, false, fmt.Errorf("failed to save shootout state: %w", err)
	}
	return state, true, nil
}

func (s *ShootoutService) Status(ctx context.Context, tournamentID uuid.UUID) (*ShootoutStatusView, error) {
	if _, err := s.stores.Tournaments.GetTournament(ctx, s.db, tournamentID); err != nil {
		return nil, notFoundOr(err, "tournament")
	}

	state, err := s.stores.Shootouts.GetState(ctx, s.db, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		state = &bracket.ShootoutState{TournamentID: tournamentID, Status: bracket.ShootoutWaitingForSelection}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get shootout state: %w", err)
	}

	players, err := s.stores.Players.ListPlayers(ctx, s.db, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	results, err := s.stores.Shootouts.ListResults(ctx, s.db, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shootout results: %w", err)
	}

	thrown := make(map[uuid.UUID]bool, len(results))
	for _, r := range results {
		thrown[r.PlayerID] = true
	}

	view := &ShootoutStatusView{State: state, Results: results, RemainingPlayers: []bracket.Player{}}
	for i := range players {
		p := players[i]
		if state.CurrentPlayerID != nil && p.ID == *state.CurrentPlayerID {
			view.CurrentPlayer = &p
		}
		if !p.Status.Competing() {
			continue
		}
		if thrown[p.ID] {
			view.Completed++
		} else {
			view.RemainingPlayers = append(view.RemainingPlayers, p)
		}
	}
	view.Remaining = len(view.RemainingPlayers)
	return view, nil
}

// Finalize ranks the results and generates the bracket in one transaction.
func (s *ShootoutService) Finalize(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) (*GenerateResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, state, err := s.load(ctx, tx, caller, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != bracket.ShootoutCompleted {
		return nil, conflictf("shootout is %s, every player must throw first", state.Status)
	}
	// the stored status can lag behind registration changes
	if _, remaining, err := shootoutProgress(ctx, tx, s.stores, tournamentID); err != nil {
		return nil, err
	} else if remaining > 0 {
		return nil, conflictf("%d players still have to throw", remaining)
	}

	results, err := s.stores.Shootouts.ListResults(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shootout results: %w", err)
	}
	players, err := s.stores.Players.ListPlayers(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	competing := make(map[uuid.UUID]bool, len(players))
	for _, p := range players {
		competing[p.ID] = p.Status.Competing()
	}
	rank := 0
	for _, r := range results {
		if !competing[r.PlayerID] {
			continue
		}
		rank++
		if err := s.stores.Shootouts.SetRank(ctx, tx, r.ID, rank); err != nil {
			return nil, fmt.Errorf("failed to rank result: %w", err)
		}
	}

	res, err := s.generator.generateTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("shootout finalized", "tournament_id", tournamentID, "players", len(results), "matches", len(res.Matches))
	s.notifier.Publish(tournamentEvent(notify.GameUpdate, tournamentID, res))
	return res, nil
}

// Reset throws away results, seeds and any bracket and reopens the shootout
// from a closed registration.
func (s *ShootoutService) Reset(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return notFoundOr(err, "tournament")
	}
	if tournament.Status == bracket.TournamentRegistrationClosed {
		return conflictf("shootout has not been started")
	}
	if !tournament.Status.CanTransitionTo(bracket.TournamentRegistrationClosed) {
		return conflictf("tournament is %s, the shootout cannot be reset", tournament.Status)
	}

	if err := s.stores.Shootouts.DeleteResults(ctx, tx, tournamentID); err != nil {
		return fmt.Errorf("failed to delete shootout results: %w", err)
	}
	deleted, err := s.stores.Matches.DeleteMatches(ctx, tx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	if err := s.stores.Players.ClearSeeds(ctx, tx, tournamentID); err != nil {
		return fmt.Errorf("failed to clear seeds: %w", err)
	}

	players, err := s.stores.Players.ListPlayers(ctx, tx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to get players: %w", err)
	}
	var reinstate []uuid.UUID
	for _, p := range players {
		if p.Status == bracket.PlayerActive || p.Status == bracket.PlayerEliminated {
			reinstate = append(reinstate, p.ID)
		}
	}
	if err := s.stores.Players.SetStatusForPlayers(ctx, tx, reinstate, bracket.PlayerConfirmed); err != nil {
		return fmt.Errorf("failed to reinstate players: %w", err)
	}

	if err := s.stores.Tournaments.SetTotalRounds(ctx, tx, tournamentID, 0); err != nil {
		return fmt.Errorf("failed to clear total rounds: %w", err)
	}
	if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentRegistrationClosed); err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}

	state := &bracket.ShootoutState{
		TournamentID: tournamentID,
		Status:       bracket.ShootoutWaitingForSelection,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.stores.Shootouts.SaveState(ctx, tx, state); err != nil {
		return fmt.Errorf("failed to save shootout state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Warn("shootout reset", "tournament_id", tournamentID, "matches_deleted", deleted)
	s.notifier.Publish(tournamentEvent(notify.GameReset, tournamentID, state))
	return nil
}

func (s *ShootoutService) publish(tournament *bracket.Tournament, state *bracket.ShootoutState) {
	ev := tournamentEvent(notify.GameUpdate, tournament.ID, state)
	ev.BoardID = tournament.ShootoutBoardID
	s.notifier.Publish(ev)
}
