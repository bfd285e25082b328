package service

import (
	"testing"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// throwShootout walks one player through select, throw and record.
func (e *testEnv) throwShootout(t *testing.T, caller auth.Caller, tournamentID, playerID uuid.UUID, darts [3]int) *bracket.ShootoutState {
	t.Helper()
	_, err := e.shootout.SelectPlayer(e.ctx, caller, tournamentID, playerID)
	require.NoError(t, err)
	_, err = e.shootout.StartThrowing(e.ctx, caller, tournamentID)
	require.NoError(t, err)
	_, err = e.shootout.CompleteThrowing(e.ctx, caller, tournamentID)
	require.NoError(t, err)
	state, err := e.shootout.FinishPlayer(e.ctx, caller, tournamentID, darts)
	require.NoError(t, err)
	return state
}

func TestShootoutFullRun(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
	players := env.createPlayers(t, tournament.ID, 3)
	board := env.createBoard(t, tournament.ID, "Stage", "stage-1", 1)

	state, err := env.shootout.Start(env.ctx, admin, tournament.ID, &board.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.ShootoutWaitingForSelection, state.Status)

	boardCaller := auth.Caller{BoardCode: "STAGE-1"}
	state = env.throwShootout(t, boardCaller, tournament.ID, players[1].ID, [3]int{60, 60, 60})
	assert.Equal(t, bracket.ShootoutWaitingForSelection, state.Status)
	assert.Nil(t, state.CurrentPlayerID)

	p, err := env.stores.Players.GetPlayer(env.ctx, env.db, players[1].ID)
	require.NoError(t, err)
	require.NotNil(t, p.Seed)
	assert.Equal(t, 180, *p.Seed, "provisional seed is the score")

	env.throwShootout(t, admin, tournament.ID, players[0].ID, [3]int{20, 20, 20})

	view, err := env.shootout.Status(env.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Completed)
	assert.Equal(t, 1, view.Remaining)
	require.Len(t, view.RemainingPlayers, 1)
	assert.Equal(t, players[2].ID, view.RemainingPlayers[0].ID)

	_, err = env.shootout.Finalize(env.ctx, admin, tournament.ID)
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict, "not everyone has thrown")

	state = env.throwShootout(t, admin, tournament.ID, players[2].ID, [3]int{60, 1, 1})
	assert.Equal(t, bracket.ShootoutCompleted, state.Status)

	res, err := env.shootout.Finalize(env.ctx, admin, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.BracketSize)
	assert.Equal(t, 2, res.TotalRounds)

	results, err := env.stores.Shootouts.ListResults(env.ctx, env.db, tournament.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	wantOrder := []uuid.UUID{players[1].ID, players[2].ID, players[0].ID}
	for i, r := range results {
		assert.Equal(t, wantOrder[i], r.PlayerID)
		require.NotNil(t, r.Rank)
		assert.Equal(t, i+1, *r.Rank)
	}

	top, err := env.stores.Players.GetPlayer(env.ctx, env.db, players[1].ID)
	require.NoError(t, err)
	require.NotNil(t, top.Seed)
	assert.Equal(t, 1, *top.Seed)
	assert.Equal(t, bracket.PlayerActive, top.Status)

	stored, err := env.tournaments.GetTournament(env.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentActive, stored.Status)

	// the top seed has the bye and already waits in the final
	final := env.matchAt(t, tournament.ID, 2, 0)
	require.NotNil(t, final.Player1ID)
	assert.Equal(t, players[1].ID, *final.Player1ID)
}

func TestShootoutStart(t *testing.T) {
	env := newTestEnv(t)

	t.Run("registration still open", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.TournamentRegistrationOpen)
		env.createPlayers(t, tournament.ID, 2)
		_, err := env.shootout.Start(env.ctx, admin, tournament.ID, nil)
		var conflict *StateConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("too few players", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
		env.createPlayers(t, tournament.ID, 1)
		_, err := env.shootout.Start(env.ctx, admin, tournament.ID, nil)
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("board of another tournament", func(t *testing.T) {
		other := env.createTournament(t, bracket.TournamentRegistrationClosed)
		board := env.createBoard(t, other.ID, "Elsewhere", "else-1", 1)

		tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
		env.createPlayers(t, tournament.ID, 2)
		_, err := env.shootout.Start(env.ctx, admin, tournament.ID, &board.ID)
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("admin only", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
		env.createPlayers(t, tournament.ID, 2)
		_, err := env.shootout.Start(env.ctx, auth.Caller{}, tournament.ID, nil)
		var authErr *AuthorizationError
		require.ErrorAs(t, err, &authErr)
		assert.True(t, authErr.Unauthenticated)
	})
}

func TestShootoutTransitions(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
	players := env.createPlayers(t, tournament.ID, 2)
	board := env.createBoard(t, tournament.ID, "Stage", "stage-1", 1)
	_, err := env.shootout.Start(env.ctx, admin, tournament.ID, &board.ID)
	require.NoError(t, err)

	var conflict *StateConflictError
	_, err = env.shootout.StartThrowing(env.ctx, admin, tournament.ID)
	assert.ErrorAs(t, err, &conflict, "nobody selected yet")

	_, err = env.shootout.FinishPlayer(env.ctx, admin, tournament.ID, [3]int{1, 1, 1})
	assert.ErrorAs(t, err, &conflict, "nothing to record")

	_, err = env.shootout.SelectPlayer(env.ctx, auth.Caller{BoardCode: "wrong-code"}, tournament.ID, players[0].ID)
	var authErr *AuthorizationError
	assert.ErrorAs(t, err, &authErr)

	state, err := env.shootout.SelectPlayer(env.ctx, admin, tournament.ID, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.ShootoutPlayerSelected, state.Status)
	require.NotNil(t, state.CurrentPlayerID)

	state, err = env.shootout.CancelSelection(env.ctx, admin, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.ShootoutWaitingForSelection, state.Status)
	assert.Nil(t, state.CurrentPlayerID)

	_, err = env.shootout.SelectPlayer(env.ctx, admin, tournament.ID, uuid.New())
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)

	_, err = env.shootout.SelectPlayer(env.ctx, admin, tournament.ID, players[1].ID)
	require.NoError(t, err)
	_, err = env.shootout.StartThrowing(env.ctx, admin, tournament.ID)
	require.NoError(t, err)
	_, err = env.shootout.CompleteThrowing(env.ctx, admin, tournament.ID)
	require.NoError(t, err)

	_, err = env.shootout.FinishPlayer(env.ctx, admin, tournament.ID, [3]int{61, 0, 0})
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	state, err = env.shootout.FinishPlayer(env.ctx, admin, tournament.ID, [3]int{25, 50, 0})
	require.NoError(t, err)
	assert.Equal(t, bracket.ShootoutWaitingForSelection, state.Status)

	assert.Contains(t, env.events.kinds(), notify.GameUpdate)
}

func TestShootoutReset(t *testing.T) {
	env := newTestEnv(t)
	tournament, players, _ := env.seededBracket(t, 4)

	err := env.shootout.Reset(env.ctx, auth.Caller{PlayerID: &players[0].ID}, tournament.ID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, env.shootout.Reset(env.ctx, admin, tournament.ID))

	stored, err := env.tournaments.GetTournament(env.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentRegistrationClosed, stored.Status)
	assert.Zero(t, stored.TotalRounds)

	matches, err := env.stores.Matches.ListMatches(env.ctx, env.db, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	results, err := env.stores.Shootouts.ListResults(env.ctx, env.db, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	list, err := env.tournaments.ListPlayers(env.ctx, tournament.ID)
	require.NoError(t, err)
	for _, p := range list {
		assert.Nil(t, p.Seed)
		assert.Equal(t, bracket.PlayerConfirmed, p.Status)
	}

	// a second reset has nothing to reset
	err = env.shootout.Reset(env.ctx, admin, tournament.ID)
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	// and the shootout can run again
	_, err = env.shootout.Start(env.ctx, admin, tournament.ID, nil)
	require.NoError(t, err)
}

func TestShootoutFollowsPlayerStatus(t *testing.T) {
	env := newTestEnv(t)

	start := func(t *testing.T) (*bracket.Tournament, []bracket.Player) {
		t.Helper()
		tournament := env.createTournament(t, bracket.TournamentRegistrationClosed)
		players := env.createPlayers(t, tournament.ID, 3)
		_, err := env.shootout.Start(env.ctx, admin, tournament.ID, nil)
		require.NoError(t, err)
		return tournament, players
	}
	state := func(t *testing.T, tournamentID uuid.UUID) *ShootoutStatusView {
		t.Helper()
		view, err := env.shootout.Status(env.ctx, tournamentID)
		require.NoError(t, err)
		return view
	}

	t.Run("withdrawing the last player to throw completes it", func(t *testing.T) {
		tournament, players := start(t)
		env.throwShootout(t, admin, tournament.ID, players[0].ID, [3]int{60, 60, 60})
		env.throwShootout(t, admin, tournament.ID, players[1].ID, [3]int{20, 20, 20})

		_, err := env.tournaments.SetPlayerStatus(env.ctx, admin, players[2].ID, bracket.PlayerWithdrawn)
		require.NoError(t, err)

		view := state(t, tournament.ID)
		assert.Equal(t, bracket.ShootoutCompleted, view.State.Status)
		assert.Zero(t, view.Remaining)

		res, err := env.shootout.Finalize(env.ctx, admin, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.BracketSize)
		for _, m := range res.Matches {
			assert.Zero(t, m.SlotOf(players[2].ID), "withdrawn player has no seat")
		}
	})

	t.Run("reinstating a player reopens a completed shootout", func(t *testing.T) {
		tournament, players := start(t)
		_, err := env.tournaments.SetPlayerStatus(env.ctx, admin, players[2].ID, bracket.PlayerWithdrawn)
		require.NoError(t, err)
		env.throwShootout(t, admin, tournament.ID, players[0].ID, [3]int{60, 60, 60})
		done := env.throwShootout(t, admin, tournament.ID, players[1].ID, [3]int{20, 20, 20})
		require.Equal(t, bracket.ShootoutCompleted, done.Status)

		_, err = env.tournaments.SetPlayerStatus(env.ctx, admin, players[2].ID, bracket.PlayerConfirmed)
		require.NoError(t, err)

		view := state(t, tournament.ID)
		assert.Equal(t, bracket.ShootoutWaitingForSelection, view.State.Status)
		assert.Equal(t, 1, view.Remaining)

		_, err = env.shootout.Finalize(env.ctx, admin, tournament.ID)
		var conflict *StateConflictError
		require.ErrorAs(t, err, &conflict)

		done = env.throwShootout(t, admin, tournament.ID, players[2].ID, [3]int{57, 57, 57})
		assert.Equal(t, bracket.ShootoutCompleted, done.Status)

		res, err := env.shootout.Finalize(env.ctx, admin, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, res.BracketSize)

		reinstated, err := env.stores.Players.GetPlayer(env.ctx, env.db, players[2].ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.PlayerActive, reinstated.Status)
		require.NotNil(t, reinstated.Seed)
		assert.Equal(t, 2, *reinstated.Seed)
	})

	t.Run("withdrawing the selected player frees the oche", func(t *testing.T) {
		tournament, players := start(t)
		_, err := env.shootout.SelectPlayer(env.ctx, admin, tournament.ID, players[0].ID)
		require.NoError(t, err)
		_, err = env.shootout.StartThrowing(env.ctx, admin, tournament.ID)
		require.NoError(t, err)

		_, err = env.tournaments.SetPlayerStatus(env.ctx, admin, players[0].ID, bracket.PlayerWithdrawn)
		require.NoError(t, err)

		view := state(t, tournament.ID)
		assert.Equal(t, bracket.ShootoutWaitingForSelection, view.State.Status)
		assert.Nil(t, view.State.CurrentPlayerID)
		assert.Equal(t, 2, view.Remaining)
	})
}
