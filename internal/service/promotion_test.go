package service

import (
	"testing"
	"time"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finishDirect marks a match won by its first player without playing it.
func (e *testEnv) finishDirect(t *testing.T, m *bracket.Match) uuid.UUID {
	t.Helper()
	require.NotNil(t, m.Player1ID)
	now := time.Now().UTC()
	m.Status = bracket.MatchFinished
	m.Player1Legs = m.LegsToWin
	m.WinnerID = m.Player1ID
	m.FinishedAt = &now
	require.NoError(t, e.stores.Matches.UpdateMatch(e.ctx, e.db, m))
	return *m.WinnerID
}

func TestPromoteDestinationFormula(t *testing.T) {
	env := newTestEnv(t)
	tournament, _, _ := env.seededBracket(t, 32)

	round1, err := env.stores.Matches.ListRound(env.ctx, env.db, tournament.ID, 1)
	require.NoError(t, err)
	require.Len(t, round1, 16)

	for i := range round1 {
		winner := env.finishDirect(t, &round1[i])

		res, err := env.promotion.Promote(env.ctx, round1[i].ID)
		require.NoError(t, err)
		require.NotNil(t, res.Destination)

		dest := env.matchAt(t, tournament.ID, 2, i/2)
		assert.Equal(t, dest.ID, res.Destination.ID)
		if i%2 == 0 {
			require.NotNil(t, dest.Player1ID, "source %d", i)
			assert.Equal(t, winner, *dest.Player1ID, "source %d", i)
		} else {
			require.NotNil(t, dest.Player2ID, "source %d", i)
			assert.Equal(t, winner, *dest.Player2ID, "source %d", i)
		}
	}
}

func TestPromoteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	tournament, _, _ := env.seededBracket(t, 4)

	m := env.matchAt(t, tournament.ID, 1, 0)
	winner := env.finishDirect(t, m)

	first, err := env.promotion.Promote(env.ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyPromoted)

	second, err := env.promotion.Promote(env.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyPromoted)
	assert.Nil(t, second.Destination)

	final := env.matchAt(t, tournament.ID, 2, 0)
	assert.Equal(t, winner, *final.Player1ID)
	assert.Nil(t, final.Player2ID)
}

func TestPromoteCreatesMissingDestination(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.createTournament(t, bracket.TournamentActive)
	players := env.createPlayers(t, tournament.ID, 4)

	// sparse bracket: only round one exists and no round count is recorded
	now := time.Now().UTC()
	round1 := []bracket.Match{
		{ID: uuid.New(), TournamentID: tournament.ID, Round: 1, MatchIndex: 0, Player1ID: &players[0].ID, Player2ID: &players[3].ID,
			Status: bracket.MatchActive, LegsToWin: 2, CurrentLeg: 1, CreatedAt: now},
		{ID: uuid.New(), TournamentID: tournament.ID, Round: 1, MatchIndex: 1, Player1ID: &players[1].ID, Player2ID: &players[2].ID,
			Status: bracket.MatchActive, LegsToWin: 2, CurrentLeg: 1, CreatedAt: now},
	}
	require.NoError(t, env.stores.Matches.CreateMatches(env.ctx, env.db, round1))

	// keep the fallback from calling the first match a final
	require.NoError(t, env.stores.Tournaments.SetTotalRounds(env.ctx, env.db, tournament.ID, 2))

	env.finishDirect(t, &round1[1])
	res, err := env.promotion.Promote(env.ctx, round1[1].ID)
	require.NoError(t, err)
	require.NotNil(t, res.Destination)

	final := env.matchAt(t, tournament.ID, 2, 0)
	assert.Nil(t, final.Player1ID)
	require.NotNil(t, final.Player2ID)
	assert.Equal(t, players[1].ID, *final.Player2ID)
	assert.Equal(t, bracket.MatchWaiting, final.Status)
	assert.Equal(t, bracket.DefaultLegsToWin(2), final.LegsToWin)

	env.finishDirect(t, &round1[0])
	_, err = env.promotion.Promote(env.ctx, round1[0].ID)
	require.NoError(t, err)

	final = env.reload(t, final.ID)
	assert.Equal(t, players[0].ID, *final.Player1ID)
	assert.Equal(t, players[1].ID, *final.Player2ID)

	n, err := env.stores.Matches.CountRound(env.ctx, env.db, tournament.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPromoteFinalFinishesTournament(t *testing.T) {
	env := newTestEnv(t)
	tournament, _, _ := env.seededBracket(t, 2)

	final := env.matchAt(t, tournament.ID, 1, 0)
	env.finishDirect(t, final)

	res, err := env.promotion.Promote(env.ctx, final.ID)
	require.NoError(t, err)
	assert.True(t, res.TournamentFinished)
	assert.Nil(t, res.Destination)

	stored, err := env.tournaments.GetTournament(env.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentFinished, stored.Status)
}

func TestPromoteFinalWithoutRoundCount(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.createTournament(t, bracket.TournamentActive)
	players := env.createPlayers(t, tournament.ID, 2)

	m := &bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, Round: 1, MatchIndex: 0,
		Player1ID: &players[0].ID, Player2ID: &players[1].ID, Status: bracket.MatchActive,
		LegsToWin: 2, CurrentLeg: 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, env.stores.Matches.CreateMatch(env.ctx, env.db, m))
	env.finishDirect(t, m)

	res, err := env.promotion.Promote(env.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, res.TournamentFinished)

	n, err := env.stores.Matches.CountRound(env.ctx, env.db, tournament.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPromoteRejects(t *testing.T) {
	env := newTestEnv(t)
	tournament, players, _ := env.seededBracket(t, 4)

	t.Run("unfinished match", func(t *testing.T) {
		m := env.matchAt(t, tournament.ID, 1, 1)
		_, err := env.promotion.Promote(env.ctx, m.ID)
		var conflict *StateConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("slot taken by someone else", func(t *testing.T) {
		final := env.matchAt(t, tournament.ID, 2, 0)
		final.Player1ID = &players[3].ID
		require.NoError(t, env.stores.Matches.UpdateMatch(env.ctx, env.db, final))

		m := env.matchAt(t, tournament.ID, 1, 0)
		env.finishDirect(t, m)

		_, err := env.promotion.Promote(env.ctx, m.ID)
		var conflict *StateConflictError
		assert.ErrorAs(t, err, &conflict)
		assert.False(t, env.reload(t, m.ID).Promoted)
	})

	t.Run("missing match", func(t *testing.T) {
		_, err := env.promotion.Promote(env.ctx, uuid.New())
		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
	})
}
