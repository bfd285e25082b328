package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/ratelimit"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var admin = auth.Caller{IsAdmin: true, RemoteAddr: "127.0.0.1"}

func TestMain(m *testing.M) {
	boardCodeCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// every pooled connection would otherwise get its own empty database
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []notify.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]notify.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Type)
	}
	return kinds
}

type testEnv struct {
	ctx         context.Context
	db          *sqlx.DB
	stores      *store.Stores
	events      *recorder
	boards      *BoardService
	promotion   *Promotion
	generator   *BracketGeneration
	matches     *MatchService
	shootout    *ShootoutService
	tournaments *TournamentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, setupTestDB(t))
}

func newTestEnvOn(t *testing.T, db *sqlx.DB) *testEnv {
	t.Helper()
	stores := store.New(db)
	events := &recorder{}

	boards := NewBoardService(db, stores, events)
	promotion := NewPromotion(db, stores, events)
	generator := NewBracketGeneration(db, stores, promotion, events)
	limiter := ratelimit.NewMemoryLimiter(20, time.Minute)

	return &testEnv{
		ctx:         context.Background(),
		db:          db,
		stores:      stores,
		events:      events,
		boards:      boards,
		promotion:   promotion,
		generator:   generator,
		matches:     NewMatchService(db, stores, boards, promotion, limiter, events),
		shootout:    NewShootoutService(db, stores, boards, generator, events),
		tournaments: NewTournamentService(db, stores, []byte("test-secret"), time.Hour),
	}
}

func (e *testEnv) createTournament(t *testing.T, status bracket.TournamentStatus) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:         uuid.New(),
		Name:       "Club Night",
		Status:     status,
		MaxPlayers: bracket.MaxPlayers,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, e.stores.Tournaments.CreateTournament(e.ctx, e.db, tournament))
	return tournament
}

func (e *testEnv) createPlayers(t *testing.T, tournamentID uuid.UUID, n int) []bracket.Player {
	t.Helper()
	players := make([]bracket.Player, 0, n)
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		p := bracket.Player{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         "Player " + string(rune('A'+i%26)),
			Status:       bracket.PlayerConfirmed,
			CreatedAt:    base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, e.stores.Players.CreatePlayer(e.ctx, e.db, &p))
		players = append(players, p)
	}
	return players
}

// rankPlayers writes shootout results so that players[0] ranks first.
func (e *testEnv) rankPlayers(t *testing.T, tournamentID uuid.UUID, players []bracket.Player) {
	t.Helper()
	base := time.Now().UTC()
	for i, p := range players {
		score := 180 - i*2
		result := &bracket.ShootoutResult{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			PlayerID:     p.ID,
			Dart1:        60,
			Dart2:        60,
			Dart3:        60 - i*2,
			Score:        score,
			CompletedAt:  base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, e.stores.Shootouts.UpsertResult(e.ctx, e.db, result))
	}
}

// seededBracket creates a tournament in the shootout with n ranked players
// and generates its bracket.
func (e *testEnv) seededBracket(t *testing.T, n int) (*bracket.Tournament, []bracket.Player, *GenerateResult) {
	t.Helper()
	tournament := e.createTournament(t, bracket.TournamentShootout)
	players := e.createPlayers(t, tournament.ID, n)
	e.rankPlayers(t, tournament.ID, players)

	res, err := e.generator.GenerateFromShootout(e.ctx, tournament.ID)
	require.NoError(t, err)
	return tournament, players, res
}

func (e *testEnv) createBoard(t *testing.T, tournamentID uuid.UUID, name, code string, priority int) *bracket.Board {
	t.Helper()
	board, err := e.boards.CreateBoard(e.ctx, admin, tournamentID, BoardInput{Name: name, AccessCode: code, Priority: priority})
	require.NoError(t, err)
	return board
}

func (e *testEnv) matchAt(t *testing.T, tournamentID uuid.UUID, round, index int) *bracket.Match {
	t.Helper()
	m, err := e.stores.Matches.GetMatchAt(e.ctx, e.db, tournamentID, round, index)
	require.NoError(t, err)
	return m
}

func (e *testEnv) reload(t *testing.T, matchID uuid.UUID) *bracket.Match {
	t.Helper()
	m, err := e.stores.Matches.GetMatch(e.ctx, e.db, matchID)
	require.NoError(t, err)
	return m
}

// checkoutVisits reach exactly 501: 180 + 180 + 141.
var checkoutVisits = [][3]int{{60, 60, 60}, {60, 60, 60}, {60, 57, 24}}

func visitScore(d [3]int) int { return d[0] + d[1] + d[2] }

func (e *testEnv) winLeg(t *testing.T, caller auth.Caller, matchID, playerID uuid.UUID) *ThrowResult {
	t.Helper()
	var res *ThrowResult
	for _, darts := range checkoutVisits {
		var err error
		res, err = e.matches.SubmitThrow(e.ctx, caller, matchID, ThrowInput{PlayerID: playerID, Darts: darts, Score: visitScore(darts)})
		require.NoError(t, err)
	}
	require.True(t, res.LegWon)
	return res
}

func (e *testEnv) winMatch(t *testing.T, caller auth.Caller, matchID, playerID uuid.UUID) *ThrowResult {
	t.Helper()
	for i := 0; i < 5; i++ {
		if res := e.winLeg(t, caller, matchID, playerID); res.MatchFinished {
			return res
		}
	}
	t.Fatal("match did not finish")
	return nil
}
