package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/Exanteros/darts-sub002/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketGeneration struct {
	db        *sqlx.DB
	stores    *store.Stores
	promotion *Promotion
	notifier  Notifier
	shuffle   func(n int, swap func(i, j int))
}

func NewBracketGeneration(db *sqlx.DB, stores *store.Stores, promotion *Promotion, notifier Notifier) *BracketGeneration {
	return &BracketGeneration{
		db:        db,
		stores:    stores,
		promotion: promotion,
		notifier:  notifier,
		shuffle:   rand.Shuffle,
	}
}

type GenerateResult struct {
	Matches       []bracket.Match `json:"matches"`
	Deleted       int64           `json:"deleted"`
	BracketSize   int             `json:"bracket_size"`
	TotalRounds   int             `json:"total_rounds"`
	ActiveMatchID *uuid.UUID      `json:"active_match_id,omitempty"`
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// Pairs the i-th ranked player with the i-th from the bottom: 0 v n-1, 1 v n-2, ...
func generateRound1Pairs(bracketSize int) [][2]int {
	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < bracketSize/2; i++ {
		pairs = append(pairs, [2]int{i, bracketSize - 1 - i})
	}
	return pairs
}

// Generate bracket structure for single elimination. Round one is seated from
// ranked, where a missing opponent makes a finished bye; later rounds are empty.
func generateSingleElimBracket(tournamentID uuid.UUID, ranked []uuid.UUID, legs bracket.LegsSchedule, now time.Time) []bracket.Match {
	bracketSize := calcBracketSize(len(ranked))
	if bracketSize < 2 {
		return nil
	}
	totalRounds := int(math.Log2(float64(bracketSize)))

	newMatch := func(round, index int) bracket.Match {
		return bracket.Match{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Round:        round,
			MatchIndex:   index,
			Status:       bracket.MatchWaiting,
			LegsToWin:    legs.LegsToWin(round),
			CurrentLeg:   1,
			CreatedAt:    now,
		}
	}

	matches := make([]bracket.Match, 0, bracketSize-1)
	for i, pair := range generateRound1Pairs(bracketSize) {
		m := newMatch(1, i)
		if pair[0] < len(ranked) {
			m.Player1ID = utils.Ptr(ranked[pair[0]])
		}
		if pair[1] < len(ranked) {
			m.Player2ID = utils.Ptr(ranked[pair[1]])
		}

		// Byes are decided on the spot
		if m.IsBye() {
			m.Status = bracket.MatchFinished
			if m.Player1ID != nil {
				m.WinnerID = utils.Ptr(*m.Player1ID)
			} else {
				m.WinnerID = utils.Ptr(*m.Player2ID)
			}
			m.FinishedAt = utils.Ptr(now)
		}
		matches = append(matches, m)
	}

	for r := 2; r <= totalRounds; r++ {
		for i := 0; i < bracketSize>>r; i++ {
			matches = append(matches, newMatch(r, i))
		}
	}

	return matches
}

// GenerateFromShootout builds the bracket from the shootout ranking. Running it
// again replaces whatever bracket the tournament had.
func (s *BracketGeneration) GenerateFromShootout(ctx context.Context, tournamentID uuid.UUID) (*GenerateResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := s.generateTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("bracket generated",
		"tournament_id", tournamentID,
		"bracket_size", res.BracketSize,
		"matches", len(res.Matches),
		"replaced", res.Deleted,
	)
	s.notifier.Publish(tournamentEvent(notify.GameUpdate, tournamentID, res))
	return res, nil
}

func (s *BracketGeneration) generateTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*GenerateResult, error) {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFoundOr(err, "tournament")
	}

	results, err := s.stores.Shootouts.ListResults(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shootout results: %w", err)
	}
	if len(results) == 0 {
		return nil, &NoDataError{Msg: "no shootout results for this tournament"}
	}

	players, err := s.stores.Players.ListPlayers(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	competing := make(map[uuid.UUID]bool, len(players))
	for _, p := range players {
		competing[p.ID] = p.Status.Competing()
	}

	ranked := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		if competing[r.PlayerID] {
			ranked = append(ranked, r.PlayerID)
		}
	}
	if len(ranked) < 2 {
		return nil, validationf("at least 2 ranked players are needed, got %d", len(ranked))
	}
	if len(ranked) > bracket.MaxPlayers {
		return nil, validationf("at most %d players fit a bracket, got %d", bracket.MaxPlayers, len(ranked))
	}

	switch tournament.Status {
	case bracket.TournamentShootout, bracket.TournamentActive:
	case bracket.TournamentFinished:
		return nil, conflictf("tournament is finished, the bracket can no longer change")
	default:
		return nil, conflictf("bracket cannot be generated while the tournament is %s", tournament.Status)
	}

	cfg, err := s.stores.Tournaments.GetBracketConfig(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bracket config: %w", err)
	}

	if cfg.SeedingAlgorithm == bracket.SeedingRandom {
		s.shuffle(len(ranked), func(i, j int) { ranked[i], ranked[j] = ranked[j], ranked[i] })
		if err := s.stores.Players.ClearSeeds(ctx, tx, tournamentID); err != nil {
			return nil, fmt.Errorf("failed to clear seeds: %w", err)
		}
	} else {
		for i, id := range ranked {
			if err := s.stores.Players.UpdatePlayerSeed(ctx, tx, id, utils.Ptr(i+1)); err != nil {
				return nil, fmt.Errorf("failed to update seed: %w", err)
			}
		}
	}

	deleted, err := s.stores.Matches.DeleteMatches(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete previous bracket: %w", err)
	}

	now := time.Now().UTC()
	matches := generateSingleElimBracket(tournamentID, ranked, cfg.LegsPerRound, now)
	bracketSize := calcBracketSize(len(ranked))
	totalRounds := int(math.Log2(float64(bracketSize)))

	if err := s.stores.Matches.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	if err := s.stores.Players.SetStatusForPlayers(ctx, tx, ranked, bracket.PlayerActive); err != nil {
		return nil, fmt.Errorf("failed to activate players: %w", err)
	}
	if err := s.stores.Tournaments.SetTotalRounds(ctx, tx, tournamentID, totalRounds); err != nil {
		return nil, fmt.Errorf("failed to set total rounds: %w", err)
	}
	if tournament.Status != bracket.TournamentActive {
		if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentActive); err != nil {
			return nil, fmt.Errorf("failed to update tournament status: %w", err)
		}
	}

	for i := range matches {
		if matches[i].IsBye() {
			if _, err := s.promotion.promoteTx(ctx, tx, &matches[i]); err != nil {
				return nil, fmt.Errorf("failed to promote bye: %w", err)
			}
		}
	}

	activeID, err := s.assignBoards(ctx, tx, tournamentID, matches, now)
	if err != nil {
		return nil, err
	}

	stored, err := s.stores.Matches.ListMatches(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	return &GenerateResult{
		Matches:       stored,
		Deleted:       deleted,
		BracketSize:   bracketSize,
		TotalRounds:   totalRounds,
		ActiveMatchID: activeID,
	}, nil
}

// assignBoards hands active boards, by priority, to playable round-one
// matches. The first of them starts right away.
func (s *BracketGeneration) assignBoards(ctx context.Context, tx sqlx.ExtContext, tournamentID uuid.UUID, matches []bracket.Match, now time.Time) (*uuid.UUID, error) {
	boards, err := s.stores.Boards.ListActiveBoards(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	var activeID *uuid.UUID
	next := 0
	for i := range matches {
		m := &matches[i]
		if next >= len(boards) {
			break
		}
		if m.Round != 1 || !m.HasBothPlayers() {
			continue
		}

		m.BoardID = utils.Ptr(boards[next].ID)
		next++
		if activeID == nil {
			m.Status = bracket.MatchActive
			m.StartedAt = utils.Ptr(now)
			activeID = utils.Ptr(m.ID)
		}
		if err := s.stores.Matches.UpdateMatch(ctx, tx, m); err != nil {
			return nil, fmt.Errorf("failed to assign board: %w", err)
		}
	}

	return activeID, nil
}
