package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/Exanteros/darts-sub002/views"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	db          *sqlx.DB
	stores      *store.Stores
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewTournamentService(db *sqlx.DB, stores *store.Stores, tokenSecret []byte, tokenTTL time.Duration) *TournamentService {
	return &TournamentService{db: db, stores: stores, tokenSecret: tokenSecret, tokenTTL: tokenTTL}
}

type TournamentInput struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
}

type BracketConfigInput struct {
	SeedingAlgorithm  bracket.SeedingAlgorithm `json:"seeding_algorithm"`
	LegsPerRound      bracket.LegsSchedule     `json:"legs_per_round"`
	AutoAssignBoards  *bool                    `json:"auto_assign_boards"`
	MainBoardPriority *bool                    `json:"main_board_priority"`
}

type BracketState struct {
	Tournament  *bracket.Tournament      `json:"tournament"`
	Config      *bracket.BracketConfig   `json:"config"`
	Players     []bracket.Player         `json:"players"`
	Boards      []bracket.Board          `json:"boards"`
	Results     []bracket.ShootoutResult `json:"shootout_results"`
	Bracket     views.BracketData        `json:"bracket"`
	NextMatchID *uuid.UUID               `json:"next_match_id,omitempty"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, caller auth.Caller, in TournamentInput) (*bracket.Tournament, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("tournament name is required")
	}
	maxPlayers := in.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = bracket.MaxPlayers
	}
	if maxPlayers < 2 || maxPlayers > bracket.MaxPlayers {
		return nil, validationf("max players must be between 2 and %d", bracket.MaxPlayers)
	}

	tournament := &bracket.Tournament{
		ID:         uuid.New(),
		Name:       name,
		Status:     bracket.TournamentRegistrationOpen,
		MaxPlayers: maxPlayers,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.stores.Tournaments.CreateTournament(ctx, s.db, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	return s.stores.Tournaments.ListTournaments(ctx)
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, s.db, id)
	if err != nil {
		return nil, notFoundOr(err, "tournament")
	}
	return tournament, nil
}

// AddPlayer registers a player. Past max_players they land on the waiting list.
func (s *TournamentService) AddPlayer(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, name string) (*bracket.Player, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("player name is required")
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
	if tournament.Status != bracket.TournamentRegistrationOpen {
		return nil, conflictf("registration is closed")
	}

	competing, err := s.stores.Players.CountCompeting(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}

	player := &bracket.Player{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Name:         name,
		Status:       bracket.PlayerRegistered,
		CreatedAt:    time.Now().UTC(),
	}
	if competing >= tournament.MaxPlayers {
		player.Status = bracket.PlayerWaitingList
	}
	if err := s.stores.Players.CreatePlayer(ctx, tx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, tx.Commit()
}

func (s *TournamentService) ListPlayers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Player, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.stores.Players.ListPlayers(ctx, s.db, tournamentID)
}

// SetPlayerStatus covers the registration statuses; ACTIVE and ELIMINATED
// belong to the bracket.
func (s *TournamentService) SetPlayerStatus(ctx context.Context, caller auth.Caller, playerID uuid.UUID, status bracket.PlayerStatus) (*bracket.Player, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	switch status {
	case bracket.PlayerRegistered, bracket.PlayerConfirmed, bracket.PlayerWithdrawn, bracket.PlayerWaitingList:
	case bracket.PlayerActive, bracket.PlayerEliminated:
		return nil, validationf("status %s is set by the bracket", status)
	default:
		return nil, validationf("unknown player status %q", status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	player, err := s.stores.Players.GetPlayer(ctx, tx, playerID)
	if err != nil {
		return nil, notFoundOr(err, "player")
	}
	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, player.TournamentID)
	if err != nil {
		return nil, notFoundOr(err, "tournament")
	}
	if tournament.Status == bracket.TournamentActive || tournament.Status == bracket.TournamentFinished {
		return nil, conflictf("players cannot change once the bracket is running")
	}

	if !player.Status.Competing() && status.Competing() {
		competing, err := s.stores.Players.CountCompeting(ctx, tx, tournament.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count players: %w", err)
		}
		if competing >= tournament.MaxPlayers {
			return nil, conflictf("tournament is full (%d players)", tournament.MaxPlayers)
		}
	}

	if err := s.stores.Players.UpdatePlayerStatus(ctx, tx, player.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}
	player.Status = status

	if tournament.Status == bracket.TournamentShootout {
		state, changed, err := reconcileShootout(ctx, tx, s.stores, tournament.ID)
		if err != nil {
			return nil, err
		}
		if changed {
			slog.Info("shootout state realigned", "tournament_id", tournament.ID, "player_id", player.ID, "status", state.Status)
		}
	}

	return player, tx.Commit()
}

func (s *TournamentService) CloseRegistration(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID) (*bracket.Tournament, error) {
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
	if tournament.Status != bracket.TournamentRegistrationOpen {
		return nil, conflictf("registration is not open, tournament is %s", tournament.Status)
	}
	if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentRegistrationClosed); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}
	tournament.Status = bracket.TournamentRegistrationClosed

	return tournament, tx.Commit()
}

func (s *TournamentService) GetBracketConfig(ctx context.Context, tournamentID uuid.UUID) (*bracket.BracketConfig, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.stores.Tournaments.GetBracketConfig(ctx, s.db, tournamentID)
}

// UpdateBracketConfig merges in over the stored configuration.
func (s *TournamentService) UpdateBracketConfig(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, in BracketConfigInput) (*bracket.BracketConfig, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if in.SeedingAlgorithm != "" && !in.SeedingAlgorithm.Valid() {
		return nil, validationf("unknown seeding algorithm %q", in.SeedingAlgorithm)
	}
	if err := in.LegsPerRound.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID); err != nil {
		return nil, notFoundOr(err, "tournament")
	}
	cfg, err := s.stores.Tournaments.GetBracketConfig(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bracket config: %w", err)
	}

	if in.SeedingAlgorithm != "" {
		cfg.SeedingAlgorithm = in.SeedingAlgorithm
	}
	if in.LegsPerRound != nil {
		cfg.LegsPerRound = in.LegsPerRound
	}
	if in.AutoAssignBoards != nil {
		cfg.AutoAssignBoards = *in.AutoAssignBoards
	}
	if in.MainBoardPriority != nil {
		cfg.MainBoardPriority = *in.MainBoardPriority
	}

	if err := s.stores.Tournaments.UpsertBracketConfig(ctx, tx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save bracket config: %w", err)
	}

	return cfg, tx.Commit()
}

// GetBracketState gathers everything a display needs in one read.
func (s *TournamentService) GetBracketState(ctx context.Context, tournamentID uuid.UUID) (*BracketState, error) {
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	state := &BracketState{Tournament: tournament}
	var matches []bracket.Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := s.stores.Tournaments.GetBracketConfig(gctx, s.db, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get bracket config: %w", err)
		}
		state.Config = cfg
		return nil
	})
	g.Go(func() error {
		players, err := s.stores.Players.ListPlayers(gctx, s.db, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get players: %w", err)
		}
		state.Players = players
		return nil
	})
	g.Go(func() error {
		boards, err := s.stores.Boards.ListBoards(gctx, s.db, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get boards: %w", err)
		}
		state.Boards = boards
		return nil
	})
	g.Go(func() error {
		results, err := s.stores.Shootouts.ListResults(gctx, s.db, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get shootout results: %w", err)
		}
		state.Results = results
		return nil
	})
	g.Go(func() error {
		list, err := s.stores.Matches.ListMatches(gctx, s.db, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		matches = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state.Bracket = views.PrepareBracketData(state.Players, matches, tournament.TotalRounds)
	for _, m := range matches {
		if m.Status == bracket.MatchActive || (m.Status == bracket.MatchWaiting && m.HasBothPlayers()) {
			id := m.ID
			state.NextMatchID = &id
			break
		}
	}
	return state, nil
}

// IssuePlayerToken signs a bearer token that lets a player score their own throws.
func (s *TournamentService) IssuePlayerToken(ctx context.Context, caller auth.Caller, playerID uuid.UUID) (string, error) {
	if err := requireAdmin(caller); err != nil {
		return "", err
	}
	player, err := s.stores.Players.GetPlayer(ctx, s.db, playerID)
	if err != nil {
		return "", notFoundOr(err, "player")
	}
	token, err := auth.GenerateToken(s.tokenSecret, &player.ID, false, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
