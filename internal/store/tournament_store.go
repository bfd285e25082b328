package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Every store method takes the executor it should run on, so the same call
// works against the pool or inside a transaction.

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO tournaments (id, name, status, max_players, shootout_board_id, total_rounds, created_at)
        VALUES (:id, :name, :status, :max_players, :shootout_board_id, :total_rounds, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, "SELECT * FROM tournaments WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := q.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ?", status, id)
	return err
}

func (s *TournamentStore) SetShootoutBoard(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, boardID *uuid.UUID) error {
	_, err := q.ExecContext(ctx, "UPDATE tournaments SET shootout_board_id = ? WHERE id = ?", boardID, id)
	return err
}

func (s *TournamentStore) SetTotalRounds(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, rounds int) error {
	_, err := q.ExecContext(ctx, "UPDATE tournaments SET total_rounds = ? WHERE id = ?", rounds, id)
	return err
}

// GetBracketConfig falls back to the defaults when the tournament has never
// been configured.
func (s *TournamentStore) GetBracketConfig(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (*bracket.BracketConfig, error) {
	var cfg bracket.BracketConfig
	err := sqlx.GetContext(ctx, q, &cfg, "SELECT * FROM bracket_configs WHERE tournament_id = ?", tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return bracket.DefaultBracketConfig(tournamentID), nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *TournamentStore) UpsertBracketConfig(ctx context.Context, q sqlx.ExtContext, cfg *bracket.BracketConfig) error {
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO bracket_configs (tournament_id, seeding_algorithm, legs_per_round, auto_assign_boards, main_board_priority)
		VALUES (:tournament_id, :seeding_algorithm, :legs_per_round, :auto_assign_boards, :main_board_priority)
		ON CONFLICT (tournament_id) DO UPDATE SET
			seeding_algorithm = excluded.seeding_algorithm,
			legs_per_round = excluded.legs_per_round,
			auto_assign_boards = excluded.auto_assign_boards,
			main_board_priority = excluded.main_board_priority`, cfg)
	return err
}
