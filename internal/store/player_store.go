package store

import (
	"context"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	createPlayerQuery = `
		INSERT INTO players (id, tournament_id, name, seed, status, created_at) VALUES
		(:id, :tournament_id, :name, :seed, :status, :created_at)
	`
	getPlayerQuery   = "SELECT * FROM players WHERE id = ?"
	listPlayersQuery = `
		SELECT * FROM players
		WHERE tournament_id = ?
		ORDER BY seed IS NULL, seed ASC, created_at ASC
	`
	countCompetingQuery = `
		SELECT COUNT(*) FROM players
		WHERE tournament_id = ?
		AND status NOT IN ('WITHDRAWN', 'WAITING_LIST')
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, q sqlx.ExtContext, player *bracket.Player) error {
	_, err := sqlx.NamedExecContext(ctx, q, createPlayerQuery, player)
	return err
}

func (s *PlayerStore) GetPlayer(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Player, error) {
	var player bracket.Player
	if err := sqlx.GetContext(ctx, q, &player, getPlayerQuery, id); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) ListPlayers(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Player, error) {
	var players []bracket.Player
	err := sqlx.SelectContext(ctx, q, &players, listPlayersQuery, tournamentID)
	return players, err
}

// CountCompeting counts players that are neither withdrawn nor on the waiting list.
func (s *PlayerStore) CountCompeting(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, countCompetingQuery, tournamentID)
	return n, err
}

func (s *PlayerStore) UpdatePlayerStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status bracket.PlayerStatus) error {
	_, err := q.ExecContext(ctx, "UPDATE players SET status = ? WHERE id = ?", status, id)
	return err
}

func (s *PlayerStore) UpdatePlayerSeed(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, seed *int) error {
	_, err := q.ExecContext(ctx, "UPDATE players SET seed = ? WHERE id = ?", seed, id)
	return err
}

func (s *PlayerStore) ClearSeeds(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "UPDATE players SET seed = NULL WHERE tournament_id = ?", tournamentID)
	return err
}

func (s *PlayerStore) SetStatusForPlayers(ctx context.Context, q sqlx.ExtContext, ids []uuid.UUID, status bracket.PlayerStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE players SET status = ? WHERE id IN (?)", status, ids)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, q.Rebind(query), args...)
	return err
}
