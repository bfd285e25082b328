package store

import (
	"context"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ShootoutStore struct {
	db *sqlx.DB
}

const (
	upsertShootoutStateQuery = `
		INSERT INTO shootout_states (tournament_id, status, current_player_id, updated_at)
		VALUES (:tournament_id, :status, :current_player_id, :updated_at)
		ON CONFLICT (tournament_id) DO UPDATE SET
			status = excluded.status,
			current_player_id = excluded.current_player_id,
			updated_at = excluded.updated_at
	`
	upsertShootoutResultQuery = `
		INSERT INTO shootout_results (id, tournament_id, player_id, dart1, dart2, dart3, score, rank, completed_at)
		VALUES (:id, :tournament_id, :player_id, :dart1, :dart2, :dart3, :score, :rank, :completed_at)
		ON CONFLICT (tournament_id, player_id) DO UPDATE SET
			dart1 = excluded.dart1,
			dart2 = excluded.dart2,
			dart3 = excluded.dart3,
			score = excluded.score,
			completed_at = excluded.completed_at
	`
	// Ties go to whoever finished first.
	listShootoutResultsQuery = `
		SELECT * FROM shootout_results
		WHERE tournament_id = ?
		ORDER BY score DESC, completed_at ASC, id ASC
	`
)

func NewShootoutStore(db *sqlx.DB) *ShootoutStore {
	return &ShootoutStore{db: db}
}

func (s *ShootoutStore) GetState(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (*bracket.ShootoutState, error) {
	var state bracket.ShootoutState
	if err := sqlx.GetContext(ctx, q, &state, "SELECT * FROM shootout_states WHERE tournament_id = ?", tournamentID); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *ShootoutStore) SaveState(ctx context.Context, q sqlx.ExtContext, state *bracket.ShootoutState) error {
	_, err := sqlx.NamedExecContext(ctx, q, upsertShootoutStateQuery, state)
	return err
}

// UpsertResult keeps one row per (tournament, player); a second submission
// overwrites the first.
func (s *ShootoutStore) UpsertResult(ctx context.Context, q sqlx.ExtContext, result *bracket.ShootoutResult) error {
	_, err := sqlx.NamedExecContext(ctx, q, upsertShootoutResultQuery, result)
	return err
}

func (s *ShootoutStore) ListResults(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.ShootoutResult, error) {
	var results []bracket.ShootoutResult
	err := sqlx.SelectContext(ctx, q, &results, listShootoutResultsQuery, tournamentID)
	return results, err
}

// CountCompetingResults counts results that belong to players still competing.
func (s *ShootoutStore) CountCompetingResults(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM shootout_results r
		JOIN players p ON p.id = r.player_id
		WHERE r.tournament_id = ? AND p.status NOT IN ('WITHDRAWN', 'WAITING_LIST')`, tournamentID)
	return n, err
}

func (s *ShootoutStore) SetRank(ctx context.Context, q sqlx.ExtContext, resultID uuid.UUID, rank int) error {
	_, err := q.ExecContext(ctx, "UPDATE shootout_results SET rank = ? WHERE id = ?", rank, resultID)
	return err
}

func (s *ShootoutStore) DeleteResults(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM shootout_results WHERE tournament_id = ?", tournamentID)
	return err
}
