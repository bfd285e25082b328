package store

import (
	"context"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BoardStore struct {
	db *sqlx.DB
}

func NewBoardStore(db *sqlx.DB) *BoardStore {
	return &BoardStore{db: db}
}

func (s *BoardStore) CreateBoard(ctx context.Context, q sqlx.ExtContext, board *bracket.Board) error {
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO boards (id, tournament_id, name, access_code_hash, is_active, is_main, priority, created_at)
		VALUES (:id, :tournament_id, :name, :access_code_hash, :is_active, :is_main, :priority, :created_at)`, board)
	return err
}

func (s *BoardStore) GetBoard(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Board, error) {
	var board bracket.Board
	if err := sqlx.GetContext(ctx, q, &board, "SELECT * FROM boards WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *BoardStore) ListBoards(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Board, error) {
	var boards []bracket.Board
	err := sqlx.SelectContext(ctx, q, &boards,
		"SELECT * FROM boards WHERE tournament_id = ? ORDER BY priority ASC, created_at ASC", tournamentID)
	return boards, err
}

func (s *BoardStore) ListActiveBoards(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Board, error) {
	var boards []bracket.Board
	err := sqlx.SelectContext(ctx, q, &boards,
		"SELECT * FROM boards WHERE tournament_id = ? AND is_active = 1 ORDER BY priority ASC, created_at ASC", tournamentID)
	return boards, err
}

// ListFreeBoards returns active boards that are not hosting an ACTIVE match.
func (s *BoardStore) ListFreeBoards(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Board, error) {
	var boards []bracket.Board
	err := sqlx.SelectContext(ctx, q, &boards, `SELECT b.* FROM boards b
		WHERE b.tournament_id = ? AND b.is_active = 1
		AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.board_id = b.id AND m.status = ?)
		ORDER BY b.priority ASC, b.created_at ASC`, tournamentID, bracket.MatchActive)
	return boards, err
}

func (s *BoardStore) ClearMainBoard(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "UPDATE boards SET is_main = 0 WHERE tournament_id = ?", tournamentID)
	return err
}

func (s *BoardStore) SetMainBoard(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	_, err := q.ExecContext(ctx, "UPDATE boards SET is_main = 1 WHERE id = ?", id)
	return err
}

func (s *BoardStore) SetBoardActive(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, active bool) error {
	_, err := q.ExecContext(ctx, "UPDATE boards SET is_active = ? WHERE id = ?", active, id)
	return err
}
