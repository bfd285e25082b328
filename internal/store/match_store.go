package store

import (
	"context"
	"errors"
	"time"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

const insertMatchQuery = `INSERT INTO matches (id, tournament_id, round, match_index, player1_id, player2_id, board_id, last_board_id, status,
		legs_to_win, player1_legs, player2_legs, current_leg, winner_id, promoted, current_throw, started_at, finished_at, created_at)
	VALUES (:id, :tournament_id, :round, :match_index, :player1_id, :player2_id, :board_id, :last_board_id, :status,
		:legs_to_win, :player1_legs, :player2_legs, :current_leg, :winner_id, :promoted, :current_throw, :started_at, :finished_at, :created_at)`

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (s *MatchStore) CreateMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, q, insertMatchQuery, matches)
	return err
}

func (s *MatchStore) CreateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	_, err := sqlx.NamedExecContext(ctx, q, insertMatchQuery, match)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetMatchAt looks a cell up by its bracket position.
func (s *MatchStore) GetMatchAt(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, round, index int) (*bracket.Match, error) {
	var match bracket.Match
	err := sqlx.GetContext(ctx, q, &match,
		"SELECT * FROM matches WHERE tournament_id = ? AND round = ? AND match_index = ?", tournamentID, round, index)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchStore) ListMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, match_index ASC", tournamentID)
	return matches, err
}

func (s *MatchStore) ListRound(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? AND round = ? ORDER BY match_index ASC", tournamentID, round)
	return matches, err
}

func (s *MatchStore) CountRound(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, round int) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND round = ?", tournamentID, round)
	return n, err
}

// CountUnfinished counts matches of a round that are neither finished nor cancelled.
func (s *MatchStore) CountUnfinished(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, round int) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND round = ? AND status NOT IN (?, ?)",
		tournamentID, round, bracket.MatchFinished, bracket.MatchCancelled)
	return n, err
}

func (s *MatchStore) DeleteMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ?", tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) UpdateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	_, err := sqlx.NamedExecContext(ctx, q, `UPDATE matches SET
		player1_id = :player1_id,
		player2_id = :player2_id,
		board_id = :board_id,
		last_board_id = :last_board_id,
		status = :status,
		legs_to_win = :legs_to_win,
		player1_legs = :player1_legs,
		player2_legs = :player2_legs,
		current_leg = :current_leg,
		winner_id = :winner_id,
		promoted = :promoted,
		current_throw = :current_throw,
		started_at = :started_at,
		finished_at = :finished_at
		WHERE id = :id`, match)
	return err
}

// IncrementLeg credits a leg to slot only while the match is still on
// expectedLeg, so a checkout can be counted once at most.
func (s *MatchStore) IncrementLeg(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID, slot, expectedLeg int) (bool, error) {
	column := "player1_legs"
	if slot == 2 {
		column = "player2_legs"
	}
	res, err := q.ExecContext(ctx, `UPDATE matches SET `+column+` = `+column+` + 1,
		current_leg = current_leg + 1,
		current_throw = NULL
		WHERE id = ? AND current_leg = ? AND status = ?`, matchID, expectedLeg, bracket.MatchActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MatchStore) SetCurrentThrow(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID, current *bracket.CurrentThrow) error {
	_, err := q.ExecContext(ctx, "UPDATE matches SET current_throw = ? WHERE id = ?", current, matchID)
	return err
}

// ActiveMatchOnBoard returns the ACTIVE match a board is hosting, other than
// exclude, or nil.
func (s *MatchStore) ActiveMatchOnBoard(ctx context.Context, q sqlx.ExtContext, boardID, exclude uuid.UUID) (*bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches,
		"SELECT * FROM matches WHERE board_id = ? AND status = ? AND id <> ? LIMIT 1", boardID, bracket.MatchActive, exclude)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

// ListReadyMatches returns waiting matches with both players seated and no board.
func (s *MatchStore) ListReadyMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches, `SELECT * FROM matches
		WHERE tournament_id = ? AND status = ? AND board_id IS NULL
		AND player1_id IS NOT NULL AND player2_id IS NOT NULL
		ORDER BY round ASC, match_index ASC`, tournamentID, bracket.MatchWaiting)
	return matches, err
}

func (s *MatchStore) CreateThrow(ctx context.Context, q sqlx.ExtContext, t *bracket.Throw) error {
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO throws (id, match_id, player_id, leg, seq, dart1, dart2, dart3, score, created_at)
		VALUES (:id, :match_id, :player_id, :leg, :seq, :dart1, :dart2, :dart3, :score, :created_at)`, t)
	return err
}

// NextThrowSeq hands out the server-side ordering for a match's throws.
func (s *MatchStore) NextThrowSeq(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID) (int, error) {
	var seq int
	err := sqlx.GetContext(ctx, q, &seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM throws WHERE match_id = ?", matchID)
	return seq, err
}

func (s *MatchStore) ListLegThrows(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID, leg int) ([]bracket.Throw, error) {
	var throws []bracket.Throw
	err := sqlx.SelectContext(ctx, q, &throws,
		"SELECT * FROM throws WHERE match_id = ? AND leg = ? ORDER BY seq ASC", matchID, leg)
	return throws, err
}

func (s *MatchStore) UpdateThrow(ctx context.Context, q sqlx.ExtContext, t *bracket.Throw) error {
	now := time.Now().UTC()
	t.UpdatedAt = &now
	_, err := sqlx.NamedExecContext(ctx, q, `UPDATE throws SET
		dart1 = :dart1, dart2 = :dart2, dart3 = :dart3, score = :score, updated_at = :updated_at
		WHERE id = :id`, t)
	return err
}

func (s *MatchStore) DeleteThrows(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM throws WHERE match_id = ?", matchID)
	return err
}

func (s *MatchStore) CountThrows(ctx context.Context, q sqlx.ExtContext, matchID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM throws WHERE match_id = ?", matchID)
	return n, err
}

// ListBoardQueue returns waiting matches already assigned to a board, oldest round first.
func (s *MatchStore) ListBoardQueue(ctx context.Context, q sqlx.ExtContext, boardID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches, `SELECT * FROM matches
		WHERE board_id = ? AND status = ?
		AND player1_id IS NOT NULL AND player2_id IS NOT NULL
		ORDER BY round ASC, match_index ASC`, boardID, bracket.MatchWaiting)
	return matches, err
}
