package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// boardCodeCost is the bcrypt cost used for board access codes.
var boardCodeCost = bcrypt.DefaultCost

const minBoardCodeLength = 4

const (
	generatedCodeLength   = 12
	generatedCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// generateBoardCode returns a random code that survives NormalizeBoardCode.
func generateBoardCode() (string, error) {
	buf := make([]byte, generatedCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = generatedCodeAlphabet[int(b)%len(generatedCodeAlphabet)]
	}
	return string(buf), nil
}

type BoardService struct {
	db       *sqlx.DB
	stores   *store.Stores
	notifier Notifier
}

func NewBoardService(db *sqlx.DB, stores *store.Stores, notifier Notifier) *BoardService {
	return &BoardService{db: db, stores: stores, notifier: notifier}
}

type BoardInput struct {
	Name       string `json:"name"`
	AccessCode string `json:"access_code"`
	Priority   int    `json:"priority"`
	IsMain     bool   `json:"is_main"`
}

func (s *BoardService) CreateBoard(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, in BoardInput) (*bracket.Board, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("board name is required")
	}
	code := auth.NormalizeBoardCode(in.AccessCode)
	generated := ""
	if code == "" {
		var err error
		if generated, err = generateBoardCode(); err != nil {
			return nil, fmt.Errorf("failed to generate access code: %w", err)
		}
		code = generated
	}
	if len(code) < minBoardCodeLength {
		return nil, validationf("access code must have at least %d characters", minBoardCodeLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), boardCodeCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash access code: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID); err != nil {
		return nil, notFoundOr(err, "tournament")
	}

	board := &bracket.Board{
		ID:             uuid.New(),
		TournamentID:   tournamentID,
		Name:           name,
		AccessCodeHash: string(hash),
		IsActive:       true,
		IsMain:         in.IsMain,
		Priority:       in.Priority,
		CreatedAt:      time.Now().UTC(),
	}

	if board.IsMain {
		if err := s.stores.Boards.ClearMainBoard(ctx, tx, tournamentID); err != nil {
			return nil, fmt.Errorf("failed to reset main board: %w", err)
		}
	}
	if err := s.stores.Boards.CreateBoard(ctx, tx, board); err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	board.AccessCode = generated
	return board, nil
}

func (s *BoardService) ListBoards(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Board, error) {
	if _, err := s.stores.Tournaments.GetTournament(ctx, s.db, tournamentID); err != nil {
		return nil, notFoundOr(err, "tournament")
	}
	return s.stores.Boards.ListBoards(ctx, s.db, tournamentID)
}

// SetMainBoard makes boardID the only main board of its tournament.
func (s *BoardService) SetMainBoard(ctx context.Context, caller auth.Caller, boardID uuid.UUID) (*bracket.Board, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	board, err := s.stores.Boards.GetBoard(ctx, tx, boardID)
	if err != nil {
		return nil, notFoundOr(err, "board")
	}
	if err := s.stores.Boards.ClearMainBoard(ctx, tx, board.TournamentID); err != nil {
		return nil, fmt.Errorf("failed to reset main board: %w", err)
	}
	if err := s.stores.Boards.SetMainBoard(ctx, tx, board.ID); err != nil {
		return nil, fmt.Errorf("failed to set main board: %w", err)
	}
	board.IsMain = true

	return board, tx.Commit()
}

func (s *BoardService) SetBoardActive(ctx context.Context, caller auth.Caller, boardID uuid.UUID, active bool) (*bracket.Board, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	board, err := s.stores.Boards.GetBoard(ctx, tx, boardID)
	if err != nil {
		return nil, notFoundOr(err, "board")
	}
	if !active {
		hosting, err := s.stores.Matches.ActiveMatchOnBoard(ctx, tx, board.ID, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check board matches: %w", err)
		}
		if hosting != nil {
			return nil, conflictf("board %q is hosting an active match", board.Name)
		}
	}
	if err := s.stores.Boards.SetBoardActive(ctx, tx, board.ID, active); err != nil {
		return nil, fmt.Errorf("failed to update board: %w", err)
	}
	board.IsActive = active

	return board, tx.Commit()
}

func codeMatches(board *bracket.Board, code string) bool {
	if code == "" || board.AccessCodeHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(board.AccessCodeHash), []byte(auth.NormalizeBoardCode(code)))
	return err == nil
}

// holdsMatch reports whether code belongs to the board assigned to match. A
// finished match keeps answering for the board that hosted it.
func (s *BoardService) holdsMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match, code string) (bool, error) {
	boardID := match.BoardID
	if boardID == nil && match.Status == bracket.MatchFinished {
		boardID = match.LastBoardID
	}
	if boardID == nil || code == "" {
		return false, nil
	}

	board, err := s.stores.Boards.GetBoard(ctx, q, *boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get board: %w", err)
	}
	return codeMatches(board, code), nil
}

func (s *BoardService) IsBoardAuthorizedForMatch(ctx context.Context, matchID uuid.UUID, code string) (bool, error) {
	match, err := s.stores.Matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return false, notFoundOr(err, "match")
	}
	return s.holdsMatch(ctx, s.db, match, code)
}

func (s *BoardService) isShootoutBoard(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament, code string) (bool, error) {
	if tournament.ShootoutBoardID == nil || code == "" {
		return false, nil
	}
	board, err := s.stores.Boards.GetBoard(ctx, q, *tournament.ShootoutBoardID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get shootout board: %w", err)
	}
	return codeMatches(board, code), nil
}

func (s *BoardService) IsShootoutBoard(ctx context.Context, tournamentID uuid.UUID, code string) (bool, error) {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, s.db, tournamentID)
	if err != nil {
		return false, notFoundOr(err, "tournament")
	}
	return s.isShootoutBoard(ctx, s.db, tournament, code)
}

// AssignBoard puts a ready match on a board and starts it.
func (s *BoardService) AssignBoard(ctx context.Context, caller auth.Caller, matchID, boardID uuid.UUID) (*bracket.Match, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.stores.Matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match")
	}
	board, err := s.stores.Boards.GetBoard(ctx, tx, boardID)
	if err != nil {
		return nil, notFoundOr(err, "board")
	}

	if board.TournamentID != match.TournamentID {
		return nil, validationf("board %q belongs to another tournament", board.Name)
	}
	if !board.IsActive {
		return nil, conflictf("board %q is not active", board.Name)
	}
	if match.Status != bracket.MatchWaiting {
		return nil, conflictf("match is %s, only waiting matches can be assigned", strings.ToLower(string(match.Status)))
	}
	if !match.HasBothPlayers() {
		return nil, conflictf("both players must be known before the match is assigned")
	}

	hosting, err := s.stores.Matches.ActiveMatchOnBoard(ctx, tx, board.ID, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check board matches: %w", err)
	}
	if hosting != nil {
		return nil, conflictf("board %q is already hosting another active match", board.Name)
	}

	now := time.Now().UTC()
	match.BoardID = &board.ID
	match.Status = bracket.MatchActive
	match.StartedAt = &now
	if err := s.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.notifier.Publish(matchEvent(notify.GameUpdate, match, nil, match))
	return match, nil
}

// AutoSchedule starts matches on every free active board: a board's own
// queued match first, then the next ready match of the tournament.
func (s *BoardService) AutoSchedule(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
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
	if !cfg.AutoAssignBoards {
		return nil, conflictf("automatic board assignment is disabled for this tournament")
	}

	started, err := s.scheduleTx(ctx, tx, tournamentID, cfg, 0)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range started {
		s.notifier.Publish(matchEvent(notify.GameUpdate, &started[i], nil, started[i]))
	}
	return started, nil
}

// scheduleTx fills free boards. A positive round restricts it to that round.
func (s *BoardService) scheduleTx(ctx context.Context, tx sqlx.ExtContext, tournamentID uuid.UUID, cfg *bracket.BracketConfig, round int) ([]bracket.Match, error) {
	free, err := s.stores.Boards.ListFreeBoards(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list free boards: %w", err)
	}
	if len(free) == 0 {
		return nil, nil
	}

	ready, err := s.stores.Matches.ListReadyMatches(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready matches: %w", err)
	}
	ready = inRound(ready, round)

	if cfg.MainBoardPriority {
		sort.SliceStable(ready, func(i, j int) bool { return ready[i].Round > ready[j].Round })
		sort.SliceStable(free, func(i, j int) bool { return free[i].IsMain && !free[j].IsMain })
	}

	now := time.Now().UTC()
	var started []bracket.Match
	for _, board := range free {
		queue, err := s.stores.Matches.ListBoardQueue(ctx, tx, board.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list board queue: %w", err)
		}
		queue = inRound(queue, round)

		var next bracket.Match
		switch {
		case len(queue) > 0:
			next = queue[0]
		case len(ready) > 0:
			next = ready[0]
			ready = ready[1:]
			boardID := board.ID
			next.BoardID = &boardID
		default:
			continue
		}

		next.Status = bracket.MatchActive
		next.StartedAt = &now
		if err := s.stores.Matches.UpdateMatch(ctx, tx, &next); err != nil {
			return nil, fmt.Errorf("failed to start match: %w", err)
		}
		started = append(started, next)
	}

	return started, nil
}

func inRound(matches []bracket.Match, round int) []bracket.Match {
	if round <= 0 {
		return matches
	}
	kept := matches[:0]
	for _, m := range matches {
		if m.Round == round {
			kept = append(kept, m)
		}
	}
	return kept
}

type RoundStart struct {
	Round   int             `json:"round"`
	Started []bracket.Match `json:"started"`
	// Waiting counts playable matches of the round still without a board.
	Waiting int `json:"waiting"`
}

// StartRound puts the playable matches of round on free boards. Round N opens
// only once every match of round N-1 is decided; the auto assignment flag does
// not apply to this explicit call.
func (s *BoardService) StartRound(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, round int) (*RoundStart, error) {
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
	if tournament.Status != bracket.TournamentActive {
		return nil, conflictf("tournament is %s, rounds start once the bracket is running", tournament.Status)
	}
	if round < 1 || round > tournament.TotalRounds {
		return nil, validationf("round must be between 1 and %d", tournament.TotalRounds)
	}

	if round > 1 {
		open, err := s.stores.Matches.CountUnfinished(ctx, tx, tournamentID, round-1)
		if err != nil {
			return nil, fmt.Errorf("failed to count open matches: %w", err)
		}
		if open > 0 {
			return nil, conflictf("round %d is not finished, %d matches still open", round-1, open)
		}
	}

	left, err := s.stores.Matches.CountUnfinished(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to count open matches: %w", err)
	}
	if left == 0 {
		return nil, conflictf("round %d has no matches left to play", round)
	}

	cfg, err := s.stores.Tournaments.GetBracketConfig(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bracket config: %w", err)
	}
	started, err := s.scheduleTx(ctx, tx, tournamentID, cfg, round)
	if err != nil {
		return nil, err
	}

	ready, err := s.stores.Matches.ListReadyMatches(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready matches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res := &RoundStart{Round: round, Started: started, Waiting: len(inRound(ready, round))}
	slog.Info("round started", "tournament_id", tournamentID, "round", round, "started", len(started), "waiting", res.Waiting)
	for i := range started {
		s.notifier.Publish(matchEvent(notify.GameUpdate, &started[i], nil, started[i]))
	}
	return res, nil
}

// scheduleIfEnabled runs the scheduler after a board or a match slot freed up.
// Failures are logged, the triggering operation already committed.
func (s *BoardService) scheduleIfEnabled(ctx context.Context, tournamentID uuid.UUID) {
	started, err := s.AutoSchedule(ctx, tournamentID)
	var conflict *StateConflictError
	if errors.As(err, &conflict) {
		return
	}
	if err != nil {
		slog.Error("auto scheduling failed", "tournament_id", tournamentID, "error", err)
		return
	}
	if len(started) > 0 {
		slog.Info("matches scheduled", "tournament_id", tournamentID, "count", len(started))
	}
}
