package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/ratelimit"
	"github.com/Exanteros/darts-sub002/internal/scoring"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/Exanteros/darts-sub002/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EditWindow is how long after a match finishes its throws may still be corrected.
const EditWindow = 24 * time.Hour

type MatchService struct {
	db        *sqlx.DB
	stores    *store.Stores
	boards    *BoardService
	promotion *Promotion
	limiter   ratelimit.Limiter
	notifier  Notifier
	now       func() time.Time
}

func NewMatchService(db *sqlx.DB, stores *store.Stores, boards *BoardService, promotion *Promotion, limiter ratelimit.Limiter, notifier Notifier) *MatchService {
	return &MatchService{
		db:        db,
		stores:    stores,
		boards:    boards,
		promotion: promotion,
		limiter:   limiter,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type ThrowInput struct {
	PlayerID uuid.UUID `json:"player_id"`
	Darts    [3]int    `json:"darts"`
	Score    int       `json:"score"`
	// Leg, when set, must be the match's current leg. Clients retrying a
	// submission send it so a repeat cannot land in the next leg.
	Leg int `json:"leg,omitempty"`
}

type ThrowResult struct {
	Match         *bracket.Match `json:"match"`
	Throw         *bracket.Throw `json:"throw"`
	Player1Total  int            `json:"player1_total"`
	Player2Total  int            `json:"player2_total"`
	LegWon        bool           `json:"leg_won"`
	MatchFinished bool           `json:"match_finished"`
}

type CurrentThrowInput struct {
	PlayerID uuid.UUID `json:"player_id"`
	Darts    []int     `json:"darts"`
}

type EditInput struct {
	Leg   int    `json:"leg"`
	Index int    `json:"index"`
	Darts [3]int `json:"darts"`
	Score int    `json:"score"`
}

type EditResult struct {
	Throw        *bracket.Throw `json:"throw"`
	Player1Total int            `json:"player1_total"`
	Player2Total int            `json:"player2_total"`
}

type MatchDetail struct {
	Match        *bracket.Match  `json:"match"`
	Player1      *bracket.Player `json:"player1,omitempty"`
	Player2      *bracket.Player `json:"player2,omitempty"`
	Throws       []bracket.Throw `json:"throws"`
	Player1Total int             `json:"player1_total"`
	Player2Total int             `json:"player2_total"`
}

func slotTotals(match *bracket.Match, totals map[uuid.UUID]int) (int, int) {
	var p1, p2 int
	if match.Player1ID != nil {
		p1 = totals[*match.Player1ID]
	}
	if match.Player2ID != nil {
		p2 = totals[*match.Player2ID]
	}
	return p1, p2
}

// authorizeScoring admits admins, the scoring board of the match, and when
// player is set, that player.
func (s *MatchService) authorizeScoring(ctx context.Context, q sqlx.ExtContext, caller auth.Caller, match *bracket.Match, player *uuid.UUID) error {
	if caller.IsAdmin {
		return nil
	}
	if player != nil && caller.IsPlayer(*player) {
		return nil
	}
	ok, err := s.boards.holdsMatch(ctx, q, match, caller.BoardCode)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if caller.Anonymous() {
		return &AuthorizationError{Msg: "authentication required", Unauthenticated: true}
	}
	return forbidden("caller may not score this match")
}

// SubmitThrow records one visit of three darts and settles legs and the match.
func (s *MatchService) SubmitThrow(ctx context.Context, caller auth.Caller, matchID uuid.UUID, in ThrowInput) (*ThrowResult, error) {
	if err := scoring.ValidateThrow(in.Darts, in.Score); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if in.Leg < 0 {
		return nil, validationf("leg must be positive, got %d", in.Leg)
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
	if err := s.authorizeScoring(ctx, tx, caller, match, &in.PlayerID); err != nil {
		return nil, err
	}

	// A finished match still takes a late throw, it just never wins anything.
	if match.Status != bracket.MatchActive && match.Status != bracket.MatchFinished {
		return nil, conflictf("match is %s, throws need an active match", strings.ToLower(string(match.Status)))
	}
	slot := match.SlotOf(in.PlayerID)
	if slot == 0 {
		return nil, validationf("player is not part of this match")
	}

	leg := match.CurrentLeg
	if in.Leg != 0 && in.Leg != leg {
		return nil, conflictf("leg %d is already closed, the match is on leg %d", in.Leg, leg)
	}
	throws, err := s.stores.Matches.ListLegThrows(ctx, tx, match.ID, leg)
	if err != nil {
		return nil, fmt.Errorf("failed to get leg throws: %w", err)
	}
	outcome, err := scoring.ReplayLeg(throws)
	if err != nil {
		return nil, fmt.Errorf("failed to replay leg %d: %w", leg, err)
	}

	total := outcome.Totals[in.PlayerID] + in.Score
	if total > scoring.LegTarget {
		return nil, validationf("throw of %d exceeds the %d points left in this leg",
			in.Score, scoring.Remaining(outcome.Totals[in.PlayerID]))
	}

	seq, err := s.stores.Matches.NextThrowSeq(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get throw sequence: %w", err)
	}

	now := s.now()
	throw := &bracket.Throw{
		ID:        uuid.New(),
		MatchID:   match.ID,
		PlayerID:  in.PlayerID,
		Leg:       leg,
		Seq:       seq,
		Dart1:     in.Darts[0],
		Dart2:     in.Darts[1],
		Dart3:     in.Darts[2],
		Score:     in.Score,
		CreatedAt: now,
	}
	if err := s.stores.Matches.CreateThrow(ctx, tx, throw); err != nil {
		return nil, fmt.Errorf("failed to create throw: %w", err)
	}
	outcome.Totals[in.PlayerID] = total

	res := &ThrowResult{Throw: throw}
	releasedBoard := match.BoardID

	if match.Status == bracket.MatchActive && total == scoring.LegTarget {
		credited, err := s.stores.Matches.IncrementLeg(ctx, tx, match.ID, slot, leg)
		if err != nil {
			return nil, fmt.Errorf("failed to credit leg: %w", err)
		}
		if !credited {
			return nil, &RaceLostError{Msg: fmt.Sprintf("leg %d was already closed", leg)}
		}
		res.LegWon = true

		match, err = s.stores.Matches.GetMatch(ctx, tx, match.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload match: %w", err)
		}

		if match.LegsInSlot(slot) >= match.LegsToWin {
			match.Status = bracket.MatchFinished
			match.WinnerID = utils.Ptr(in.PlayerID)
			match.FinishedAt = utils.Ptr(now)
			match.LastBoardID = match.BoardID
			match.BoardID = nil
			if err := s.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
				return nil, fmt.Errorf("failed to finish match: %w", err)
			}
			if loser := match.Opponent(in.PlayerID); loser != nil {
				if err := s.stores.Players.UpdatePlayerStatus(ctx, tx, *loser, bracket.PlayerEliminated); err != nil {
					return nil, fmt.Errorf("failed to eliminate player: %w", err)
				}
			}
			res.MatchFinished = true
		}
	} else {
		if err := s.stores.Matches.SetCurrentThrow(ctx, tx, match.ID, nil); err != nil {
			return nil, fmt.Errorf("failed to clear current throw: %w", err)
		}
		match.CurrentThrow = nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res.Match = match
	res.Player1Total, res.Player2Total = slotTotals(match, outcome.Totals)

	s.notifier.Publish(matchEvent(notify.ThrowUpdate, match, releasedBoard, res))
	if res.LegWon {
		s.notifier.Publish(matchEvent(notify.GameUpdate, match, releasedBoard, match))
	}
	if res.MatchFinished {
		slog.Info("match finished", "match_id", match.ID, "round", match.Round, "winner_id", in.PlayerID)
		s.afterFinish(ctx, match)
	}

	return res, nil
}

// afterFinish promotes the winner and refills boards. The match is already
// committed as finished, so failures are only logged.
func (s *MatchService) afterFinish(ctx context.Context, match *bracket.Match) {
	res, err := s.promotion.Promote(ctx, match.ID)
	if err != nil {
		slog.Error("failed to promote winner", "match_id", match.ID, "error", err)
	} else if res.TournamentFinished {
		slog.Info("tournament finished", "tournament_id", match.TournamentID)
		s.notifier.Publish(tournamentEvent(notify.GameUpdate, match.TournamentID, res))
	}
	s.boards.scheduleIfEnabled(ctx, match.TournamentID)
}

// Repromote retries the promotion of a finished match by hand.
func (s *MatchService) Repromote(ctx context.Context, caller auth.Caller, matchID uuid.UUID) (*PromotionResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	res, err := s.promotion.Promote(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if res.Destination != nil {
		s.boards.scheduleIfEnabled(ctx, res.Destination.TournamentID)
	}
	return res, nil
}

func (s *MatchService) SetCurrentThrow(ctx context.Context, caller auth.Caller, matchID uuid.UUID, in CurrentThrowInput) (*bracket.CurrentThrow, error) {
	if len(in.Darts) > 3 {
		return nil, validationf("a visit has at most 3 darts, got %d", len(in.Darts))
	}
	score := 0
	for i, d := range in.Darts {
		if !scoring.ValidDart(d) {
			return nil, validationf("dart %d: %d is not a valid dart value", i+1, d)
		}
		score += d
	}

	match, err := s.activeMatchFor(ctx, caller, matchID, &in.PlayerID)
	if err != nil {
		return nil, err
	}
	if match.SlotOf(in.PlayerID) == 0 {
		return nil, validationf("player is not part of this match")
	}

	darts := in.Darts
	if darts == nil {
		darts = []int{}
	}
	current := &bracket.CurrentThrow{
		PlayerID:  in.PlayerID,
		Darts:     darts,
		Score:     score,
		UpdatedAt: s.now(),
	}
	if err := s.stores.Matches.SetCurrentThrow(ctx, s.db, match.ID, current); err != nil {
		return nil, fmt.Errorf("failed to set current throw: %w", err)
	}

	s.notifier.Publish(matchEvent(notify.ThrowUpdate, match, nil, current))
	return current, nil
}

func (s *MatchService) ClearCurrentThrow(ctx context.Context, caller auth.Caller, matchID uuid.UUID) error {
	match, err := s.activeMatchFor(ctx, caller, matchID, nil)
	if err != nil {
		return err
	}
	if err := s.stores.Matches.SetCurrentThrow(ctx, s.db, match.ID, nil); err != nil {
		return fmt.Errorf("failed to clear current throw: %w", err)
	}

	s.notifier.Publish(matchEvent(notify.ThrowUpdate, match, nil, nil))
	return nil
}

func (s *MatchService) activeMatchFor(ctx context.Context, caller auth.Caller, matchID uuid.UUID, player *uuid.UUID) (*bracket.Match, error) {
	match, err := s.stores.Matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match")
	}
	if err := s.authorizeScoring(ctx, s.db, caller, match, player); err != nil {
		return nil, err
	}
	if match.Status != bracket.MatchActive {
		return nil, conflictf("match is %s, not active", strings.ToLower(string(match.Status)))
	}
	return match, nil
}

// GetCurrentThrow returns nil when nobody is mid-visit.
func (s *MatchService) GetCurrentThrow(ctx context.Context, matchID uuid.UUID) (*bracket.CurrentThrow, error) {
	match, err := s.stores.Matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match")
	}
	return match.CurrentThrow, nil
}

func (s *MatchService) GetMatchDetail(ctx context.Context, matchID uuid.UUID) (*MatchDetail, error) {
	match, err := s.stores.Matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match")
	}

	detail := &MatchDetail{Match: match}
	if match.Player1ID != nil {
		p, err := s.stores.Players.GetPlayer(ctx, s.db, *match.Player1ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get player 1: %w", err)
		}
		detail.Player1 = p
	}
	if match.Player2ID != nil {
		p, err := s.stores.Players.GetPlayer(ctx, s.db, *match.Player2ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get player 2: %w", err)
		}
		detail.Player2 = p
	}

	// A finished match has moved past its last leg; show that one instead.
	leg := match.CurrentLeg
	if match.Status == bracket.MatchFinished && leg > 1 {
		leg--
	}
	throws, err := s.stores.Matches.ListLegThrows(ctx, s.db, match.ID, leg)
	if err != nil {
		return nil, fmt.Errorf("failed to get leg throws: %w", err)
	}
	detail.Throws = throws

	outcome, err := scoring.ReplayLeg(throws)
	if err != nil {
		slog.Warn("stored leg does not replay cleanly", "match_id", match.ID, "leg", leg, "error", err)
		return detail, nil
	}
	detail.Player1Total, detail.Player2Total = slotTotals(match, outcome.Totals)
	return detail, nil
}

// EditThrow corrects a stored throw. The edit must leave the leg's result
// where it was: same winner, same checkout throw, nobody past 501.
func (s *MatchService) EditThrow(ctx context.Context, caller auth.Caller, matchID uuid.UUID, in EditInput) (*EditResult, error) {
	decision, err := s.limiter.Allow(ctx, caller.RateLimitKey())
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing edit", "error", err)
	} else if !decision.Allowed {
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	if err := scoring.ValidateThrow(in.Darts, in.Score); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if in.Leg < 1 {
		return nil, validationf("leg must be 1 or greater")
	}
	if in.Index < 0 {
		return nil, validationf("throw index must not be negative")
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
	if err := s.authorizeScoring(ctx, tx, caller, match, nil); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished && match.FinishedAt != nil && s.now().Sub(*match.FinishedAt) > EditWindow {
		return nil, conflictf("throws can only be edited within %s of the match finishing", EditWindow)
	}

	throws, err := s.stores.Matches.ListLegThrows(ctx, tx, match.ID, in.Leg)
	if err != nil {
		return nil, fmt.Errorf("failed to get leg throws: %w", err)
	}
	if in.Index >= len(throws) {
		return nil, validationf("leg %d has %d throws, index %d is out of range", in.Leg, len(throws), in.Index)
	}

	before, err := scoring.ReplayLeg(throws)
	if err != nil {
		return nil, fmt.Errorf("failed to replay leg %d: %w", in.Leg, err)
	}

	edited := make([]bracket.Throw, len(throws))
	copy(edited, throws)
	old := edited[in.Index]
	target := &edited[in.Index]
	target.Dart1, target.Dart2, target.Dart3 = in.Darts[0], in.Darts[1], in.Darts[2]
	target.Score = in.Score

	after, err := scoring.ReplayLeg(edited)
	if errors.Is(err, scoring.ErrLegTotalExceeded) {
		return nil, conflictf("edit would push a leg total past %d", scoring.LegTarget)
	}
	if err != nil {
		return nil, conflictf("edit leaves leg %d inconsistent: %v", in.Leg, err)
	}
	if !before.SameResult(after) {
		return nil, conflictf("edit would change the outcome of leg %d", in.Leg)
	}

	if err := s.stores.Matches.UpdateThrow(ctx, tx, target); err != nil {
		return nil, fmt.Errorf("failed to update throw: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("throw edited",
		"match_id", match.ID,
		"leg", in.Leg,
		"index", in.Index,
		"old_darts", old.Darts(),
		"old_score", old.Score,
		"new_darts", in.Darts,
		"new_score", in.Score,
		"caller", caller.RateLimitKey(),
	)

	res := &EditResult{Throw: target}
	res.Player1Total, res.Player2Total = slotTotals(match, after.Totals)
	s.notifier.Publish(matchEvent(notify.ThrowUpdate, match, match.LastBoardID, res))
	return res, nil
}

// ResetMatch wipes a match back to the first leg. A winner that already moved
// on is pulled back out, as long as the next match has not begun.
func (s *MatchService) ResetMatch(ctx context.Context, caller auth.Caller, matchID uuid.UUID) (*bracket.Match, error) {
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
	if match.Status != bracket.MatchActive && match.Status != bracket.MatchFinished {
		return nil, conflictf("match is %s, only active or finished matches can be reset", strings.ToLower(string(match.Status)))
	}
	if match.IsBye() {
		return nil, conflictf("a bye cannot be reset")
	}

	if match.Status == bracket.MatchFinished && match.BoardID == nil {
		match.BoardID = match.LastBoardID
	}
	if err := s.clearResult(ctx, tx, match); err != nil {
		return nil, err
	}
	match.Status = bracket.MatchActive
	if match.StartedAt == nil {
		match.StartedAt = utils.Ptr(s.now())
	}
	if match.BoardID != nil {
		hosting, err := s.stores.Matches.ActiveMatchOnBoard(ctx, tx, *match.BoardID, match.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check board matches: %w", err)
		}
		if hosting != nil {
			match.BoardID = nil
		}
	}
	if err := s.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to reset match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("match reset", "match_id", match.ID, "caller", caller.RateLimitKey())
	s.notifier.Publish(matchEvent(notify.GameReset, match, nil, match))
	return match, nil
}

// clearResult pulls a promoted winner back, deletes the throws, reinstates
// both players and zeroes the score. Status and board are left to the caller.
func (s *MatchService) clearResult(ctx context.Context, tx sqlx.ExtContext, match *bracket.Match) error {
	if match.Promoted {
		if err := s.withdrawWinner(ctx, tx, match); err != nil {
			return err
		}
	}

	if err := s.stores.Matches.DeleteThrows(ctx, tx, match.ID); err != nil {
		return fmt.Errorf("failed to delete throws: %w", err)
	}

	if match.Status == bracket.MatchFinished {
		ids := make([]uuid.UUID, 0, 2)
		for _, id := range []*uuid.UUID{match.Player1ID, match.Player2ID} {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		if err := s.stores.Players.SetStatusForPlayers(ctx, tx, ids, bracket.PlayerActive); err != nil {
			return fmt.Errorf("failed to reinstate players: %w", err)
		}
	}

	match.Player1Legs = 0
	match.Player2Legs = 0
	match.CurrentLeg = 1
	match.WinnerID = nil
	match.FinishedAt = nil
	match.CurrentThrow = nil
	match.Promoted = false
	return nil
}

type RoundReset struct {
	Round int             `json:"round"`
	Reset []bracket.Match `json:"reset"`
}

// ResetRound sends every started match of a round back to WAITING without a
// board, under the same rules as ResetMatch: byes stay decided and a winner
// who already plays in the next round blocks the whole reset.
func (s *MatchService) ResetRound(ctx context.Context, caller auth.Caller, tournamentID uuid.UUID, round int) (*RoundReset, error) {
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
	if round < 1 || round > tournament.TotalRounds {
		return nil, validationf("round must be between 1 and %d", tournament.TotalRounds)
	}

	matches, err := s.stores.Matches.ListRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to list round: %w", err)
	}

	res := &RoundReset{Round: round, Reset: []bracket.Match{}}
	boards := make([]*uuid.UUID, 0, len(matches))
	for i := range matches {
		match := &matches[i]
		if match.IsBye() || (match.Status != bracket.MatchActive && match.Status != bracket.MatchFinished) {
			continue
		}
		if err := s.clearResult(ctx, tx, match); err != nil {
			return nil, err
		}
		board := match.BoardID
		if board == nil {
			board = match.LastBoardID
		}
		match.Status = bracket.MatchWaiting
		match.BoardID = nil
		match.StartedAt = nil
		if err := s.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
			return nil, fmt.Errorf("failed to reset match: %w", err)
		}
		res.Reset = append(res.Reset, *match)
		boards = append(boards, board)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("round reset", "tournament_id", tournamentID, "round", round, "matches", len(res.Reset), "caller", caller.RateLimitKey())
	for i := range res.Reset {
		s.notifier.Publish(matchEvent(notify.GameReset, &res.Reset[i], boards[i], res.Reset[i]))
	}
	return res, nil
}

func (s *MatchService) withdrawWinner(ctx context.Context, tx sqlx.ExtContext, match *bracket.Match) error {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, match.TournamentID)
	if err != nil {
		return notFoundOr(err, "tournament")
	}
	final, err := s.promotion.isFinal(ctx, tx, tournament, match)
	if err != nil {
		return err
	}
	if final {
		if tournament.Status == bracket.TournamentFinished {
			return conflictf("the final of a finished tournament cannot be reset")
		}
		return nil
	}

	round, index, slot := match.NextPosition()
	dest, err := s.stores.Matches.GetMatchAt(ctx, tx, match.TournamentID, round, index)
	if err != nil {
		return notFoundOr(err, "next match")
	}
	if dest.Status != bracket.MatchWaiting {
		return conflictf("the winner already plays in round %d", round)
	}
	if current := dest.PlayerInSlot(slot); current != nil && match.WinnerID != nil && *current != *match.WinnerID {
		return conflictf("slot %d of round %d match %d holds another player", slot, round, index)
	}

	if slot == 1 {
		dest.Player1ID = nil
	} else {
		dest.Player2ID = nil
	}
	if err := s.stores.Matches.UpdateMatch(ctx, tx, dest); err != nil {
		return fmt.Errorf("failed to update next match: %w", err)
	}
	return nil
}

// StartMatch starts a waiting match with both players seated.
func (s *MatchService) StartMatch(ctx context.Context, caller auth.Caller, matchID uuid.UUID) (*bracket.Match, error) {
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
	if match.Status != bracket.MatchWaiting {
		return nil, conflictf("match is already %s", strings.ToLower(string(match.Status)))
	}
	if !match.HasBothPlayers() {
		return nil, conflictf("both players must be known before the match starts")
	}
	if match.BoardID != nil {
		hosting, err := s.stores.Matches.ActiveMatchOnBoard(ctx, tx, *match.BoardID, match.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check board matches: %w", err)
		}
		if hosting != nil {
			return nil, conflictf("board is already hosting another active match")
		}
	}

	match.Status = bracket.MatchActive
	match.StartedAt = utils.Ptr(s.now())
	if err := s.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.notifier.Publish(matchEvent(notify.GameUpdate, match, nil, match))
	return match, nil
}
