package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Promotion moves the winner of a finished match into the next round.
type Promotion struct {
	db       *sqlx.DB
	stores   *store.Stores
	notifier Notifier
}

func NewPromotion(db *sqlx.DB, stores *store.Stores, notifier Notifier) *Promotion {
	return &Promotion{db: db, stores: stores, notifier: notifier}
}

type PromotionResult struct {
	// Destination is nil for the final and for matches promoted earlier.
	Destination        *bracket.Match `json:"destination,omitempty"`
	TournamentFinished bool           `json:"tournament_finished"`
	AlreadyPromoted    bool           `json:"already_promoted"`
}

// Promote is idempotent: a match whose winner already moved on is a no-op.
func (p *Promotion) Promote(ctx context.Context, matchID uuid.UUID) (*PromotionResult, error) {
	res, err := p.promoteOnce(ctx, matchID)

	var race *RaceLostError
	if errors.As(err, &race) {
		slog.Info("promotion lost a create race, retrying as update", "match_id", matchID)
		res, err = p.promoteOnce(ctx, matchID)
	}
	if err != nil {
		return nil, err
	}

	if res.Destination != nil {
		p.notifier.Publish(matchEvent(notify.GameUpdate, res.Destination, nil, res.Destination))
	}
	return res, nil
}

func (p *Promotion) promoteOnce(ctx context.Context, matchID uuid.UUID) (*PromotionResult, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := p.stores.Matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match")
	}

	res, err := p.promoteTx(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	return res, tx.Commit()
}

// promoteTx does the promotion inside the caller's transaction.
func (p *Promotion) promoteTx(ctx context.Context, tx sqlx.ExtContext, match *bracket.Match) (*PromotionResult, error) {
	if match.Status != bracket.MatchFinished || match.WinnerID == nil {
		return nil, conflictf("match in round %d has no winner to promote", match.Round)
	}
	if match.Promoted {
		return &PromotionResult{AlreadyPromoted: true}, nil
	}

	tournament, err := p.stores.Tournaments.GetTournament(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, notFoundOr(err, "tournament")
	}

	final, err := p.isFinal(ctx, tx, tournament, match)
	if err != nil {
		return nil, err
	}

	if final {
		match.Promoted = true
		if err := p.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
			return nil, fmt.Errorf("failed to update match: %w", err)
		}
		if tournament.Status.CanTransitionTo(bracket.TournamentFinished) {
			if err := p.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournament.ID, bracket.TournamentFinished); err != nil {
				return nil, fmt.Errorf("failed to update tournament status: %w", err)
			}
		} else {
			slog.Warn("final decided outside an active tournament", "tournament_id", tournament.ID, "status", tournament.Status)
		}
		return &PromotionResult{TournamentFinished: true}, nil
	}

	round, index, slot := match.NextPosition()
	winner := *match.WinnerID

	dest, err := p.stores.Matches.GetMatchAt(ctx, tx, match.TournamentID, round, index)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cfg, err := p.stores.Tournaments.GetBracketConfig(ctx, tx, match.TournamentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get bracket config: %w", err)
		}
		dest = &bracket.Match{
			ID:           uuid.New(),
			TournamentID: match.TournamentID,
			Round:        round,
			MatchIndex:   index,
			Status:       bracket.MatchWaiting,
			LegsToWin:    cfg.LegsPerRound.LegsToWin(round),
			CurrentLeg:   1,
			CreatedAt:    time.Now().UTC(),
		}
		seat(dest, slot, winner)
		if err := p.stores.Matches.CreateMatch(ctx, tx, dest); err != nil {
			if store.IsUniqueViolation(err) {
				return nil, &RaceLostError{Msg: fmt.Sprintf("round %d match %d was created concurrently", round, index)}
			}
			return nil, fmt.Errorf("failed to create next match: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to get next match: %w", err)
	default:
		if current := dest.PlayerInSlot(slot); current != nil && *current != winner {
			return nil, conflictf("slot %d of round %d match %d already holds another player", slot, round, index)
		}
		seat(dest, slot, winner)
		if err := p.stores.Matches.UpdateMatch(ctx, tx, dest); err != nil {
			return nil, fmt.Errorf("failed to update next match: %w", err)
		}
	}

	match.Promoted = true
	if err := p.stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	return &PromotionResult{Destination: dest}, nil
}

// isFinal uses the recorded round count and falls back to checking whether
// anything exists after this round.
func (p *Promotion) isFinal(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament, match *bracket.Match) (bool, error) {
	if tournament.TotalRounds > 0 {
		return match.Round >= tournament.TotalRounds, nil
	}
	n, err := p.stores.Matches.CountRound(ctx, q, match.TournamentID, match.Round+1)
	if err != nil {
		return false, fmt.Errorf("failed to count next round: %w", err)
	}
	return n == 0, nil
}

func seat(m *bracket.Match, slot int, playerID uuid.UUID) {
	id := playerID
	if slot == 1 {
		m.Player1ID = &id
	} else {
		m.Player2ID = &id
	}
}
