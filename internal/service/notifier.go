package service

import (
	"time"

	"github.com/Exanteros/darts-sub002/internal/auth"
	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/google/uuid"
)

// Notifier delivers events to connected displays. Publish must not block.
type Notifier interface {
	Publish(ev notify.Event)
}

// matchEvent addresses an event to the match's tournament and board rooms.
// board overrides the match's board, for matches that just released theirs.
func matchEvent(kind notify.EventKind, match *bracket.Match, board *uuid.UUID, payload any) notify.Event {
	id := match.ID
	if board == nil {
		board = match.BoardID
	}
	return notify.Event{
		Type:         kind,
		TournamentID: match.TournamentID,
		MatchID:      &id,
		BoardID:      board,
		Payload:      payload,
		Timestamp:    time.Now().UTC(),
	}
}

func tournamentEvent(kind notify.EventKind, tournamentID uuid.UUID, payload any) notify.Event {
	return notify.Event{
		Type:         kind,
		TournamentID: tournamentID,
		Payload:      payload,
		Timestamp:    time.Now().UTC(),
	}
}

// requireAdmin rejects everyone but administrators.
func requireAdmin(caller auth.Caller) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.Anonymous() {
		return &AuthorizationError{Msg: "authentication required", Unauthenticated: true}
	}
	return forbidden("administrator rights required")
}
