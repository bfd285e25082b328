package notify

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	GameUpdate  EventKind = "game-update"
	ThrowUpdate EventKind = "throw-update"
	GameReset   EventKind = "game-reset"
)

type Event struct {
	Type         EventKind  `json:"type"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
	BoardID      *uuid.UUID `json:"board_id,omitempty"`
	Payload      any        `json:"payload,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

func TournamentRoom(id uuid.UUID) string {
	return "tournament_" + id.String()
}

func BoardRoom(id uuid.UUID) string {
	return "board_" + id.String()
}

// Rooms lists every room an event is delivered to.
func (e Event) Rooms() []string {
	rooms := []string{TournamentRoom(e.TournamentID)}
	if e.BoardID != nil {
		rooms = append(rooms, BoardRoom(*e.BoardID))
	}
	return rooms
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard drops every event.
var Discard = discard{}
