package bracket

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistrationOpen   TournamentStatus = "REGISTRATION_OPEN"
	TournamentRegistrationClosed TournamentStatus = "REGISTRATION_CLOSED"
	TournamentShootout           TournamentStatus = "SHOOTOUT"
	TournamentActive             TournamentStatus = "ACTIVE"
	TournamentFinished           TournamentStatus = "FINISHED"
)

// MaxPlayers is the largest field a bracket can seat.
const MaxPlayers = 64

var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentRegistrationOpen:   {TournamentRegistrationClosed},
	TournamentRegistrationClosed: {TournamentShootout},
	TournamentShootout:           {TournamentActive, TournamentRegistrationClosed},
	TournamentActive:             {TournamentFinished, TournamentRegistrationClosed},
	TournamentFinished:           {TournamentRegistrationClosed},
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentRegistrationOpen, TournamentRegistrationClosed, TournamentShootout, TournamentActive, TournamentFinished:
		return true
	}
	return false
}

// CanTransitionTo reports whether next follows s. Moving back to
// REGISTRATION_CLOSED is only used by the explicit shootout reset.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	return canTransition(tournamentTransitions, s, next)
}

func (s *TournamentStatus) Scan(src any) error {
	return scanEnum(src, s, TournamentStatus.Valid, "tournament status")
}

func (s TournamentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown tournament status %q", string(s))
	}
	return string(s), nil
}

type Tournament struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Status          TournamentStatus `db:"status" json:"status"`
	MaxPlayers      int              `db:"max_players" json:"max_players"`
	ShootoutBoardID *uuid.UUID       `db:"shootout_board_id" json:"shootout_board_id,omitempty"`
	TotalRounds     int              `db:"total_rounds" json:"total_rounds"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}
