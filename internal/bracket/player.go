package bracket

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PlayerStatus string

const (
	PlayerRegistered  PlayerStatus = "REGISTERED"
	PlayerConfirmed   PlayerStatus = "CONFIRMED"
	PlayerActive      PlayerStatus = "ACTIVE"
	PlayerEliminated  PlayerStatus = "ELIMINATED"
	PlayerWithdrawn   PlayerStatus = "WITHDRAWN"
	PlayerWaitingList PlayerStatus = "WAITING_LIST"
)

func (s PlayerStatus) Valid() bool {
	switch s {
	case PlayerRegistered, PlayerConfirmed, PlayerActive, PlayerEliminated, PlayerWithdrawn, PlayerWaitingList:
		return true
	}
	return false
}

// Competing reports whether a player in this status takes part in the shootout
// and the bracket.
func (s PlayerStatus) Competing() bool {
	return s != PlayerWithdrawn && s != PlayerWaitingList
}

func (s *PlayerStatus) Scan(src any) error {
	return scanEnum(src, s, PlayerStatus.Valid, "player status")
}

func (s PlayerStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown player status %q", string(s))
	}
	return string(s), nil
}

type Player struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	TournamentID uuid.UUID    `db:"tournament_id" json:"tournament_id"`
	Name         string       `db:"name" json:"name"`
	Seed         *int         `db:"seed" json:"seed,omitempty"`
	Status       PlayerStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
