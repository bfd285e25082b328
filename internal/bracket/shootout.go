package bracket

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ShootoutStatus string

const (
	ShootoutWaitingForSelection ShootoutStatus = "waiting_for_selection"
	ShootoutPlayerSelected      ShootoutStatus = "player_selected"
	ShootoutThrowing            ShootoutStatus = "throwing"
	ShootoutWaitingForAdmin     ShootoutStatus = "waiting_for_admin"
	ShootoutCompleted           ShootoutStatus = "completed"
)

var shootoutTransitions = map[ShootoutStatus][]ShootoutStatus{
	ShootoutWaitingForSelection: {ShootoutPlayerSelected},
	ShootoutPlayerSelected:      {ShootoutThrowing, ShootoutWaitingForSelection},
	ShootoutThrowing:            {ShootoutWaitingForAdmin},
	ShootoutWaitingForAdmin:     {ShootoutWaitingForSelection, ShootoutCompleted},
}

func (s ShootoutStatus) Valid() bool {
	switch s {
	case ShootoutWaitingForSelection, ShootoutPlayerSelected, ShootoutThrowing, ShootoutWaitingForAdmin, ShootoutCompleted:
		return true
	}
	return false
}

func (s ShootoutStatus) CanTransitionTo(next ShootoutStatus) bool {
	return canTransition(shootoutTransitions, s, next)
}

func (s *ShootoutStatus) Scan(src any) error {
	return scanEnum(src, s, ShootoutStatus.Valid, "shootout status")
}

func (s ShootoutStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown shootout status %q", string(s))
	}
	return string(s), nil
}

type ShootoutResult struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	PlayerID     uuid.UUID `db:"player_id" json:"player_id"`
	Dart1        int       `db:"dart1" json:"dart1"`
	Dart2        int       `db:"dart2" json:"dart2"`
	Dart3        int       `db:"dart3" json:"dart3"`
	Score        int       `db:"score" json:"score"`
	Rank         *int      `db:"rank" json:"rank,omitempty"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// ShootoutState is the single per-tournament row that tracks who is on the
// shootout board.
type ShootoutState struct {
	TournamentID    uuid.UUID      `db:"tournament_id" json:"tournament_id"`
	Status          ShootoutStatus `db:"status" json:"status"`
	CurrentPlayerID *uuid.UUID     `db:"current_player_id" json:"current_player_id,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
