package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TournamentID   uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name           string    `db:"name" json:"name"`
	AccessCodeHash string    `db:"access_code_hash" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsMain         bool      `db:"is_main" json:"is_main"`
	Priority       int       `db:"priority" json:"priority"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	// AccessCode is only set on the board returned by creation when the
	// code was generated. It is never stored.
	AccessCode string `db:"-" json:"access_code,omitempty"`
}
