package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Throw struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MatchID   uuid.UUID  `db:"match_id" json:"match_id"`
	PlayerID  uuid.UUID  `db:"player_id" json:"player_id"`
	Leg       int        `db:"leg" json:"leg"`
	Seq       int        `db:"seq" json:"seq"`
	Dart1     int        `db:"dart1" json:"dart1"`
	Dart2     int        `db:"dart2" json:"dart2"`
	Dart3     int        `db:"dart3" json:"dart3"`
	Score     int        `db:"score" json:"score"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

func (t Throw) Darts() [3]int {
	return [3]int{t.Dart1, t.Dart2, t.Dart3}
}
