package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchWaiting   MatchStatus = "WAITING"
	MatchActive    MatchStatus = "ACTIVE"
	MatchFinished  MatchStatus = "FINISHED"
	MatchCancelled MatchStatus = "CANCELLED"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchWaiting:  {MatchActive, MatchFinished, MatchCancelled},
	MatchActive:   {MatchFinished, MatchCancelled},
	MatchFinished: {MatchActive},
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchWaiting, MatchActive, MatchFinished, MatchCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next may follow s. WAITING goes straight to
// FINISHED only for byes, FINISHED back to ACTIVE only through a match reset.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	return canTransition(matchTransitions, s, next)
}

func (s *MatchStatus) Scan(src any) error {
	return scanEnum(src, s, MatchStatus.Valid, "match status")
}

func (s MatchStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown match status %q", string(s))
	}
	return string(s), nil
}

// CurrentThrow is the uncommitted dart sequence shown on displays while a
// player is at the oche.
type CurrentThrow struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Darts     []int     `json:"darts"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CurrentThrow) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into current throw", src)
	}
	return json.Unmarshal(raw, c)
}

func (c CurrentThrow) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket; parents and children are computed from these
	Round      int `db:"round" json:"round"`
	MatchIndex int `db:"match_index" json:"match_index"`

	Player1ID *uuid.UUID `db:"player1_id" json:"player1_id,omitempty"`
	Player2ID *uuid.UUID `db:"player2_id" json:"player2_id,omitempty"`
	BoardID   *uuid.UUID `db:"board_id" json:"board_id,omitempty"`
	// LastBoardID keeps the board that hosted a finished match
	LastBoardID *uuid.UUID `db:"last_board_id" json:"last_board_id,omitempty"`

	Status      MatchStatus `db:"status" json:"status"`
	LegsToWin   int         `db:"legs_to_win" json:"legs_to_win"`
	Player1Legs int         `db:"player1_legs" json:"player1_legs"`
	Player2Legs int         `db:"player2_legs" json:"player2_legs"`
	CurrentLeg  int         `db:"current_leg" json:"current_leg"`

	WinnerID     *uuid.UUID    `db:"winner_id" json:"winner_id,omitempty"`
	Promoted     bool          `db:"promoted" json:"promoted"`
	CurrentThrow *CurrentThrow `db:"current_throw" json:"current_throw,omitempty"`

	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// SlotOf returns 1 or 2 for a participant and 0 for anyone else.
func (m *Match) SlotOf(playerID uuid.UUID) int {
	switch {
	case m.Player1ID != nil && *m.Player1ID == playerID:
		return 1
	case m.Player2ID != nil && *m.Player2ID == playerID:
		return 2
	}
	return 0
}

func (m *Match) PlayerInSlot(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Player1ID
	}
	return m.Player2ID
}

func (m *Match) LegsInSlot(slot int) int {
	if slot == 1 {
		return m.Player1Legs
	}
	return m.Player2Legs
}

func (m *Match) HasBothPlayers() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

// IsBye reports a round-one cell with exactly one player.
func (m *Match) IsBye() bool {
	return m.Round == 1 && (m.Player1ID == nil) != (m.Player2ID == nil)
}

// Opponent returns the other participant, if seated.
func (m *Match) Opponent(playerID uuid.UUID) *uuid.UUID {
	switch m.SlotOf(playerID) {
	case 1:
		return m.Player2ID
	case 2:
		return m.Player1ID
	}
	return nil
}

// NextPosition is where the winner of this match plays next.
func (m *Match) NextPosition() (round, index, slot int) {
	slot = 1
	if m.MatchIndex%2 == 1 {
		slot = 2
	}
	return m.Round + 1, m.MatchIndex / 2, slot
}
