package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type SeedingAlgorithm string

const (
	SeedingStandard SeedingAlgorithm = "standard"
	SeedingRandom   SeedingAlgorithm = "random"
)

func (a SeedingAlgorithm) Valid() bool {
	return a == SeedingStandard || a == SeedingRandom
}

func (a *SeedingAlgorithm) Scan(src any) error {
	return scanEnum(src, a, SeedingAlgorithm.Valid, "seeding algorithm")
}

func (a SeedingAlgorithm) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("unknown seeding algorithm %q", string(a))
	}
	return string(a), nil
}

// DefaultLegsToWin is the schedule used for rounds without explicit
// configuration: first to 2 through round 4, first to 3 from round 5 on.
func DefaultLegsToWin(round int) int {
	if round >= 5 {
		return 3
	}
	return 2
}

// LegsSchedule maps a round number to its "best of" leg count.
type LegsSchedule map[int]int

// LegsToWin converts the configured best-of for round into the number of legs
// a player needs, falling back to DefaultLegsToWin.
func (l LegsSchedule) LegsToWin(round int) int {
	if bestOf, ok := l[round]; ok && bestOf > 0 {
		return (bestOf + 1) / 2
	}
	return DefaultLegsToWin(round)
}

func (l LegsSchedule) Validate() error {
	for round, bestOf := range l {
		if round < 1 {
			return fmt.Errorf("round %d is not a valid round number", round)
		}
		if bestOf < 1 || bestOf%2 == 0 {
			return fmt.Errorf("round %d: best of %d must be a positive odd number", round, bestOf)
		}
	}
	return nil
}

func (l *LegsSchedule) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = LegsSchedule{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into legs schedule", src)
	}
	schedule := LegsSchedule{}
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return err
	}
	*l = schedule
	return nil
}

func (l LegsSchedule) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type BracketConfig struct {
	TournamentID      uuid.UUID        `db:"tournament_id" json:"tournament_id"`
	SeedingAlgorithm  SeedingAlgorithm `db:"seeding_algorithm" json:"seeding_algorithm"`
	LegsPerRound      LegsSchedule     `db:"legs_per_round" json:"legs_per_round"`
	AutoAssignBoards  bool             `db:"auto_assign_boards" json:"auto_assign_boards"`
	MainBoardPriority bool             `db:"main_board_priority" json:"main_board_priority"`
}

func DefaultBracketConfig(tournamentID uuid.UUID) *BracketConfig {
	return &BracketConfig{
		TournamentID:     tournamentID,
		SeedingAlgorithm: SeedingStandard,
		LegsPerRound:     LegsSchedule{},
		AutoAssignBoards: true,
	}
}
