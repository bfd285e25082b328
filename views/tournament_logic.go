// Package views shapes stored bracket data for read endpoints and displays.
package views

import (
	"fmt"
	"sort"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
)

type BracketData struct {
	Rounds     map[int][]bracket.Match      `json:"rounds"`
	RoundNums  []int                        `json:"round_nums"`
	RoundNames map[int]string               `json:"round_names"`
	PlayerMap  map[uuid.UUID]bracket.Player `json:"players"`
	ChampionID *uuid.UUID                   `json:"champion_id,omitempty"`
}

// PrepareBracketData groups matches by round. Rounds up to totalRounds are
// listed even when their matches have not been created yet.
func PrepareBracketData(players []bracket.Player, matches []bracket.Match, totalRounds int) BracketData {
	playerMap := make(map[uuid.UUID]bracket.Player)
	for _, p := range players {
		playerMap[p.ID] = p
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int

	for _, m := range matches {
		if _, exists := rounds[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}
	for r := 1; r <= totalRounds; r++ {
		if _, exists := rounds[r]; !exists {
			rounds[r] = []bracket.Match{}
			roundNums = append(roundNums, r)
		}
	}

	sort.Ints(roundNums)
	sortRounds(rounds, roundNums)

	last := totalRounds
	if last == 0 && len(roundNums) > 0 {
		last = roundNums[len(roundNums)-1]
	}

	names := make(map[int]string, len(roundNums))
	for _, r := range roundNums {
		names[r] = RoundName(r, last)
	}

	var champion *uuid.UUID
	if final := rounds[last]; len(final) == 1 && final[0].Status == bracket.MatchFinished {
		champion = final[0].WinnerID
	}

	return BracketData{
		Rounds:     rounds,
		RoundNums:  roundNums,
		RoundNames: names,
		PlayerMap:  playerMap,
		ChampionID: champion,
	}
}

// RoundName labels a round counted back from the final.
func RoundName(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return "Final"
	case 1:
		return "Semi-final"
	case 2:
		return "Quarter-final"
	}
	if left := totalRounds - round; left > 2 && left < 7 {
		return fmt.Sprintf("Round of %d", 1<<(left+1))
	}
	return fmt.Sprintf("Round %d", round)
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].MatchIndex < rounds[r][j].MatchIndex
		})
	}
}
