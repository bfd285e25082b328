// Package scoring holds the dart and 501 leg arithmetic. It never touches the
// database; callers pass the throws of one leg.
package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
)

const (
	// LegTarget is the total a player must reach exactly to win a leg.
	LegTarget = 501
	// MaxThrowScore is three triple twenties.
	MaxThrowScore = 180
)

var ErrLegTotalExceeded = errors.New("leg total exceeds 501")

// ValidDart reports whether v can be scored by a single dart.
func ValidDart(v int) bool {
	switch {
	case v == 0, v == 25, v == 50:
		return true
	case v >= 1 && v <= 20:
		return true
	case v >= 2 && v <= 40 && v%2 == 0:
		return true
	case v >= 3 && v <= 60 && v%3 == 0:
		return true
	}
	return false
}

// ValidateThrow checks a dart triplet against its declared score.
func ValidateThrow(darts [3]int, score int) error {
	for i, d := range darts {
		if d < 0 {
			return fmt.Errorf("dart %d: negative values are not allowed", i+1)
		}
		if !ValidDart(d) {
			return fmt.Errorf("dart %d: %d is not a valid dart value", i+1, d)
		}
	}
	sum := darts[0] + darts[1] + darts[2]
	if sum != score {
		return fmt.Errorf("score %d does not match the darts (%d)", score, sum)
	}
	if score < 0 || score > MaxThrowScore {
		return fmt.Errorf("score %d is outside 0-%d", score, MaxThrowScore)
	}
	return nil
}

// LegOutcome is the result of replaying one leg's throws in order.
type LegOutcome struct {
	Totals map[uuid.UUID]int
	// CheckoutSeq is the seq of the throw that reached 501, 0 when the leg is open.
	CheckoutSeq int
	Winner      *uuid.UUID
}

func (o LegOutcome) Won() bool {
	return o.Winner != nil
}

// SameResult reports whether two replays agree on who won the leg and with
// which throw.
func (o LegOutcome) SameResult(other LegOutcome) bool {
	if o.Won() != other.Won() {
		return false
	}
	if !o.Won() {
		return true
	}
	return *o.Winner == *other.Winner && o.CheckoutSeq == other.CheckoutSeq
}

// ReplayLeg sums throws in server order (seq), whatever order they arrive in.
// It fails when a running total passes 501 or a throw follows the checkout.
func ReplayLeg(throws []bracket.Throw) (LegOutcome, error) {
	ordered := make([]bracket.Throw, len(throws))
	copy(ordered, throws)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	out := LegOutcome{Totals: make(map[uuid.UUID]int)}
	for _, t := range ordered {
		if out.Won() {
			return out, fmt.Errorf("throw %d follows the checkout", t.Seq)
		}
		total := out.Totals[t.PlayerID] + t.Score
		if total > LegTarget {
			return out, ErrLegTotalExceeded
		}
		out.Totals[t.PlayerID] = total
		if total == LegTarget {
			winner := t.PlayerID
			out.Winner = &winner
			out.CheckoutSeq = t.Seq
		}
	}
	return out, nil
}

// Remaining is what a player still needs in the leg.
func Remaining(total int) int {
	return LegTarget - total
}
