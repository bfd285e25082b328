package scoring

import (
	"testing"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDartValues() []int {
	var values []int
	for v := 0; v <= 60; v++ {
		if ValidDart(v) {
			values = append(values, v)
		}
	}
	return values
}

func TestValidDart(t *testing.T) {
	for _, v := range []int{0, 1, 19, 20, 22, 25, 38, 40, 42, 50, 51, 54, 57, 60} {
		assert.True(t, ValidDart(v), "expected %d to be valid", v)
	}
	for _, v := range []int{-1, 23, 29, 31, 35, 37, 41, 43, 44, 46, 47, 49, 52, 53, 55, 56, 58, 59, 61, 100} {
		assert.False(t, ValidDart(v), "expected %d to be invalid", v)
	}
}

func TestValidateThrowAcceptsEveryValidTriplet(t *testing.T) {
	values := validDartValues()
	require.NotEmpty(t, values)

	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				err := ValidateThrow([3]int{a, b, c}, a+b+c)
				if err != nil {
					t.Fatalf("triplet %d/%d/%d rejected: %v", a, b, c, err)
				}
			}
		}
	}
}

func TestValidateThrowRejects(t *testing.T) {
	tests := []struct {
		name  string
		darts [3]int
		score int
	}{
		{"impossible dart 23", [3]int{23, 0, 0}, 23},
		{"impossible dart 100", [3]int{100, 20, 20}, 140},
		{"negative dart", [3]int{-3, 20, 20}, 37},
		{"sum mismatch", [3]int{20, 20, 20}, 61},
		{"impossible dart in last slot", [3]int{60, 60, 59}, 179},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateThrow(tt.darts, tt.score))
		})
	}
}

func throwOf(player uuid.UUID, seq, score int) bracket.Throw {
	return bracket.Throw{PlayerID: player, Seq: seq, Score: score}
}

func TestReplayLegUsesServerOrder(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	throws := []bracket.Throw{
		throwOf(p1, 1, 180), throwOf(p2, 2, 100),
		throwOf(p1, 3, 180), throwOf(p2, 4, 60),
		throwOf(p1, 5, 141),
	}

	out, err := ReplayLeg(throws)
	require.NoError(t, err)
	assert.Equal(t, 501, out.Totals[p1])
	assert.Equal(t, 160, out.Totals[p2])
	require.True(t, out.Won())
	assert.Equal(t, p1, *out.Winner)
	assert.Equal(t, 5, out.CheckoutSeq)

	reversed := []bracket.Throw{throws[4], throws[3], throws[2], throws[1], throws[0]}
	again, err := ReplayLeg(reversed)
	require.NoError(t, err)
	assert.True(t, out.SameResult(again))
	assert.Equal(t, out.Totals, again.Totals)
}

func TestReplayLegRejectsOverflow(t *testing.T) {
	p1 := uuid.New()
	_, err := ReplayLeg([]bracket.Throw{throwOf(p1, 1, 180), throwOf(p1, 2, 180), throwOf(p1, 3, 150)})
	assert.ErrorIs(t, err, ErrLegTotalExceeded)
}

func TestReplayLegRejectsThrowAfterCheckout(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	_, err := ReplayLeg([]bracket.Throw{
		throwOf(p1, 1, 180), throwOf(p1, 2, 180), throwOf(p1, 3, 141), throwOf(p2, 4, 60),
	})
	assert.Error(t, err)
}

func TestReplayLegOpen(t *testing.T) {
	p1 := uuid.New()
	out, err := ReplayLeg([]bracket.Throw{throwOf(p1, 1, 60)})
	require.NoError(t, err)
	assert.False(t, out.Won())
	assert.Equal(t, 441, Remaining(out.Totals[p1]))
}
