package services

import "math"

// BeforeFirstTurn is the current rank used when nobody has been on stage yet.
const BeforeFirstTurn = math.MinInt

// TurnSlot is one participant's place in the turn order.
type TurnSlot struct {
	UserID uint
	Rank   int
}

// NextTurn returns the eligible slot with the smallest rank strictly greater than
// currentRank. Negative ranks mark observers and are never selected. Input order
// does not matter.
func NextTurn(slots []TurnSlot, currentRank int) (TurnSlot, bool) {
	var (
		next  TurnSlot
		found bool
	)
	for _, s := range slots {
		if s.Rank < 0 || s.Rank <= currentRank {
			continue
		}
		if !found || s.Rank < next.Rank {
			next = s
			found = true
		}
	}
	return next, found
}
