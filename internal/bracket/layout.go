package bracket

// Position addresses a match in the bracket arena.
type Position struct {
	Round int
	Order int
}

// FeederOf returns the match and slot the winner of (round, order) moves into.
// Odd orders feed slot 1, even orders feed slot 2.
func FeederOf(round, order int) (next Position, slot int) {
	next = Position{Round: round + 1, Order: (order + 1) / 2}
	if order%2 != 0 {
		return next, 1
	}
	return next, 2
}

// Entrants returns how many participants enter each round, starting at round 1.
// Odd fields are rounded up: the leftover entrant plays a bye match.
func Entrants(participants int) []int {
	var rounds []int
	for e := participants; e > 1; e = (e + 1) / 2 {
		rounds = append(rounds, e)
	}
	return rounds
}

// TotalRounds is ceil(log2(participants)).
func TotalRounds(participants int) int {
	return len(Entrants(participants))
}

// MatchesInRound is the number of matches, byes included, for a round with the
// given number of entrants.
func MatchesInRound(entrants int) int {
	return (entrants + 1) / 2
}
