package bracket

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Info is a freshly built bracket, ready to be persisted.
type Info struct {
	LeagueID    uuid.UUID
	TotalRounds int
	// Ordered by round, then by order within the round
	Matches []Match
}

// Match returns the match at pos, or nil.
func (i *Info) Match(pos Position) *Match {
	for k := range i.Matches {
		if i.Matches[k].RoundNumber == pos.Round && i.Matches[k].MatchOrder == pos.Order {
			return &i.Matches[k]
		}
	}
	return nil
}

type ShuffleFunc func(n int, swap func(i, j int))

type Builder struct {
	shuffle ShuffleFunc
}

func NewBuilder() *Builder {
	return &Builder{shuffle: rand.Shuffle}
}

// WithShuffle replaces the random draw, mostly for tests.
func (b *Builder) WithShuffle(fn ShuffleFunc) *Builder {
	b.shuffle = fn
	return b
}

// Build draws a single elimination bracket for the active participants of league.
// The league's total rounds are updated in place.
func (b *Builder) Build(league *League, participants []Participant) (*Info, error) {
	kind, err := KindOf(league.MatchType)
	if err != nil {
		return nil, err
	}

	active := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.Canceled {
			continue
		}
		if err := kind.CheckParticipant(p); err != nil {
			return nil, err
		}
		active = append(active, p)
	}
	if len(active) < 2 {
		return nil, fmt.Errorf("%w: %d active participants", ErrInvalidPlayerCount, len(active))
	}

	b.shuffle(len(active), func(i, j int) {
		active[i], active[j] = active[j], active[i]
	})

	entrants := Entrants(len(active))
	league.DefineTotalRounds(len(entrants))

	info := &Info{LeagueID: league.ID, TotalRounds: len(entrants)}
	for r, e := range entrants {
		count := MatchesInRound(e)
		for order := 1; order <= count; order++ {
			m := NewMatch(league.ID, kind, r+1, order)
			m.IsBye = e%2 != 0 && order == count
			info.Matches = append(info.Matches, m)
		}
	}

	for i := range active {
		m := &info.Matches[i/2]
		m.SetParticipant(i%2+1, &active[i].ID)
	}

	for i := range info.Matches {
		m := &info.Matches[i]
		if m.RoundNumber != 1 {
			break
		}
		if m.ResolveBye() {
			info.advance(m)
		}
	}

	return info, nil
}

// advance places the winner of m into its next match and keeps going while the
// next match is itself a bye.
func (i *Info) advance(m *Match) {
	for m.RoundNumber < i.TotalRounds {
		winner := m.Winner()
		if winner == nil {
			return
		}
		pos, slot := FeederOf(m.RoundNumber, m.MatchOrder)
		next := i.Match(pos)
		if next == nil || next.Participant(slot) != nil {
			return
		}
		next.SetParticipant(slot, winner)
		if !next.ResolveBye() {
			return
		}
		m = next
	}
}
