package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/bracket"
)

// matchKey names a bracket position. Positions outlive match ids across a
// regenerated draw.
type matchKey struct {
	league uuid.UUID
	pos    bracket.Position
}

func keyOf(m *bracket.Match) matchKey {
	return matchKey{league: m.LeagueID, pos: bracket.Position{Round: m.RoundNumber, Order: m.MatchOrder}}
}

// matchLocks serializes mutations per bracket position. Entries are dropped
// once no goroutine holds or waits on them.
type matchLocks struct {
	mu    sync.Mutex
	locks map[matchKey]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[matchKey]*matchLock)}
}

// lock blocks until the position is free and returns the matching unlock.
func (l *matchLocks) lock(key matchKey) func() {
	l.mu.Lock()
	ml, ok := l.locks[key]
	if !ok {
		ml = &matchLock{}
		l.locks[key] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// lockPath locks key and every later position its winner can be carried to,
// up to the final. Paths only climb rounds, so holders never wait on each
// other in a cycle.
func (l *matchLocks) lockPath(key matchKey, totalRounds int) func() {
	unlocks := []func(){l.lock(key)}
	for pos := key.pos; pos.Round < totalRounds; {
		pos, _ = bracket.FeederOf(pos.Round, pos.Order)
		unlocks = append(unlocks, l.lock(matchKey{league: key.league, pos: pos}))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (l *matchLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
