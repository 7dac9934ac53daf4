package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/db"
	"github.com/shuttlecourt/league/internal/scorecache"
	"github.com/shuttlecourt/league/internal/store"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(db.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	err = db.RunMigrations(database)
	require.NoError(t, err, "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type recordedEvent struct {
	LeagueID uuid.UUID
	Type     string
	Payload  any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(leagueID uuid.UUID, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{LeagueID: leagueID, Type: eventType, Payload: payload})
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// steppingClock returns a strictly increasing clock so registration order is stable.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type testEnv struct {
	db       *sqlx.DB
	redis    *miniredis.Miniredis
	cache    *scorecache.Cache
	events   *recorder
	store    *store.MatchStore
	leagues  *LeagueService
	brackets *BracketService
	matches  *MatchService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cache := scorecache.New(rdb)
	events := &recorder{}
	leagueStore := store.NewLeagueStore()
	matchStore := store.NewMatchStore()

	env := &testEnv{
		db:       database,
		redis:    mr,
		cache:    cache,
		events:   events,
		store:    matchStore,
		leagues:  NewLeagueService(database, leagueStore),
		brackets: NewBracketService(database, leagueStore, matchStore, events),
		matches:  NewMatchService(database, leagueStore, matchStore, cache, events),
	}
	env.leagues.now = steppingClock(time.Now().UTC())
	env.brackets.builder = bracket.NewBuilder().WithShuffle(func(int, func(i, j int)) {})
	return env
}

// leagueWith creates a singles league starting tomorrow with n registered
// participants and recruiting closed.
func (e *testEnv) leagueWith(t *testing.T, n int) (*bracket.League, []bracket.Participant) {
	t.Helper()
	ctx := context.Background()

	league, err := e.leagues.CreateLeague(ctx, LeagueInput{
		Name:      "Autumn Open",
		MatchType: bracket.Singles,
		LeagueAt:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	participants := make([]bracket.Participant, n)
	for i := range participants {
		p, err := e.leagues.RegisterParticipant(ctx, league.ID, ParticipantInput{MemberName: fmt.Sprintf("Player %d", i+1)})
		require.NoError(t, err)
		participants[i] = *p
	}

	league, err = e.leagues.CloseRecruiting(ctx, league.ID)
	require.NoError(t, err)
	return league, participants
}

func (e *testEnv) matchAt(t *testing.T, leagueID uuid.UUID, round, order int) *bracket.Match {
	t.Helper()
	m, err := e.store.GetMatchAt(context.Background(), e.db, leagueID, bracket.Position{Round: round, Order: order})
	require.NoError(t, err)
	return m
}

// win plays the first two sets of a match in favour of winnerSlot.
func (e *testEnv) win(t *testing.T, matchID uuid.UUID, winnerSlot int) *Progress {
	t.Helper()
	ctx := context.Background()

	var progress *Progress
	for set := 1; set <= 2; set++ {
		s1, s2 := 21, 15
		if winnerSlot == 2 {
			s1, s2 = s2, s1
		}
		var err error
		progress, err = e.matches.RegisterSetScore(ctx, matchID, set, s1, s2)
		require.NoError(t, err)
	}
	return progress
}

func (e *testEnv) participant(t *testing.T, leagueID, participantID uuid.UUID) *bracket.Participant {
	t.Helper()
	p, err := store.NewLeagueStore().GetParticipant(context.Background(), e.db, leagueID, participantID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) leagueStatus(t *testing.T, leagueID uuid.UUID) bracket.LeagueStatus {
	t.Helper()
	data, err := e.leagues.GetLeague(context.Background(), leagueID)
	require.NoError(t, err)
	return data.League.Status
}
