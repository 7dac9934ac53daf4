package scorecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), mr
}

func TestSetScore(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	matchID := uuid.New()

	require.NoError(t, cache.SetScore(ctx, bracket.Singles, matchID, 1, 21, 17))
	require.NoError(t, cache.SetScore(ctx, bracket.Singles, matchID, 2, 5, 3))

	assert.Equal(t, "21:17", mr.HGet("SINGLES:"+matchID.String(), "1"))
	assert.Zero(t, mr.TTL("SINGLES:"+matchID.String()))

	score, found, err := cache.GetScore(ctx, bracket.Singles, matchID, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "5:3", score)

	_, found, err = cache.GetScore(ctx, bracket.Singles, matchID, 3)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = cache.GetScore(ctx, bracket.Doubles, matchID, 1)
	require.NoError(t, err)
	assert.False(t, found, "scores are keyed by match type")
}

func TestInProgressSets(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	leagueID := uuid.New()
	otherLeague := uuid.New()

	sets, err := cache.GetInProgressSets(ctx, leagueID)
	require.NoError(t, err)
	assert.NotNil(t, sets)
	assert.Empty(t, sets)

	first := InProgressSet{LeagueID: leagueID, MatchID: uuid.New(), MatchType: bracket.Singles, SetIndex: 1, Score1: 4, Score2: 2}
	second := InProgressSet{LeagueID: leagueID, MatchID: uuid.New(), MatchType: bracket.Singles, SetIndex: 2, Score1: 11, Score2: 9}
	foreign := InProgressSet{LeagueID: otherLeague, MatchID: uuid.New(), MatchType: bracket.Singles, SetIndex: 1}
	for _, s := range []InProgressSet{first, second, foreign} {
		require.NoError(t, cache.SaveInProgressSet(ctx, s))
	}

	assert.Equal(t, InProgressTTL, mr.TTL(first.Key()))
	assert.Equal(t,
		"IN_PROGRESS:LEAGUE:"+leagueID.String()+":MATCH:"+first.MatchID.String()+":SET:1",
		first.Key())

	sets, err = cache.GetInProgressSets(ctx, leagueID)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.MatchID, second.MatchID}, []uuid.UUID{sets[0].MatchID, sets[1].MatchID})

	require.NoError(t, cache.Evict(ctx, first.Key()))
	sets, err = cache.GetInProgressSets(ctx, leagueID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, second.MatchID, sets[0].MatchID)
	assert.Equal(t, 11, sets[0].Score1)

	mr.FastForward(InProgressTTL + time.Second)
	sets, err = cache.GetInProgressSets(ctx, leagueID)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestParseScore(t *testing.T) {
	testCases := []struct {
		in     string
		s1, s2 int
		ok     bool
	}{
		{in: "21:19", s1: 21, s2: 19, ok: true},
		{in: "0:0", ok: true},
		{in: "21-19"},
		{in: "a:1"},
		{in: "1:"},
	}

	for _, tc := range testCases {
		s1, s2, err := ParseScore(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.s1, s1)
		assert.Equal(t, tc.s2, s2)
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	_, err = Connect(context.Background(), "http://nope")
	assert.Error(t, err)
}
