package bracket

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noShuffle(int, func(i, j int)) {}

func makeParticipants(leagueID uuid.UUID, n int) []Participant {
	ps := make([]Participant, n)
	for i := range ps {
		ps[i] = Participant{ID: uuid.New(), LeagueID: leagueID, MemberName: fmt.Sprintf("Player %d", i+1)}
	}
	return ps
}

func singlesLeague() *League {
	return &League{ID: uuid.New(), Name: "Autumn Open", MatchType: Singles, Status: LeagueRecruitingCompleted}
}

func TestBuildUsesEveryParticipantOnce(t *testing.T) {
	for n := 2; n <= 17; n++ {
		t.Run(fmt.Sprintf("%d participants", n), func(t *testing.T) {
			league := singlesLeague()
			participants := makeParticipants(league.ID, n)

			info, err := NewBuilder().Build(league, participants)
			require.NoError(t, err)

			assert.Equal(t, TotalRounds(n), info.TotalRounds)
			assert.Equal(t, info.TotalRounds, league.TotalRounds)

			seen := make(map[uuid.UUID]int)
			round1 := 0
			for _, m := range info.Matches {
				if m.RoundNumber != 1 {
					continue
				}
				round1++
				for _, id := range []*uuid.UUID{m.Participant1ID, m.Participant2ID} {
					if id != nil {
						seen[*id]++
					}
				}
			}
			assert.Len(t, seen, n)
			for id, count := range seen {
				assert.Equal(t, 1, count, "participant %s placed more than once", id)
			}
			assert.Equal(t, (n+1)/2, round1)

			finals := 0
			for _, m := range info.Matches {
				if m.RoundNumber == info.TotalRounds {
					finals++
				}
			}
			assert.Equal(t, 1, finals)
		})
	}
}

func TestBuildFourParticipants(t *testing.T) {
	league := singlesLeague()
	participants := makeParticipants(league.ID, 4)

	info, err := NewBuilder().WithShuffle(noShuffle).Build(league, participants)
	require.NoError(t, err)

	require.Len(t, info.Matches, 3)
	assert.Equal(t, 2, info.TotalRounds)

	first := info.Match(Position{Round: 1, Order: 1})
	require.NotNil(t, first)
	assert.Equal(t, participants[0].ID, *first.Participant1ID)
	assert.Equal(t, participants[1].ID, *first.Participant2ID)

	final := info.Match(Position{Round: 2, Order: 1})
	require.NotNil(t, final)
	assert.Nil(t, final.Participant1ID)
	assert.Nil(t, final.Participant2ID)
	assert.False(t, final.IsBye)

	for _, m := range info.Matches {
		assert.Len(t, m.Sets, SetsPerMatch)
		assert.Equal(t, MatchNotStarted, m.Status)
		for _, s := range m.Sets {
			assert.Equal(t, SetNotOpened, s.Status)
		}
	}
}

func TestBuildOddFieldAdvancesByes(t *testing.T) {
	league := singlesLeague()
	participants := makeParticipants(league.ID, 5)

	info, err := NewBuilder().WithShuffle(noShuffle).Build(league, participants)
	require.NoError(t, err)
	require.Equal(t, 3, info.TotalRounds)

	bye := info.Match(Position{Round: 1, Order: 3})
	require.NotNil(t, bye)
	assert.True(t, bye.IsBye)
	assert.Equal(t, MatchBye, bye.Status)
	assert.Equal(t, ResultWin, bye.Result1)
	assert.Equal(t, participants[4].ID, *bye.Participant1ID)
	assert.Nil(t, bye.Participant2ID)

	// The lone entrant of round 2 also skips ahead to the final.
	round2Bye := info.Match(Position{Round: 2, Order: 2})
	require.NotNil(t, round2Bye)
	assert.Equal(t, MatchBye, round2Bye.Status)
	assert.Equal(t, participants[4].ID, *round2Bye.Participant1ID)

	final := info.Match(Position{Round: 3, Order: 1})
	require.NotNil(t, final)
	assert.Nil(t, final.Participant1ID)
	require.NotNil(t, final.Participant2ID)
	assert.Equal(t, participants[4].ID, *final.Participant2ID)
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewBuilder().Build(singlesLeague(), nil)
		assert.ErrorIs(t, err, ErrInvalidPlayerCount)
	})

	t.Run("only one active", func(t *testing.T) {
		league := singlesLeague()
		participants := makeParticipants(league.ID, 2)
		participants[1].Canceled = true

		_, err := NewBuilder().Build(league, participants)
		assert.ErrorIs(t, err, ErrInvalidPlayerCount)
	})

	t.Run("singles entry with partner", func(t *testing.T) {
		league := singlesLeague()
		participants := makeParticipants(league.ID, 2)
		participants[0].PartnerName = utils.Ptr("Partner")

		_, err := NewBuilder().Build(league, participants)
		assert.ErrorIs(t, err, ErrInvalidParticipant)
	})

	t.Run("doubles entry without partner", func(t *testing.T) {
		league := singlesLeague()
		league.MatchType = Doubles

		_, err := NewBuilder().Build(league, makeParticipants(league.ID, 2))
		assert.ErrorIs(t, err, ErrInvalidParticipant)
	})
}

func TestBuildSkipsCanceledParticipants(t *testing.T) {
	league := singlesLeague()
	participants := makeParticipants(league.ID, 5)
	participants[2].Canceled = true

	info, err := NewBuilder().Build(league, participants)
	require.NoError(t, err)
	assert.Equal(t, 2, info.TotalRounds)

	for _, m := range info.Matches {
		assert.Zero(t, m.SlotOf(participants[2].ID))
	}
}
