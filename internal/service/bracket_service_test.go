package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBracket(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	league, participants := env.leagueWith(t, 4)

	data, err := env.brackets.GenerateBracket(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, data.League.TotalRounds)
	require.Len(t, data.Matches, 3)
	assert.Len(t, data.Round(1), 2)
	assert.Len(t, data.Round(2), 1)
	assert.Equal(t, 1, env.events.count(EventBracketGenerated))

	loaded, err := env.brackets.GetBracket(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.League.TotalRounds)
	assert.Len(t, loaded.Participants, 4)
	require.Len(t, loaded.Matches, 3)
	assert.Nil(t, loaded.Champion)

	first := loaded.Round(1)[0]
	assert.Equal(t, participants[0].ID, loaded.Participant(first.Participant1ID).ID)
	assert.Equal(t, participants[1].ID, loaded.Participant(first.Participant2ID).ID)
	assert.Nil(t, loaded.Participant(loaded.Round(2)[0].Participant1ID))
}

func TestGenerateBracketRequiresClosedRecruiting(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	league, err := env.leagues.CreateLeague(ctx, LeagueInput{Name: "Open", MatchType: bracket.Singles, LeagueAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = env.brackets.GenerateBracket(ctx, league.ID)
	assert.ErrorIs(t, err, bracket.ErrLeagueRecruitingMustBeCompleted)

	_, err = env.brackets.GenerateBracket(ctx, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrLeagueNotExist)
}

func TestGenerateBracketWithoutParticipants(t *testing.T) {
	env := setupTestEnv(t)

	league, _ := env.leagueWith(t, 0)
	_, err := env.brackets.GenerateBracket(context.Background(), league.ID)
	assert.ErrorIs(t, err, bracket.ErrInvalidPlayerCount)

	_, err = env.brackets.GetBracket(context.Background(), league.ID)
	assert.ErrorIs(t, err, bracket.ErrBracketNotExist)
}

func TestRegenerateBracketBeforeStart(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	league, _ := env.leagueWith(t, 6)

	first, err := env.brackets.GenerateBracket(ctx, league.ID)
	require.NoError(t, err)
	second, err := env.brackets.GenerateBracket(ctx, league.ID)
	require.NoError(t, err)

	loaded, err := env.brackets.GetBracket(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Matches, len(second.Matches))

	oldIDs := make(map[uuid.UUID]bool)
	for _, m := range first.Matches {
		oldIDs[m.ID] = true
	}
	for i, m := range loaded.Matches {
		assert.False(t, oldIDs[m.ID], "old match %s survived regeneration", m.ID)
		assert.Equal(t, second.Matches[i].ID, m.ID)
	}

	var sets int
	require.NoError(t, env.db.Get(&sets, "SELECT COUNT(*) FROM match_sets"))
	assert.Equal(t, len(second.Matches)*bracket.SetsPerMatch, sets)
}

func TestRegenerateBracketAfterStartIsLocked(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	league, _ := env.leagueWith(t, 4)
	original, err := env.brackets.GenerateBracket(ctx, league.ID)
	require.NoError(t, err)

	env.brackets.now = func() time.Time { return league.LeagueAt.Add(time.Minute) }

	_, err = env.brackets.GenerateBracket(ctx, league.ID)
	assert.ErrorIs(t, err, bracket.ErrBracketLocked)

	loaded, err := env.brackets.GetBracket(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Matches, len(original.Matches))
	assert.Equal(t, original.Matches[0].ID, loaded.Matches[0].ID)
}

func TestGenerateBracketSkipsBannedParticipants(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	league, participants := env.leagueWith(t, 5)
	_, err := env.matches.BanParticipant(ctx, league.ID, participants[4].ID)
	require.NoError(t, err)

	data, err := env.brackets.GenerateBracket(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, data.League.TotalRounds)
	for _, m := range data.Matches {
		assert.Zero(t, m.SlotOf(participants[4].ID))
	}
}
