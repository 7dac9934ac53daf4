package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/scorecache"
)

const (
	EventBracketGenerated  = "BRACKET_GENERATED"
	EventSetStarted        = "SET_STARTED"
	EventScoreUpdated      = "SCORE_UPDATED"
	EventSetClosed         = "SET_CLOSED"
	EventMatchFinished     = "MATCH_FINISHED"
	EventBracketUpdated    = "BRACKET_UPDATED"
	EventParticipantBanned = "PARTICIPANT_BANNED"
	EventLeagueFinished    = "LEAGUE_FINISHED"
)

// ScoreCache holds live set scores outside the durable store.
type ScoreCache interface {
	SetScore(ctx context.Context, matchType bracket.MatchType, matchID uuid.UUID, setIndex, score1, score2 int) error
	GetScore(ctx context.Context, matchType bracket.MatchType, matchID uuid.UUID, setIndex int) (string, bool, error)
	SaveInProgressSet(ctx context.Context, set scorecache.InProgressSet) error
	GetInProgressSets(ctx context.Context, leagueID uuid.UUID) ([]scorecache.InProgressSet, error)
	Evict(ctx context.Context, key string) error
}

// Broadcaster pushes events to whoever follows a league.
type Broadcaster interface {
	Broadcast(leagueID uuid.UUID, eventType string, payload any)
}

type SetEvent struct {
	MatchID     uuid.UUID         `json:"matchId"`
	RoundNumber int               `json:"roundNumber"`
	SetIndex    int               `json:"setIndex"`
	Score1      int               `json:"score1"`
	Score2      int               `json:"score2"`
	Status      bracket.SetStatus `json:"status"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(uuid.UUID, string, any) {}
