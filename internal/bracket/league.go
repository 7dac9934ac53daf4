package bracket

import (
	"time"

	"github.com/google/uuid"
)

type LeagueStatus string

const (
	LeagueRecruiting          LeagueStatus = "RECRUITING"
	LeagueRecruitingCompleted LeagueStatus = "RECRUITING_COMPLETED"
	LeaguePlaying             LeagueStatus = "PLAYING"
	LeagueFinished            LeagueStatus = "FINISHED"
	LeagueCanceled            LeagueStatus = "CANCELED"
)

type MatchType string

const (
	Singles MatchType = "SINGLES"
	Doubles MatchType = "DOUBLES"
)

type League struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	MatchType   MatchType    `db:"match_type" json:"matchType"`
	Status      LeagueStatus `db:"status" json:"status"`
	LeagueAt    time.Time    `db:"league_at" json:"leagueAt"`
	TotalRounds int          `db:"total_rounds" json:"totalRounds"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

var statusTransitions = map[LeagueStatus][]LeagueStatus{
	LeagueRecruiting:          {LeagueRecruitingCompleted, LeagueCanceled},
	LeagueRecruitingCompleted: {LeagueRecruiting, LeaguePlaying, LeagueCanceled},
	LeaguePlaying:             {LeagueFinished, LeagueCanceled},
	LeagueFinished:            {},
	LeagueCanceled:            {},
}

// CanTransition reports whether a league may move from its current status to next.
func (l *League) CanTransition(next LeagueStatus) bool {
	if l.Status == next {
		return true
	}
	for _, allowed := range statusTransitions[l.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DefineTotalRounds records the round count computed when the bracket is built.
func (l *League) DefineTotalRounds(totalRounds int) {
	l.TotalRounds = totalRounds
}

// Started reports whether the scheduled start time has passed at now.
func (l *League) Started(now time.Time) bool {
	return !now.Before(l.LeagueAt)
}
