package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/scorecache"
	"github.com/shuttlecourt/league/internal/store"
	"golang.org/x/sync/errgroup"
)

const maxBanAttempts = 3

var errMatchMoved = errors.New("open match changed before it was locked")

type MatchService struct {
	db      *sqlx.DB
	leagues *store.LeagueStore
	matches *store.MatchStore
	cache   ScoreCache
	events  Broadcaster
	locks   *matchLocks
	now     func() time.Time
}

func NewMatchService(db *sqlx.DB, leagues *store.LeagueStore, matches *store.MatchStore, cache ScoreCache, events Broadcaster) *MatchService {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &MatchService{
		db:      db,
		leagues: leagues,
		matches: matches,
		cache:   cache,
		events:  events,
		locks:   newMatchLocks(),
		now:     time.Now,
	}
}

type MatchData struct {
	Match        *bracket.Match       `json:"match"`
	Participant1 *bracket.Participant `json:"participant1,omitempty"`
	Participant2 *bracket.Participant `json:"participant2,omitempty"`
	// Where the winner goes next; nil for the final
	Next     *bracket.Position `json:"next,omitempty"`
	NextSlot int               `json:"nextSlot,omitempty"`
}

// Progress is what a score submission changed in the bracket.
type Progress struct {
	Match          *bracket.Match  `json:"match"`
	Advanced       []bracket.Match `json:"advanced,omitempty"`
	LeagueFinished bool            `json:"leagueFinished"`
}

type BanResult struct {
	Participant *bracket.Participant `json:"participant"`
	// Nil when the participant was not sitting in an unfinished match
	Progress *Progress `json:"progress,omitempty"`
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	m, err := s.matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, err
	}
	league, err := s.leagues.GetLeague(ctx, s.db, m.LeagueID)
	if err != nil {
		return nil, err
	}

	if idx := m.SetInProgress(); idx > 0 {
		s.overlayLiveScore(ctx, m, idx)
	}

	data := &MatchData{Match: m}
	if m.Participant1ID != nil {
		p, err := s.leagues.GetParticipant(ctx, s.db, m.LeagueID, *m.Participant1ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get participant 1: %w", err)
		}
		data.Participant1 = p
	}
	if m.Participant2ID != nil {
		p, err := s.leagues.GetParticipant(ctx, s.db, m.LeagueID, *m.Participant2ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get participant 2: %w", err)
		}
		data.Participant2 = p
	}
	if m.RoundNumber < league.TotalRounds {
		next, slot := bracket.FeederOf(m.RoundNumber, m.MatchOrder)
		data.Next = &next
		data.NextSlot = slot
	}
	return data, nil
}

// StartSet opens a set of a match whose participants are both known.
func (s *MatchService) StartSet(ctx context.Context, matchID uuid.UUID, setIndex int) (*bracket.Match, error) {
	unlock, err := s.lockMatch(ctx, matchID, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	league, err := s.activeLeague(ctx, tx, m.LeagueID)
	if err != nil {
		return nil, err
	}
	if err := m.StartSet(setIndex); err != nil {
		return nil, err
	}
	if err := s.matches.UpdateMatch(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if err := s.markPlaying(ctx, tx, league); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	set := m.Sets[setIndex-1]
	live := s.inProgressSet(m, set.SetIndex, set.Score1, set.Score2)
	s.publish(ctx,
		func(ctx context.Context) error {
			return s.cache.SetScore(ctx, m.MatchType, m.ID, set.SetIndex, set.Score1, set.Score2)
		},
		func(ctx context.Context) error {
			return s.cache.SaveInProgressSet(ctx, live)
		},
		func(context.Context) error {
			s.events.Broadcast(m.LeagueID, EventSetStarted, setEvent(m, set))
			return nil
		},
	)
	return m, nil
}

// RecordLiveScore updates the running score of an open set. Only the cache and
// the viewers see it; the durable score is written by RegisterSetScore.
func (s *MatchService) RecordLiveScore(ctx context.Context, matchID uuid.UUID, setIndex, score1, score2 int) (*scorecache.InProgressSet, error) {
	if score1 < 0 || score2 < 0 {
		return nil, fmt.Errorf("%w: %d-%d", bracket.ErrInvalidSetScore, score1, score2)
	}

	unlock, err := s.lockMatch(ctx, matchID, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, err
	}
	if m.Done() {
		return nil, fmt.Errorf("%w: %s", bracket.ErrMatchAlreadyFinished, m.ID)
	}
	set, err := m.Set(setIndex)
	if err != nil {
		return nil, err
	}
	if set.Status != bracket.SetInProgress {
		return nil, fmt.Errorf("%w: set %d of match %s is %s", bracket.ErrSetNotInProgress, setIndex, m.ID, set.Status)
	}

	live := s.inProgressSet(m, setIndex, score1, score2)
	s.publish(ctx,
		func(ctx context.Context) error {
			return s.cache.SetScore(ctx, m.MatchType, m.ID, setIndex, score1, score2)
		},
		func(ctx context.Context) error {
			return s.cache.SaveInProgressSet(ctx, live)
		},
		func(context.Context) error {
			s.events.Broadcast(m.LeagueID, EventScoreUpdated, live)
			return nil
		},
	)
	return &live, nil
}

// RegisterSetScore closes a set for good. When it decides the match the winner
// is moved into the next round within the same transaction.
func (s *MatchService) RegisterSetScore(ctx context.Context, matchID uuid.UUID, setIndex, score1, score2 int) (*Progress, error) {
	unlock, err := s.lockMatch(ctx, matchID, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	league, err := s.activeLeague(ctx, tx, m.LeagueID)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterSetScore(setIndex, score1, score2); err != nil {
		return nil, err
	}
	if err := s.matches.UpdateMatch(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if err := s.markPlaying(ctx, tx, league); err != nil {
		return nil, err
	}

	progress := &Progress{Match: m}
	if m.Winner() != nil {
		progress.Advanced, progress.LeagueFinished, err = s.advance(ctx, tx, league, m)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	set := m.Sets[setIndex-1]
	evict := []int{setIndex}
	if m.Done() {
		evict = setIndexes(m)
	}
	tasks := []func(context.Context) error{
		func(ctx context.Context) error {
			return s.cache.SetScore(ctx, m.MatchType, m.ID, setIndex, score1, score2)
		},
		s.evictTask(m, evict),
		func(context.Context) error {
			s.events.Broadcast(m.LeagueID, EventSetClosed, setEvent(m, set))
			return nil
		},
	}
	s.publish(ctx, append(tasks, s.progressTasks(league, progress)...)...)
	return progress, nil
}

// BanParticipant cancels a participant. If they are sitting in an unfinished
// match it is closed in favour of the opponent.
func (s *MatchService) BanParticipant(ctx context.Context, leagueID, participantID uuid.UUID) (*BanResult, error) {
	for attempt := 0; attempt < maxBanAttempts; attempt++ {
		openID, err := s.openMatchID(ctx, s.db, leagueID, participantID)
		if err != nil {
			return nil, err
		}
		result, err := s.ban(ctx, leagueID, participantID, openID)
		if errors.Is(err, errMatchMoved) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("participant %s kept changing matches during the ban", participantID)
}

// ban applies the ban assuming openID (uuid.Nil for none) is the participant's
// unfinished match. It returns errMatchMoved when that no longer holds once
// the match is locked.
func (s *MatchService) ban(ctx context.Context, leagueID, participantID, openID uuid.UUID) (*BanResult, error) {
	if openID != uuid.Nil {
		unlock, err := s.lockMatch(ctx, openID, true)
		if errors.Is(err, bracket.ErrMatchNotExist) {
			return nil, errMatchMoved
		}
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	league, err := s.leagues.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	p, err := s.leagues.GetParticipant(ctx, tx, leagueID, participantID)
	if err != nil {
		return nil, err
	}
	current, err := s.openMatchID(ctx, tx, leagueID, participantID)
	if err != nil {
		return nil, err
	}
	if current != openID {
		return nil, errMatchMoved
	}

	if !p.Canceled {
		if err := s.leagues.CancelParticipant(ctx, tx, leagueID, participantID); err != nil {
			return nil, fmt.Errorf("failed to cancel participant: %w", err)
		}
		p.Canceled = true
	}
	result := &BanResult{Participant: p}

	if openID == uuid.Nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		s.events.Broadcast(leagueID, EventParticipantBanned, result)
		return result, nil
	}

	m, err := s.matches.GetMatch(ctx, tx, openID)
	if err != nil {
		return nil, err
	}

	slot := m.SlotOf(participantID)
	decided, err := m.CloseForBannedParticipant(participantID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.UpdateMatch(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	progress := &Progress{Match: m}
	if decided {
		if err := s.markPlaying(ctx, tx, league); err != nil {
			return nil, err
		}
		progress.Advanced, progress.LeagueFinished, err = s.advance(ctx, tx, league, m)
		if err != nil {
			return nil, err
		}
	} else if _, err := s.matches.ClearSlot(ctx, tx, m.ID, slot, participantID); err != nil {
		return nil, fmt.Errorf("failed to clear slot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.Progress = progress

	slog.Info("Participant banned", "league_id", leagueID, "participant_id", participantID, "match_id", m.ID, "decided", decided)

	tasks := []func(context.Context) error{
		s.evictTask(m, setIndexes(m)),
		func(ctx context.Context) error {
			for _, set := range m.Sets {
				if err := s.cache.SetScore(ctx, m.MatchType, m.ID, set.SetIndex, 0, 0); err != nil {
					return err
				}
			}
			return nil
		},
		func(context.Context) error {
			s.events.Broadcast(leagueID, EventParticipantBanned, result)
			return nil
		},
	}
	s.publish(ctx, append(tasks, s.progressTasks(league, progress)...)...)
	return result, nil
}

// GetInProgressSets lists the sets being played in a league. A cache outage
// yields an empty list.
func (s *MatchService) GetInProgressSets(ctx context.Context, leagueID uuid.UUID) ([]scorecache.InProgressSet, error) {
	if _, err := s.leagues.GetLeague(ctx, s.db, leagueID); err != nil {
		return nil, err
	}
	sets, err := s.cache.GetInProgressSets(ctx, leagueID)
	if err != nil {
		slog.Warn("Failed to read in-progress sets", "league_id", leagueID, "error", err)
		return []scorecache.InProgressSet{}, nil
	}
	return sets, nil
}

// advance moves the winner of m forward, resolving byes on the way. It returns
// the matches it filled and whether the league is now finished.
func (s *MatchService) advance(ctx context.Context, tx *sqlx.Tx, league *bracket.League, m *bracket.Match) ([]bracket.Match, bool, error) {
	var changed []bracket.Match
	for {
		winner := m.Winner()
		if winner == nil {
			return changed, false, nil
		}
		if m.RoundNumber >= league.TotalRounds {
			if err := s.finishLeague(ctx, tx, league); err != nil {
				return nil, false, err
			}
			return changed, true, nil
		}

		pos, slot := bracket.FeederOf(m.RoundNumber, m.MatchOrder)
		next, err := s.matches.GetMatchAt(ctx, tx, league.ID, pos)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get next match: %w", err)
		}

		filled, err := s.matches.FillSlot(ctx, tx, next.ID, slot, *winner)
		if err != nil {
			return nil, false, fmt.Errorf("failed to advance winner: %w", err)
		}
		if !filled {
			if current := next.Participant(slot); current == nil || *current != *winner {
				slog.Warn("Next match slot already taken, winner not advanced",
					"match_id", m.ID, "next_match_id", next.ID, "slot", slot, "winner_id", *winner)
			}
			return changed, false, nil
		}
		next.SetParticipant(slot, winner)

		if !next.ResolveBye() {
			return append(changed, *next), false, nil
		}
		if err := s.matches.UpdateMatch(ctx, tx, next); err != nil {
			return nil, false, fmt.Errorf("failed to resolve bye: %w", err)
		}
		changed = append(changed, *next)
		m = next
	}
}

// overlayLiveScore replaces the durable score of the running set with the
// cached live score. The durable one is kept when the cache has nothing.
func (s *MatchService) overlayLiveScore(ctx context.Context, m *bracket.Match, setIndex int) {
	set, err := m.Set(setIndex)
	if err != nil {
		return
	}
	raw, found, err := s.cache.GetScore(ctx, m.MatchType, m.ID, setIndex)
	if err != nil {
		slog.Warn("Failed to read live score", "match_id", m.ID, "set", setIndex, "error", err)
		return
	}
	if !found {
		return
	}
	score1, score2, err := scorecache.ParseScore(raw)
	if err != nil {
		slog.Warn("Ignoring cached live score", "match_id", m.ID, "set", setIndex, "error", err)
		return
	}
	set.Score1, set.Score2 = score1, score2
}

// lockMatch takes the lock of the match's position. A match that may be
// decided also locks every position its winner can reach, so slot writes in
// later rounds are serialized with bans and scores there.
func (s *MatchService) lockMatch(ctx context.Context, matchID uuid.UUID, advancing bool) (func(), error) {
	m, err := s.matches.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, err
	}
	if !advancing {
		return s.locks.lock(keyOf(m)), nil
	}
	league, err := s.leagues.GetLeague(ctx, s.db, m.LeagueID)
	if err != nil {
		return nil, err
	}
	return s.locks.lockPath(keyOf(m), league.TotalRounds), nil
}

func (s *MatchService) openMatchID(ctx context.Context, e sqlx.ExtContext, leagueID, participantID uuid.UUID) (uuid.UUID, error) {
	m, err := s.matches.GetOpenMatchFor(ctx, e, leagueID, participantID)
	if errors.Is(err, bracket.ErrMatchNotExist) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (s *MatchService) activeLeague(ctx context.Context, tx *sqlx.Tx, leagueID uuid.UUID) (*bracket.League, error) {
	league, err := s.leagues.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Status == bracket.LeagueCanceled {
		return nil, fmt.Errorf("%w: league %s is canceled", bracket.ErrInvalidStatusTransition, leagueID)
	}
	return league, nil
}

func (s *MatchService) markPlaying(ctx context.Context, tx *sqlx.Tx, league *bracket.League) error {
	if league.Status != bracket.LeagueRecruitingCompleted {
		return nil
	}
	if err := s.leagues.UpdateStatus(ctx, tx, league.ID, bracket.LeaguePlaying); err != nil {
		return fmt.Errorf("failed to start league: %w", err)
	}
	league.Status = bracket.LeaguePlaying
	return nil
}

func (s *MatchService) finishLeague(ctx context.Context, tx *sqlx.Tx, league *bracket.League) error {
	if !league.CanTransition(bracket.LeagueFinished) {
		return fmt.Errorf("%w: %s -> %s", bracket.ErrInvalidStatusTransition, league.Status, bracket.LeagueFinished)
	}
	if err := s.leagues.UpdateStatus(ctx, tx, league.ID, bracket.LeagueFinished); err != nil {
		return fmt.Errorf("failed to finish league: %w", err)
	}
	league.Status = bracket.LeagueFinished
	return nil
}

func (s *MatchService) inProgressSet(m *bracket.Match, setIndex, score1, score2 int) scorecache.InProgressSet {
	return scorecache.InProgressSet{
		LeagueID:       m.LeagueID,
		MatchID:        m.ID,
		MatchType:      m.MatchType,
		RoundNumber:    m.RoundNumber,
		SetIndex:       setIndex,
		Participant1ID: m.Participant1ID,
		Participant2ID: m.Participant2ID,
		Score1:         score1,
		Score2:         score2,
		UpdatedAt:      s.now().UTC(),
	}
}

func (s *MatchService) evictTask(m *bracket.Match, setIndexes []int) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, idx := range setIndexes {
			if err := s.cache.Evict(ctx, scorecache.InProgressKey(m.LeagueID, m.ID, idx)); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *MatchService) progressTasks(league *bracket.League, p *Progress) []func(context.Context) error {
	var tasks []func(context.Context) error
	if p.Match.Done() {
		tasks = append(tasks, func(context.Context) error {
			s.events.Broadcast(league.ID, EventMatchFinished, p.Match)
			return nil
		})
	}
	if len(p.Advanced) > 0 {
		tasks = append(tasks, func(context.Context) error {
			s.events.Broadcast(league.ID, EventBracketUpdated, p.Advanced)
			return nil
		})
	}
	if p.LeagueFinished {
		tasks = append(tasks, func(context.Context) error {
			s.events.Broadcast(league.ID, EventLeagueFinished, league)
			return nil
		})
	}
	return tasks
}

// publish runs cache writes and broadcasts after the durable state is
// committed. Failures are logged and never reach the caller.
func (s *MatchService) publish(ctx context.Context, tasks ...func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	for _, task := range tasks {
		g.Go(func() error {
			return task(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("Live score update failed", "error", err)
	}
}

func setEvent(m *bracket.Match, set bracket.Set) SetEvent {
	return SetEvent{
		MatchID:     m.ID,
		RoundNumber: m.RoundNumber,
		SetIndex:    set.SetIndex,
		Score1:      set.Score1,
		Score2:      set.Score2,
		Status:      set.Status,
	}
}

func setIndexes(m *bracket.Match) []int {
	idx := make([]int, len(m.Sets))
	for i, set := range m.Sets {
		idx[i] = set.SetIndex
	}
	return idx
}
