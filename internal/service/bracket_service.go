package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/store"
	"golang.org/x/sync/errgroup"
)

type BracketService struct {
	db      *sqlx.DB
	leagues *store.LeagueStore
	matches *store.MatchStore
	builder *bracket.Builder
	events  Broadcaster
	now     func() time.Time
}

func NewBracketService(db *sqlx.DB, leagues *store.LeagueStore, matches *store.MatchStore, events Broadcaster) *BracketService {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &BracketService{
		db:      db,
		leagues: leagues,
		matches: matches,
		builder: bracket.NewBuilder(),
		events:  events,
		now:     time.Now,
	}
}

type BracketData struct {
	League       *bracket.League       `json:"league"`
	Participants []bracket.Participant `json:"participants"`
	Matches      []bracket.Match       `json:"matches"`
	Champion     *uuid.UUID            `json:"championId,omitempty"`
}

// Round returns the matches of round r in order.
func (d *BracketData) Round(r int) []bracket.Match {
	var matches []bracket.Match
	for _, m := range d.Matches {
		if m.RoundNumber == r {
			matches = append(matches, m)
		}
	}
	return matches
}

func (d *BracketData) Participant(id *uuid.UUID) *bracket.Participant {
	if id == nil {
		return nil
	}
	for i := range d.Participants {
		if d.Participants[i].ID == *id {
			return &d.Participants[i]
		}
	}
	return nil
}

// GenerateBracket draws the league's bracket. An existing bracket is replaced
// only while the league has not reached its start time.
func (s *BracketService) GenerateBracket(ctx context.Context, leagueID uuid.UUID) (*BracketData, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	league, err := s.leagues.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Status != bracket.LeagueRecruitingCompleted {
		return nil, fmt.Errorf("%w: league is %s", bracket.ErrLeagueRecruitingMustBeCompleted, league.Status)
	}

	if err := s.checkExistingBracket(ctx, tx, league); err != nil {
		return nil, err
	}

	participants, err := s.leagues.GetParticipants(ctx, tx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	info, err := s.builder.Build(league, participants)
	if err != nil {
		return nil, err
	}

	if err := s.matches.CreateMatches(ctx, tx, info.Matches); err != nil {
		return nil, err
	}
	if err := s.leagues.UpdateTotalRounds(ctx, tx, leagueID, info.TotalRounds); err != nil {
		return nil, fmt.Errorf("failed to store total rounds: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("Bracket generated", "league_id", leagueID, "participants", len(participants), "rounds", info.TotalRounds)

	data := &BracketData{League: league, Participants: participants, Matches: info.Matches}
	s.events.Broadcast(leagueID, EventBracketGenerated, data)
	return data, nil
}

// checkExistingBracket clears a previous draw, or refuses once the league started.
func (s *BracketService) checkExistingBracket(ctx context.Context, tx *sqlx.Tx, league *bracket.League) error {
	exists, err := s.matches.HasBracket(ctx, tx, league.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing bracket: %w", err)
	}
	if !exists {
		return nil
	}
	if league.Started(s.now()) {
		return fmt.Errorf("%w: league %s started at %s", bracket.ErrBracketLocked, league.ID, league.LeagueAt.Format(time.RFC3339))
	}

	slog.Info("Regenerating bracket", "league_id", league.ID)
	return s.matches.DeleteBracket(ctx, tx, league.ID)
}

// GetBracket loads the league, its participants and its matches concurrently.
func (s *BracketService) GetBracket(ctx context.Context, leagueID uuid.UUID) (*BracketData, error) {
	var (
		league       *bracket.League
		participants []bracket.Participant
		matches      []bracket.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		league, err = s.leagues.GetLeague(gctx, s.db, leagueID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.leagues.GetParticipants(gctx, s.db, leagueID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matches.GetMatches(gctx, s.db, leagueID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", bracket.ErrBracketNotExist, leagueID)
	}

	data := &BracketData{League: league, Participants: participants, Matches: matches}
	if final := matches[len(matches)-1]; final.RoundNumber == league.TotalRounds {
		data.Champion = final.Winner()
	}
	return data, nil
}
