package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/store"
	"github.com/shuttlecourt/league/internal/utils"
)

type LeagueService struct {
	db    *sqlx.DB
	store *store.LeagueStore
	now   func() time.Time
}

func NewLeagueService(db *sqlx.DB, store *store.LeagueStore) *LeagueService {
	return &LeagueService{db: db, store: store, now: time.Now}
}

type LeagueInput struct {
	Name      string            `json:"name" yaml:"name"`
	MatchType bracket.MatchType `json:"matchType" yaml:"matchType"`
	LeagueAt  time.Time         `json:"leagueAt" yaml:"leagueAt"`
}

type ParticipantInput struct {
	MemberName  string `json:"memberName" yaml:"member"`
	PartnerName string `json:"partnerName" yaml:"partner"`
}

type LeagueData struct {
	League       *bracket.League       `json:"league"`
	Participants []bracket.Participant `json:"participants"`
}

func (s *LeagueService) CreateLeague(ctx context.Context, input LeagueInput) (*bracket.League, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", bracket.ErrInvalidLeague)
	}
	if _, err := bracket.KindOf(input.MatchType); err != nil {
		return nil, fmt.Errorf("%w: %v", bracket.ErrInvalidLeague, err)
	}
	if input.LeagueAt.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", bracket.ErrInvalidLeague)
	}

	league := &bracket.League{
		ID:        uuid.New(),
		Name:      name,
		MatchType: input.MatchType,
		Status:    bracket.LeagueRecruiting,
		LeagueAt:  input.LeagueAt.UTC(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateLeague(ctx, s.db, league); err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}
	return league, nil
}

func (s *LeagueService) GetLeague(ctx context.Context, id uuid.UUID) (*LeagueData, error) {
	league, err := s.store.GetLeague(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.GetParticipants(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return &LeagueData{League: league, Participants: participants}, nil
}

func (s *LeagueService) ListLeagues(ctx context.Context) ([]bracket.League, error) {
	return s.store.ListLeagues(ctx, s.db)
}

// RegisterParticipant adds an entry while the league is still recruiting.
func (s *LeagueService) RegisterParticipant(ctx context.Context, leagueID uuid.UUID, input ParticipantInput) (*bracket.Participant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	league, err := s.store.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Status != bracket.LeagueRecruiting {
		return nil, fmt.Errorf("%w: league is %s", bracket.ErrRecruitingClosed, league.Status)
	}

	p := &bracket.Participant{
		ID:          uuid.New(),
		LeagueID:    leagueID,
		MemberName:  strings.TrimSpace(input.MemberName),
		PartnerName: utils.StringOrNil(input.PartnerName),
		CreatedAt:   s.now().UTC(),
	}
	if p.MemberName == "" {
		return nil, fmt.Errorf("%w: member name is required", bracket.ErrInvalidParticipant)
	}
	kind, err := bracket.KindOf(league.MatchType)
	if err != nil {
		return nil, err
	}
	if err := kind.CheckParticipant(*p); err != nil {
		return nil, err
	}

	if err := s.store.CreateParticipant(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return p, tx.Commit()
}

// WithdrawParticipant cancels an entry while the league is recruiting. The row
// stays so matches of an earlier draw keep their references; the next draw
// skips it.
func (s *LeagueService) WithdrawParticipant(ctx context.Context, leagueID, participantID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	league, err := s.store.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return err
	}
	if league.Status != bracket.LeagueRecruiting {
		return fmt.Errorf("%w: league is %s", bracket.ErrRecruitingClosed, league.Status)
	}
	p, err := s.store.GetParticipant(ctx, tx, leagueID, participantID)
	if err != nil {
		return err
	}
	if p.Canceled {
		return fmt.Errorf("%w: %s already withdrawn", bracket.ErrParticipantNotExist, participantID)
	}
	if err := s.store.CancelParticipant(ctx, tx, leagueID, participantID); err != nil {
		return fmt.Errorf("failed to withdraw participant: %w", err)
	}
	return tx.Commit()
}

func (s *LeagueService) CloseRecruiting(ctx context.Context, leagueID uuid.UUID) (*bracket.League, error) {
	return s.ChangeStatus(ctx, leagueID, bracket.LeagueRecruitingCompleted)
}

func (s *LeagueService) CancelLeague(ctx context.Context, leagueID uuid.UUID) (*bracket.League, error) {
	return s.ChangeStatus(ctx, leagueID, bracket.LeagueCanceled)
}

// ChangeStatus moves the league along its lifecycle.
func (s *LeagueService) ChangeStatus(ctx context.Context, leagueID uuid.UUID, next bracket.LeagueStatus) (*bracket.League, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	league, err := s.store.GetLeague(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if !league.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", bracket.ErrInvalidStatusTransition, league.Status, next)
	}
	if err := s.store.UpdateStatus(ctx, tx, leagueID, next); err != nil {
		return nil, fmt.Errorf("failed to update league status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	league.Status = next
	return league, nil
}
