package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/bracket"
)

// LeagueStore persists leagues and their participant registry. Every method
// takes the executor explicitly so callers can compose them inside a transaction.
type LeagueStore struct{}

func NewLeagueStore() *LeagueStore {
	return &LeagueStore{}
}

func (s *LeagueStore) CreateLeague(ctx context.Context, e sqlx.ExtContext, league *bracket.League) error {
	_, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO leagues (id, name, match_type, status, league_at, total_rounds, created_at)
        VALUES (:id, :name, :match_type, :status, :league_at, :total_rounds, :created_at)`, league)
	return err
}

func (s *LeagueStore) GetLeague(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) (*bracket.League, error) {
	var league bracket.League
	err := sqlx.GetContext(ctx, e, &league, e.Rebind("SELECT * FROM leagues WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", bracket.ErrLeagueNotExist, id)
	}
	if err != nil {
		return nil, err
	}
	return &league, nil
}

func (s *LeagueStore) ListLeagues(ctx context.Context, e sqlx.ExtContext) ([]bracket.League, error) {
	leagues := []bracket.League{}
	err := sqlx.SelectContext(ctx, e, &leagues, "SELECT * FROM leagues ORDER BY league_at ASC")
	return leagues, err
}

func (s *LeagueStore) UpdateStatus(ctx context.Context, e sqlx.ExtContext, id uuid.UUID, status bracket.LeagueStatus) error {
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE leagues SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return expectOne(res, bracket.ErrLeagueNotExist, id)
}

func (s *LeagueStore) UpdateTotalRounds(ctx context.Context, e sqlx.ExtContext, id uuid.UUID, totalRounds int) error {
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE leagues SET total_rounds = ? WHERE id = ?"), totalRounds, id)
	if err != nil {
		return err
	}
	return expectOne(res, bracket.ErrLeagueNotExist, id)
}

func (s *LeagueStore) CreateParticipant(ctx context.Context, e sqlx.ExtContext, p *bracket.Participant) error {
	_, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO league_participants (id, league_id, member_name, partner_name, canceled, created_at)
        VALUES (:id, :league_id, :member_name, :partner_name, :canceled, :created_at)`, p)
	return err
}

func (s *LeagueStore) GetParticipant(ctx context.Context, e sqlx.ExtContext, leagueID, id uuid.UUID) (*bracket.Participant, error) {
	var p bracket.Participant
	err := sqlx.GetContext(ctx, e, &p, e.Rebind("SELECT * FROM league_participants WHERE league_id = ? AND id = ?"), leagueID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", bracket.ErrParticipantNotExist, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipants returns every participant of the league in registration order,
// canceled ones included.
func (s *LeagueStore) GetParticipants(ctx context.Context, e sqlx.ExtContext, leagueID uuid.UUID) ([]bracket.Participant, error) {
	participants := []bracket.Participant{}
	err := sqlx.SelectContext(ctx, e, &participants,
		e.Rebind("SELECT * FROM league_participants WHERE league_id = ? ORDER BY created_at ASC, id ASC"), leagueID)
	return participants, err
}

func (s *LeagueStore) CancelParticipant(ctx context.Context, e sqlx.ExtContext, leagueID, id uuid.UUID) error {
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE league_participants SET canceled = ? WHERE league_id = ? AND id = ?"), true, leagueID, id)
	if err != nil {
		return err
	}
	return expectOne(res, bracket.ErrParticipantNotExist, id)
}

func expectOne(res sql.Result, notFound error, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
