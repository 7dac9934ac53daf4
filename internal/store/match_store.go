package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/bracket"
)

// MatchStore persists matches and the sets they own.
type MatchStore struct{}

func NewMatchStore() *MatchStore {
	return &MatchStore{}
}

func (s *MatchStore) CreateMatches(ctx context.Context, e sqlx.ExtContext, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}

	var sets []bracket.Set
	now := time.Now().UTC()
	for i := range matches {
		if matches[i].CreatedAt.IsZero() {
			matches[i].CreatedAt = now
		}
		sets = append(sets, matches[i].Sets...)
	}

	_, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO matches (id, league_id, match_type, round_number, match_order, participant_1_id, participant_2_id,
            win_count_1, win_count_2, result_1, result_2, status, is_bye, created_at)
		VALUES (:id, :league_id, :match_type, :round_number, :match_order, :participant_1_id, :participant_2_id,
            :win_count_1, :win_count_2, :result_1, :result_2, :status, :is_bye, :created_at)`, matches)
	if err != nil {
		return fmt.Errorf("failed to insert matches: %w", err)
	}

	if len(sets) == 0 {
		return nil
	}
	_, err = sqlx.NamedExecContext(ctx, e, `INSERT INTO match_sets (match_id, set_index, status, score_1, score_2)
		VALUES (:match_id, :set_index, :status, :score_1, :score_2)`, sets)
	if err != nil {
		return fmt.Errorf("failed to insert sets: %w", err)
	}
	return nil
}

// UpdateMatch writes the match progress and every set it carries. Participant
// slots are only ever changed through FillSlot and ClearSlot.
func (s *MatchStore) UpdateMatch(ctx context.Context, e sqlx.ExtContext, m *bracket.Match) error {
	res, err := sqlx.NamedExecContext(ctx, e, `UPDATE matches SET
            win_count_1 = :win_count_1, win_count_2 = :win_count_2,
            result_1 = :result_1, result_2 = :result_2,
            status = :status, is_bye = :is_bye
        WHERE id = :id`, m)
	if err != nil {
		return err
	}
	if err := expectOne(res, bracket.ErrMatchNotExist, m.ID); err != nil {
		return err
	}

	for _, set := range m.Sets {
		_, err := sqlx.NamedExecContext(ctx, e, `UPDATE match_sets SET status = :status, score_1 = :score_1, score_2 = :score_2
            WHERE match_id = :match_id AND set_index = :set_index`, set)
		if err != nil {
			return fmt.Errorf("failed to update set %d: %w", set.SetIndex, err)
		}
	}
	return nil
}

// FillSlot places participantID into an empty slot of a match. It reports false,
// without error, when the slot is already taken.
func (s *MatchStore) FillSlot(ctx context.Context, e sqlx.ExtContext, matchID uuid.UUID, slot int, participantID uuid.UUID) (bool, error) {
	var query string
	switch slot {
	case 1:
		query = "UPDATE matches SET participant_1_id = ? WHERE id = ? AND participant_1_id IS NULL"
	case 2:
		query = "UPDATE matches SET participant_2_id = ? WHERE id = ? AND participant_2_id IS NULL"
	default:
		return false, fmt.Errorf("invalid slot %d", slot)
	}

	res, err := e.ExecContext(ctx, e.Rebind(query), participantID, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearSlot empties a slot still held by participantID.
func (s *MatchStore) ClearSlot(ctx context.Context, e sqlx.ExtContext, matchID uuid.UUID, slot int, participantID uuid.UUID) (bool, error) {
	var query string
	switch slot {
	case 1:
		query = "UPDATE matches SET participant_1_id = NULL WHERE id = ? AND participant_1_id = ?"
	case 2:
		query = "UPDATE matches SET participant_2_id = NULL WHERE id = ? AND participant_2_id = ?"
	default:
		return false, fmt.Errorf("invalid slot %d", slot)
	}

	res, err := e.ExecContext(ctx, e.Rebind(query), matchID, participantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MatchStore) GetMatch(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	var m bracket.Match
	err := sqlx.GetContext(ctx, e, &m, e.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", bracket.ErrMatchNotExist, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSets(ctx, e, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchStore) GetMatchAt(ctx context.Context, e sqlx.ExtContext, leagueID uuid.UUID, pos bracket.Position) (*bracket.Match, error) {
	var m bracket.Match
	err := sqlx.GetContext(ctx, e, &m,
		e.Rebind("SELECT * FROM matches WHERE league_id = ? AND round_number = ? AND match_order = ?"),
		leagueID, pos.Round, pos.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: round %d order %d of league %s", bracket.ErrMatchNotExist, pos.Round, pos.Order, leagueID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSets(ctx, e, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatches returns the league's bracket ordered by round and order, sets included.
func (s *MatchStore) GetMatches(ctx context.Context, e sqlx.ExtContext, leagueID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := sqlx.SelectContext(ctx, e, &matches,
		e.Rebind("SELECT * FROM matches WHERE league_id = ? ORDER BY round_number ASC, match_order ASC"), leagueID)
	if err != nil {
		return nil, err
	}

	var sets []bracket.Set
	err = sqlx.SelectContext(ctx, e, &sets, e.Rebind(`SELECT ms.* FROM match_sets ms
        JOIN matches m ON m.id = ms.match_id
        WHERE m.league_id = ? ORDER BY ms.match_id, ms.set_index ASC`), leagueID)
	if err != nil {
		return nil, err
	}

	byMatch := make(map[uuid.UUID][]bracket.Set, len(matches))
	for _, set := range sets {
		byMatch[set.MatchID] = append(byMatch[set.MatchID], set)
	}
	for i := range matches {
		matches[i].Sets = byMatch[matches[i].ID]
	}
	return matches, nil
}

// GetOpenMatchFor returns the unfinished match the participant currently sits in.
func (s *MatchStore) GetOpenMatchFor(ctx context.Context, e sqlx.ExtContext, leagueID, participantID uuid.UUID) (*bracket.Match, error) {
	var m bracket.Match
	err := sqlx.GetContext(ctx, e, &m, e.Rebind(`SELECT * FROM matches
        WHERE league_id = ? AND (participant_1_id = ? OR participant_2_id = ?) AND status IN (?, ?)
        ORDER BY round_number DESC LIMIT 1`),
		leagueID, participantID, participantID, bracket.MatchNotStarted, bracket.MatchInProgress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no open match for participant %s", bracket.ErrMatchNotExist, participantID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSets(ctx, e, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchStore) HasBracket(ctx context.Context, e sqlx.ExtContext, leagueID uuid.UUID) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind("SELECT COUNT(*) FROM matches WHERE league_id = ?"), leagueID)
	return count > 0, err
}

// DeleteBracket removes every match of the league together with its sets.
func (s *MatchStore) DeleteBracket(ctx context.Context, e sqlx.ExtContext, leagueID uuid.UUID) error {
	_, err := e.ExecContext(ctx, e.Rebind("DELETE FROM match_sets WHERE match_id IN (SELECT id FROM matches WHERE league_id = ?)"), leagueID)
	if err != nil {
		return fmt.Errorf("failed to delete sets: %w", err)
	}
	_, err = e.ExecContext(ctx, e.Rebind("DELETE FROM matches WHERE league_id = ?"), leagueID)
	if err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return nil
}

func (s *MatchStore) loadSets(ctx context.Context, e sqlx.ExtContext, m *bracket.Match) error {
	m.Sets = []bracket.Set{}
	return sqlx.SelectContext(ctx, e, &m.Sets,
		e.Rebind("SELECT * FROM match_sets WHERE match_id = ? ORDER BY set_index ASC"), m.ID)
}
