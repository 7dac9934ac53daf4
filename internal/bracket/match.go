package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchNotStarted MatchStatus = "NOT_STARTED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchFinished   MatchStatus = "FINISHED"
	MatchBye        MatchStatus = "BYE"
)

type MatchResult string

const (
	ResultNone MatchResult = "NONE"
	ResultWin  MatchResult = "WIN"
	ResultLose MatchResult = "LOSE"
	ResultDraw MatchResult = "DRAW"
)

type SetStatus string

const (
	SetNotOpened  SetStatus = "NOT_OPENED"
	SetInProgress SetStatus = "IN_PROGRESS"
	SetClosed     SetStatus = "CLOSED"
)

type Set struct {
	MatchID  uuid.UUID `db:"match_id" json:"matchId"`
	SetIndex int       `db:"set_index" json:"setIndex"`
	Status   SetStatus `db:"status" json:"status"`
	Score1   int       `db:"score_1" json:"score1"`
	Score2   int       `db:"score_2" json:"score2"`
}

type Match struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeagueID  uuid.UUID `db:"league_id" json:"leagueId"`
	MatchType MatchType `db:"match_type" json:"matchType"`

	// Position in the bracket arena
	RoundNumber int `db:"round_number" json:"roundNumber"`
	MatchOrder  int `db:"match_order" json:"matchOrder"`

	Participant1ID *uuid.UUID `db:"participant_1_id" json:"participant1Id"`
	Participant2ID *uuid.UUID `db:"participant_2_id" json:"participant2Id"`

	WinCount1 int         `db:"win_count_1" json:"winCount1"`
	WinCount2 int         `db:"win_count_2" json:"winCount2"`
	Result1   MatchResult `db:"result_1" json:"result1"`
	Result2   MatchResult `db:"result_2" json:"result2"`
	Status    MatchStatus `db:"status" json:"status"`

	// A bye match only ever receives one participant, who advances without playing.
	IsBye bool `db:"is_bye" json:"isBye"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Sets []Set `db:"-" json:"sets"`
}

// NewMatch creates an empty match at (round, order) with the set skeleton of kind.
func NewMatch(leagueID uuid.UUID, kind MatchKind, round, order int) Match {
	m := Match{
		ID:          uuid.New(),
		LeagueID:    leagueID,
		MatchType:   kind.Type(),
		RoundNumber: round,
		MatchOrder:  order,
		Result1:     ResultNone,
		Result2:     ResultNone,
		Status:      MatchNotStarted,
	}
	for i := 1; i <= kind.SetCount(); i++ {
		m.Sets = append(m.Sets, Set{MatchID: m.ID, SetIndex: i, Status: SetNotOpened})
	}
	return m
}

func (m *Match) Participant(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Participant1ID
	}
	return m.Participant2ID
}

func (m *Match) SetParticipant(slot int, id *uuid.UUID) {
	if slot == 1 {
		m.Participant1ID = id
	} else {
		m.Participant2ID = id
	}
}

// SlotOf returns the slot holding participantID, or 0.
func (m *Match) SlotOf(participantID uuid.UUID) int {
	if m.Participant1ID != nil && *m.Participant1ID == participantID {
		return 1
	}
	if m.Participant2ID != nil && *m.Participant2ID == participantID {
		return 2
	}
	return 0
}

func (m *Match) Ready() bool {
	return m.Participant1ID != nil && m.Participant2ID != nil
}

// Done reports whether the match reached a terminal status.
func (m *Match) Done() bool {
	return m.Status == MatchFinished || m.Status == MatchBye
}

func (m *Match) Set(index int) (*Set, error) {
	if index < 1 || index > len(m.Sets) {
		return nil, fmt.Errorf("%w: set %d of match %s", ErrSetNotExist, index, m.ID)
	}
	return &m.Sets[index-1], nil
}

// SetInProgress returns the index of the open set, or 0.
func (m *Match) SetInProgress() int {
	for _, s := range m.Sets {
		if s.Status == SetInProgress {
			return s.SetIndex
		}
	}
	return 0
}

// setsToWin follows the match kind; a majority of the sets is the fallback
// for a type this build does not know.
func (m *Match) setsToWin() int {
	if kind, err := KindOf(m.MatchType); err == nil {
		return kind.SetsToWin()
	}
	return len(m.Sets)/2 + 1
}

// WinnerSlot returns the winning slot, or 0 while undecided.
func (m *Match) WinnerSlot() int {
	switch {
	case m.Result1 == ResultWin:
		return 1
	case m.Result2 == ResultWin:
		return 2
	}
	return 0
}

func (m *Match) Winner() *uuid.UUID {
	if slot := m.WinnerSlot(); slot != 0 {
		return m.Participant(slot)
	}
	return nil
}

func (m *Match) IsWinner(slot int) bool {
	return m.Done() && m.WinnerSlot() == slot
}

func (m *Match) IsLoser(slot int) bool {
	return m.Done() && m.WinnerSlot() != 0 && m.WinnerSlot() != slot
}

// StartSet opens set index and puts the match in progress.
func (m *Match) StartSet(index int) error {
	if m.Done() {
		return fmt.Errorf("%w: %s", ErrMatchAlreadyFinished, m.ID)
	}
	if !m.Ready() {
		return fmt.Errorf("%w: %s", ErrMatchNotReady, m.ID)
	}
	set, err := m.Set(index)
	if err != nil {
		return err
	}
	if set.Status == SetClosed {
		return fmt.Errorf("%w: set %d of match %s", ErrSetAlreadyClosed, index, m.ID)
	}
	set.Status = SetInProgress
	m.Status = MatchInProgress
	return nil
}

// RegisterSetScore closes set index with the given score and credits the set
// to the higher scoring side.
func (m *Match) RegisterSetScore(index, score1, score2 int) error {
	if score1 < 0 || score2 < 0 || score1 == score2 {
		return fmt.Errorf("%w: %d-%d", ErrInvalidSetScore, score1, score2)
	}
	if m.Done() {
		return fmt.Errorf("%w: %s", ErrMatchAlreadyFinished, m.ID)
	}
	if !m.Ready() {
		return fmt.Errorf("%w: %s", ErrMatchNotReady, m.ID)
	}
	set, err := m.Set(index)
	if err != nil {
		return err
	}
	if set.Status == SetClosed {
		return fmt.Errorf("%w: set %d of match %s", ErrSetAlreadyClosed, index, m.ID)
	}

	set.Score1 = score1
	set.Score2 = score2
	set.Status = SetClosed
	m.Status = MatchInProgress

	if score1 > score2 {
		m.winSet(1)
	} else {
		m.winSet(2)
	}
	m.settleIfExhausted()
	return nil
}

func (m *Match) winSet(slot int) {
	if slot == 1 {
		m.WinCount1++
		if m.WinCount1 == m.setsToWin() {
			m.finish(1)
		}
		return
	}
	m.WinCount2++
	if m.WinCount2 == m.setsToWin() {
		m.finish(2)
	}
}

func (m *Match) finish(winnerSlot int) {
	if winnerSlot == 1 {
		m.Result1, m.Result2 = ResultWin, ResultLose
	} else {
		m.Result1, m.Result2 = ResultLose, ResultWin
	}
	m.Status = MatchFinished
}

// settleIfExhausted decides a match whose sets are all closed without either
// side reaching the threshold.
func (m *Match) settleIfExhausted() {
	if m.Done() {
		return
	}
	for _, s := range m.Sets {
		if s.Status != SetClosed {
			return
		}
	}
	switch {
	case m.WinCount1 > m.WinCount2:
		m.finish(1)
	case m.WinCount2 > m.WinCount1:
		m.finish(2)
	default:
		m.Result1, m.Result2 = ResultDraw, ResultDraw
		m.Status = MatchFinished
	}
}

// ResolveBye advances the single participant of a bye match. It reports
// whether the bye was resolved.
func (m *Match) ResolveBye() bool {
	if !m.IsBye || m.Done() {
		return false
	}
	switch {
	case m.Participant1ID != nil && m.Participant2ID == nil:
		m.Result1, m.Result2 = ResultWin, ResultNone
	case m.Participant2ID != nil && m.Participant1ID == nil:
		m.Result1, m.Result2 = ResultNone, ResultWin
	default:
		return false
	}
	m.Status = MatchBye
	return true
}

// CloseForBannedParticipant ends the match administratively: every set is
// zeroed and the opponent of the banned participant is awarded the match. When
// no opponent has arrived yet the banned participant is removed and the match
// turns into a bye for whoever fills the slot later. It reports whether a
// winner is now known.
func (m *Match) CloseForBannedParticipant(participantID uuid.UUID) (bool, error) {
	if m.Done() {
		return false, fmt.Errorf("%w: %s", ErrMatchAlreadyFinished, m.ID)
	}
	banned := m.SlotOf(participantID)
	if banned == 0 {
		return false, fmt.Errorf("%w: %s not in match %s", ErrParticipantNotExist, participantID, m.ID)
	}
	for i := range m.Sets {
		m.Sets[i].Score1 = 0
		m.Sets[i].Score2 = 0
		m.Sets[i].Status = SetClosed
	}
	m.WinCount1, m.WinCount2 = 0, 0

	opponent := 3 - banned
	if m.Participant(opponent) == nil {
		m.SetParticipant(banned, nil)
		m.Result1, m.Result2 = ResultNone, ResultNone
		m.Status = MatchNotStarted
		m.IsBye = true
		return false, nil
	}
	m.finish(opponent)
	return true, nil
}
