package bracket

import "errors"

var (
	// Not found
	ErrLeagueNotExist      = errors.New("league does not exist")
	ErrMatchNotExist       = errors.New("match does not exist")
	ErrSetNotExist         = errors.New("set does not exist in match")
	ErrBracketNotExist     = errors.New("bracket has not been generated for league")
	ErrParticipantNotExist = errors.New("participant does not exist in league")

	// Bracket generation
	ErrInvalidPlayerCount              = errors.New("bracket requires at least two active participants")
	ErrInvalidParticipant              = errors.New("participant does not fit the league match type")
	ErrLeagueRecruitingMustBeCompleted = errors.New("league recruiting must be completed before bracket generation")
	ErrBracketLocked                   = errors.New("bracket cannot be regenerated after the league start time")

	// Match progression
	ErrMatchAlreadyFinished = errors.New("match is already finished")
	ErrMatchNotReady        = errors.New("match is waiting for its participants")
	ErrSetNotInProgress     = errors.New("set is not in progress")
	ErrSetAlreadyClosed     = errors.New("set score is already registered")
	ErrInvalidSetScore      = errors.New("set score must be non-negative and cannot be tied")

	// League lifecycle
	ErrInvalidLeague           = errors.New("invalid league")
	ErrInvalidStatusTransition = errors.New("invalid league status transition")
	ErrRecruitingClosed        = errors.New("league is not recruiting")
)
