package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shuttlecourt/league/internal/bracket"
)

type errorBody struct {
	Error string `json:"error"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func Conflict(w http.ResponseWriter, msg string, err error) {
	slog.Warn("conflict", "message", msg, "error", err)
	JSON(w, http.StatusConflict, errorBody{Error: msg})
}

var (
	notFoundErrors = []error{
		bracket.ErrLeagueNotExist,
		bracket.ErrMatchNotExist,
		bracket.ErrSetNotExist,
		bracket.ErrBracketNotExist,
		bracket.ErrParticipantNotExist,
	}
	badRequestErrors = []error{
		bracket.ErrInvalidPlayerCount,
		bracket.ErrInvalidParticipant,
		bracket.ErrInvalidSetScore,
		bracket.ErrInvalidLeague,
	}
	conflictErrors = []error{
		bracket.ErrLeagueRecruitingMustBeCompleted,
		bracket.ErrBracketLocked,
		bracket.ErrMatchAlreadyFinished,
		bracket.ErrMatchNotReady,
		bracket.ErrSetNotInProgress,
		bracket.ErrSetAlreadyClosed,
		bracket.ErrInvalidStatusTransition,
		bracket.ErrRecruitingClosed,
	}
)

// Error answers with the status matching a domain error, 500 otherwise.
func Error(w http.ResponseWriter, msg string, err error) {
	switch {
	case isAny(err, notFoundErrors):
		NotFound(w, err.Error(), err)
	case isAny(err, badRequestErrors):
		BadRequest(w, err.Error(), err)
	case isAny(err, conflictErrors):
		Conflict(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
