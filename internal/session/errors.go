package session

import (
	"fmt"

	httperrors "github.com/gokatarajesh/live-quiz/pkg/http/errors"
)

// Error is a rejected action. Code is machine readable, Message is shown to the user.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrSessionNotFound  = &Error{Code: httperrors.ErrCodeSessionNotFound, Message: "Game not found"}
	ErrNotHost          = &Error{Code: httperrors.ErrCodeNotHost, Message: "Only the host can do that"}
	ErrNotParticipant   = &Error{Code: httperrors.ErrCodePlayerNotFound, Message: "You have not joined this game"}
	ErrPlayerNotFound   = &Error{Code: httperrors.ErrCodePlayerNotFound, Message: "No player with that name in this game"}
	ErrNameEmpty        = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Name must not be empty"}
	ErrNameTooLong      = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Name is too long"}
	ErrNameTaken        = &Error{Code: httperrors.ErrCodeNameTaken, Message: "That name is already taken"}
	ErrNameBanned       = &Error{Code: httperrors.ErrCodeNameBanned, Message: "That name was removed for inactivity"}
	ErrNotBanned        = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "That name is not blocked"}
	ErrSessionFull      = &Error{Code: httperrors.ErrCodeSessionFull, Message: "This game is full"}
	ErrAlreadyJoined    = &Error{Code: httperrors.ErrCodeAlreadyExists, Message: "You already joined this game"}
	ErrHostCannotJoin   = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "The host cannot join as a player"}
	ErrTeamModeOff      = &Error{Code: httperrors.ErrCodeInvalidTeam, Message: "Team mode is not enabled"}
	ErrInvalidTeam      = &Error{Code: httperrors.ErrCodeInvalidTeam, Message: "Unknown team"}
	ErrTooFewTeams      = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "At least two teams are required"}
	ErrTooManyTeams     = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Too many teams"}
	ErrEmptyRoster      = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "At least one player is required to start"}
	ErrInvalidAnswer    = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Answer index must be between 0 and 3"}
	ErrAlreadyAnswered  = &Error{Code: httperrors.ErrCodeAlreadyAnswered, Message: "You already answered this question"}
	ErrTimeNotUp        = &Error{Code: httperrors.ErrCodeInvalidPhase, Message: "Time is not up yet"}
	ErrInvalidThreshold = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Inactivity threshold must be between 1 and 50"}
	ErrInvalidDelay     = &Error{Code: httperrors.ErrCodeValidationFailed, Message: "Autoplay delay must be between 3 and 120 seconds"}
	ErrHostTokenInvalid = &Error{Code: httperrors.ErrCodeInvalidToken, Message: "Host token is not valid for this game"}
	ErrHostConnected    = &Error{Code: httperrors.ErrCodeInvalidPhase, Message: "The host is still connected"}
	ErrCodeExhausted    = &Error{Code: httperrors.ErrCodeSessionCreateFailed, Message: "Could not allocate a game code, try again"}
	ErrInvalidCode      = &Error{Code: httperrors.ErrCodeInvalidSessionCode, Message: "Game code is not valid"}
	ErrShuttingDown     = &Error{Code: httperrors.ErrCodeServiceUnavailable, Message: "Server is shutting down"}
)

func phaseError(action string, phase Phase) *Error {
	return &Error{
		Code:    httperrors.ErrCodeInvalidPhase,
		Message: fmt.Sprintf("Cannot %s while the game is in %s", action, phase),
	}
}
