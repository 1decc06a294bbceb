package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeTokenExpired = "token_expired"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"

	// Session errors
	ErrCodeSessionNotFound     = "session_not_found"
	ErrCodeInvalidSessionCode  = "invalid_session_code"
	ErrCodeInvalidPhase        = "invalid_phase"
	ErrCodeNotHost             = "not_host"
	ErrCodeNameTaken           = "name_taken"
	ErrCodeNameBanned          = "name_banned"
	ErrCodeInvalidTeam         = "invalid_team"
	ErrCodePlayerNotFound      = "player_not_found"
	ErrCodeSessionFull         = "session_full"
	ErrCodeAlreadyAnswered     = "already_answered"
	ErrCodeQuizNotFound        = "quiz_not_found"
	ErrCodeSessionCreateFailed = "session_create_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"

	// Feature availability
	ErrCodeFeatureNotAvailable = "feature_not_available"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
)
