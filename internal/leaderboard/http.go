package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/live-quiz/pkg/http/errors"
)

type sessionBoard interface {
	SessionTop(ctx context.Context, code string, limit int) ([]Entry, error)
}

// HTTPHandler exposes REST endpoints for archived session leaderboards.
type HTTPHandler struct {
	svc    sessionBoard
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc sessionBoard, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

type sessionResponse struct {
	Code    string  `json:"code"`
	Entries []Entry `json:"entries"`
}

// HandleGetSession responds with the archived final ranking of a session.
// Route: GET /v1/leaderboards/sessions/{code}?limit=10
func (h *HTTPHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.svc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "leaderboard archive is not configured")
		return
	}

	code := strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/sessions/")
	code = strings.ToUpper(strings.Trim(code, "/"))
	if code == "" || strings.Contains(code, "/") {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionCode, "session code is required")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.SessionTop(r.Context(), code, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("code", code).Msg("session leaderboard fetch failed")
		httperrors.RespondInternalError(w, "failed to load leaderboard")
		return
	}
	if len(entries) == 0 {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "no archived leaderboard for this session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{Code: code, Entries: entries})
}
