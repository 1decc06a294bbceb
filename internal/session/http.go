package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/gokatarajesh/live-quiz/internal/quiz"
	httperrors "github.com/gokatarajesh/live-quiz/pkg/http/errors"
)

const qrSize = 320

type quizLister interface {
	List(ctx context.Context) ([]quiz.Summary, error)
}

type sessionLookup interface {
	Get(code string) (*Session, error)
}

// HTTPHandlers provides the read-only REST endpoints around sessions.
type HTTPHandlers struct {
	quizzes  quizLister
	sessions sessionLookup
	baseURL  string
	logger   zerolog.Logger
}

// NewHTTPHandlers creates the handlers. An empty baseURL means join links
// are derived from the incoming request.
func NewHTTPHandlers(quizzes quizLister, sessions sessionLookup, baseURL string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		quizzes:  quizzes,
		sessions: sessions,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// ListQuizzes handles GET /api/quizzes
func (h *HTTPHandlers) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	list, err := h.quizzes.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list quizzes")
		httperrors.RespondInternalError(w, "failed to load quizzes")
		return
	}
	if list == nil {
		list = []quiz.Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode quiz list")
	}
}

// QRCode handles GET /api/qrcode?code=ABC123 and returns a PNG of the join link.
func (h *HTTPHandlers) QRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	code := NormalizeCode(r.URL.Query().Get("code"))
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionCode, "code is required")
		return
	}
	if _, err := h.sessions.Get(code); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "game not found")
			return
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionCode, err.Error())
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("qr generation failed")
		httperrors.RespondInternalError(w, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *HTTPHandlers) joinURL(r *http.Request, code string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?code=" + url.QueryEscape(code)
}
