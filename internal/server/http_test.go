package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/live-quiz/internal/config"
)

func testConfig() *config.App {
	return &config.App{
		HTTPAddr: ":0",
		CORS: config.CORS{
			AllowedOrigins: []string{"https://quiz.example.com"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         60,
		},
	}
}

func serve(srv *http.Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPServer_BaseRoutes(t *testing.T) {
	srv := NewHTTPServer(testConfig(), zerolog.Nop(), nil, nil, Routes{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "ping succeeds without optional backends")

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/quizzes", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "unset routes are not mounted")
}

func TestHTTPServer_FeatureRoutes(t *testing.T) {
	hit := map[string]int{}
	mark := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hit[name]++
			w.WriteHeader(http.StatusNoContent)
		}
	}
	srv := NewHTTPServer(testConfig(), zerolog.Nop(), nil, nil, Routes{
		SessionWS:   mark("ws"),
		Quizzes:     mark("quizzes"),
		QRCode:      mark("qr"),
		Leaderboard: mark("leaderboard"),
	})

	for _, path := range []string{"/ws", "/api/quizzes", "/api/qrcode?code=ABC", "/v1/leaderboards/sessions/ABC"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
	}
	assert.Equal(t, map[string]int{"ws": 1, "quizzes": 1, "qr": 1, "leaderboard": 1}, hit)
}

func TestHTTPServer_CORS(t *testing.T) {
	srv := NewHTTPServer(testConfig(), zerolog.Nop(), nil, nil, Routes{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://quiz.example.com")
	rec := serve(srv, req)
	assert.Equal(t, "https://quiz.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(srv, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPServer_PingReportsUnreachableBackend(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	srv := NewHTTPServer(testConfig(), zerolog.Nop(), nil, rdb, Routes{})
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream error")
}
