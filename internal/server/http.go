package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/config"
	"github.com/gokatarajesh/live-quiz/internal/logging"
)

// WSUpgrader handles WebSocket upgrades. Participants arrive through shared
// join links, so any origin may connect.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Routes are the feature handlers mounted by NewHTTPServer. Nil entries are skipped.
type Routes struct {
	SessionWS   http.HandlerFunc
	Quizzes     http.HandlerFunc
	QRCode      http.HandlerFunc
	Leaderboard http.HandlerFunc
}

// NewHTTPServer wires base routes (health, metrics, ping) plus the feature routes.
// pool and redis may be nil when those backends are not configured.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		if err := pingDependencies(ctx, pool, redis); err != nil {
			reqLogger := logging.FromContext(ctx)
			reqLogger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes.SessionWS != nil {
		mux.HandleFunc("/ws", routes.SessionWS)
	}
	if routes.Quizzes != nil {
		mux.HandleFunc("/api/quizzes", routes.Quizzes)
	}
	if routes.QRCode != nil {
		mux.HandleFunc("/api/qrcode", routes.QRCode)
	}
	if routes.Leaderboard != nil {
		mux.HandleFunc("/v1/leaderboards/sessions/", routes.Leaderboard)
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withCORS(cfg.CORS, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func withCORS(cfg config.CORS, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}).Handler(next)
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
