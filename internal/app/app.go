package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/auth/jwt"
	"github.com/gokatarajesh/live-quiz/internal/config"
	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/leaderboard"
	"github.com/gokatarajesh/live-quiz/internal/logging"
	"github.com/gokatarajesh/live-quiz/internal/metrics"
	"github.com/gokatarajesh/live-quiz/internal/quiz"
	"github.com/gokatarajesh/live-quiz/internal/server"
	"github.com/gokatarajesh/live-quiz/internal/session"
	"github.com/gokatarajesh/live-quiz/internal/session/scoring"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server)
// and the in-memory session registry.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	http     *http.Server
	registry *session.Registry
	sweeper  *session.Sweeper

	bgCancels []context.CancelFunc
}

// New bootstraps logger, optional Postgres and Redis, the session registry and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	clock := clockwork.NewRealClock()
	recorders := make([]session.Recorder, 0, 2)

	var pool *pgxpool.Pool
	var historyRepo *history.Repository
	if cfg.Postgres.Enabled() {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		historyRepo = history.NewRepository(history.NewPGStore(pool), cfg.Postgres.Retention, logger)
		recorders = append(recorders, historyRepo)
		logger.Info().Str("host", cfg.Postgres.Host).Msg("session history enabled")
	} else {
		logger.Warn().Msg("PG_HOST not set; session history disabled")
	}

	var redisClient *redis.Client
	var reserver session.CodeReserver
	var board *leaderboard.Service
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		reserver = session.NewRedisCodeReserver(redisClient, cfg.Session.MaxIdle, logger)
		board = leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
			TopN:     cfg.Leaderboard.ArchiveTop,
			EntryTTL: cfg.Leaderboard.ArchiveTTL,
		})
		recorders = append(recorders, board)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis code reservation and leaderboard archive enabled")
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; codes are unique per instance only")
	}

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.HostTokenSecret),
		TTL:    cfg.Security.HostTokenTTL,
		Issuer: cfg.Name,
		Clock:  clock,
	})
	if !tokens.Enabled() {
		logger.Warn().Msg("HOST_TOKEN_SECRET not set; host reconnects are not authenticated")
	}

	promMetrics := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub(logger)
	promMetrics.TrackConnections(hub.Count)

	registry := session.NewRegistry(hub, logger, session.RegistryOptions{
		CodeLength: cfg.Session.CodeLength,
		MaxIdle:    cfg.Session.MaxIdle,
		Session: session.Options{
			Countdown:                  cfg.Session.Countdown,
			DefaultReadingTime:         cfg.Session.DefaultReadingTime,
			HostGracePeriod:            cfg.Session.HostGracePeriod,
			AutoplayDelay:              cfg.Session.AutoplayDelay,
			TimeUpTolerance:            cfg.Session.TimeUpTolerance,
			MaxParticipants:            cfg.Session.MaxParticipants,
			DefaultTopN:                cfg.Session.TopNPlayers,
			DefaultInactivityThreshold: cfg.Session.InactivityThreshold,
		},
		Scoring: scoring.ScoringConfig{
			BaseScore:          cfg.Scoring.BaseScore,
			MaxTimeBonus:       cfg.Scoring.MaxTimeBonus,
			StreakBonusPercent: cfg.Scoring.StreakStep,
			MaxStreakBonus:     cfg.Scoring.MaxStreakBonus,
		},
		Clock:     clock,
		Reserver:  reserver,
		Tokens:    tokens,
		Recorders: recorders,
		Metrics:   promMetrics,
	})

	var sweeper *session.Sweeper
	if historyRepo != nil {
		sweeper = session.NewSweeper(registry, historyRepo, clock, cfg.Session.SweepInterval, logger)
	} else {
		sweeper = session.NewSweeper(registry, nil, clock, cfg.Session.SweepInterval, logger)
	}

	catalog := quiz.NewCatalog(cfg.Quiz.File, logger)
	wsHandler := session.NewHandler(registry, catalog, hub, logger)
	restHandlers := session.NewHTTPHandlers(catalog, registry, cfg.PublicBaseURL, logger)

	var lbHTTPHandler *leaderboard.HTTPHandler
	if board != nil {
		lbHTTPHandler = leaderboard.NewHTTPHandler(board, logger)
	} else {
		lbHTTPHandler = leaderboard.NewHTTPHandler(nil, logger)
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Routes{
		SessionWS:   wsHandler.HandleWebSocket,
		Quizzes:     restHandlers.ListQuizzes,
		QRCode:      restHandlers.QRCode,
		Leaderboard: lbHTTPHandler.HandleGetSession,
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		registry:  registry,
		sweeper:   sweeper,
		bgCancels: make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	// Participants get game_ended before their sockets close.
	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("session shutdown incomplete")
	}

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := a.sweeper.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Msg("session sweeper stopped")
		}
	}()
}
