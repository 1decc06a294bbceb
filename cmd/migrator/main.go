package main

import (
	"context"
	"database/sql"
	"flag"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/live-quiz/db"
	"github.com/gokatarajesh/live-quiz/internal/config"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down, status or version")
	envFile := flag.String("env-file", "configs/.env", "dotenv file loaded outside production")
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", "migrator").Logger()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Warn().Err(err).Str("file", *envFile).Msg("could not load env file")
		}
	}

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Postgres.Enabled() {
		log.Fatal().Msg("PG_HOST is required to run migrations")
	}

	sqlDB, err := sql.Open("pgx", cfg.Postgres.ConnString())
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Postgres.Host).Msg("failed to open database connection")
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	log.Info().
		Str("host", cfg.Postgres.Host).
		Int("port", cfg.Postgres.Port).
		Str("database", cfg.Postgres.Database).
		Msg("connected to database")

	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}

	switch *command {
	case "up":
		if err := goose.Up(sqlDB, db.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations up")
		}
		log.Info().Msg("migrations applied successfully")
	case "down":
		if err := goose.Down(sqlDB, db.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations down")
		}
		log.Info().Msg("migrations rolled back successfully")
	case "status":
		if err := goose.Status(sqlDB, db.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration status")
		}
	case "version":
		if err := goose.Version(sqlDB, db.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration version")
		}
	default:
		log.Fatal().Str("command", *command).Msg("unknown command. Use: up, down, status or version")
	}
}
