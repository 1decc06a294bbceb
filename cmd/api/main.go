package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gokatarajesh/live-quiz/internal/app"
	"github.com/gokatarajesh/live-quiz/internal/config"
)

func main() {
	envFile := flag.String("env-file", "configs/.env", "dotenv file loaded outside production")
	flag.Parse()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("Warning: could not load %s: %v", *envFile, err)
		}
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	instance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}

	if err := instance.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
