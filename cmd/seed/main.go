package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/config"
	"github.com/prnadmin/server/internal/db"
	"github.com/prnadmin/server/internal/logger"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/repo"
	"github.com/prnadmin/server/internal/seed"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "configs/seed.yaml", "Seed file with users, providers and numbers")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zl, syncLogger, err := logger.New(cfg.LogLevel, cfg.DevMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer syncLogger()

	doc, err := seed.LoadFile(*file)
	if err != nil {
		zl.Fatal("Failed to load seed file", zap.Error(err))
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		zl.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		zl.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := repo.New(database)
	authService := auth.NewAuthService(auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL), store)

	res, err := seed.Apply(ctx, doc, authService, numbers.NewService(store), store)
	if err != nil {
		zl.Error("Seeding stopped", zap.Error(err))
	}

	fmt.Printf("Seed %s\n", *file)
	fmt.Printf("├─ users:     %d created, %d skipped\n", res.UsersCreated, res.UsersSkipped)
	fmt.Printf("├─ providers: %d created, %d skipped\n", res.ProvidersCreated, res.ProvidersSkipped)
	fmt.Printf("└─ numbers:   %d created, %d skipped\n", res.NumbersCreated, res.NumbersSkipped)
}
