package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prnadmin/server/internal/config"
	"github.com/prnadmin/server/internal/db"
	"github.com/prnadmin/server/internal/logger"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/payout"
	"github.com/prnadmin/server/internal/repo"
	"go.uber.org/zap"
)

func printUser(u model.User, b model.Balances) {
	mark := "✓"
	if !b.Consistent() {
		mark = "✗"
	}
	fmt.Printf("\n┌─ %s %s (%s, %s)\n", mark, u.Name, u.Email, u.Role)
	fmt.Printf("│  ID: %s\n", u.ID)
	fmt.Printf("├─ %-18s: %14s\n", "revenue", b.Revenue.StringFixed(2))
	fmt.Printf("├─ %-18s: %14s\n", "completed payouts", b.CompletedPayouts.StringFixed(2))
	fmt.Printf("├─ %-18s: %14s\n", "expected balance", b.Expected().StringFixed(2))
	fmt.Printf("└─ %-18s: %14s\n", "stored balance", b.Stored.StringFixed(2))
}

func main() {
	onlyMismatches := flag.Bool("mismatches", false, "Only print users whose stored balance is off")
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

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		zl.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	store := repo.New(database)
	ledger := payout.NewLedger(store)

	users, err := store.ListUsers(ctx)
	if err != nil {
		zl.Fatal("Failed to list users", zap.Error(err))
	}

	fmt.Println("Balance reconciliation")
	fmt.Println(strings.Repeat("═", 60))

	mismatches := 0
	for _, u := range users {
		b, err := ledger.Reconcile(ctx, u.ID)
		if err != nil {
			zl.Error("Reconcile failed", zap.String("user_id", u.ID.String()), zap.Error(err))
			mismatches++
			continue
		}
		if !b.Consistent() {
			mismatches++
		} else if *onlyMismatches {
			continue
		}
		printUser(u, b)
	}

	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("%d users, %d mismatched\n", len(users), mismatches)

	if mismatches > 0 {
		syncLogger()
		os.Exit(1)
	}
}
