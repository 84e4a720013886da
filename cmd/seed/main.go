package main

import (
	"context"
	"errors"
	"os"

	"sitaraServer/crypto"
	"sitaraServer/db"
	"sitaraServer/logging"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	demoPhone    = "9000000001"
	demoPassword = "demo1234"
)

func main() {
	if _, err := logging.Setup("info"); err != nil {
		panic(err)
	}
	log := zap.S()

	if err := godotenv.Load(); err != nil {
		log.Info("Warning: .env not found")
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatal("DATABASE_URL not set")
	}

	if err := db.InitPostgres(url); err != nil {
		log.Fatalf("Failed to init postgres: %v", err)
	}
	defer db.ClosePostgres()

	ctx := context.Background()

	// Well-known market timings; Main Bazar closes past midnight
	demoBazaars := []db.BazaarInput{
		{Name: "Milan Morning", OpenTime: "10:15", CloseTime: "11:15", SortOrder: 1},
		{Name: "Kalyan", OpenTime: "15:45", CloseTime: "17:45", ClosedWeekdays: []int{0}, SortOrder: 2},
		{Name: "Milan Night", OpenTime: "21:00", CloseTime: "23:00", ClosedWeekdays: []int{0}, SortOrder: 3},
		{Name: "Main Bazar", OpenTime: "21:35", CloseTime: "00:05", ClosedWeekdays: []int{0, 6}, SortOrder: 4},
	}

	log.Info("Seeding bazaars...")
	for _, in := range demoBazaars {
		b, err := db.CreateBazaar(ctx, in)
		switch {
		case errors.Is(err, db.ErrDuplicateName):
			log.Infof("  %s already exists", in.Name)
		case err != nil:
			log.Errorf("  Failed to create %s: %v", in.Name, err)
		default:
			log.Infof("  ✅ %s %s-%s", b.Name, b.OpenTime, b.CloseTime)
		}
	}

	log.Info("Seeding settings...")
	settings, err := db.GetSettings(ctx)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if _, err := db.SaveSettings(ctx, settings, "seed"); err != nil {
		log.Fatalf("Failed to save settings: %v", err)
	}

	log.Info("Seeding demo user...")
	user, err := db.GetUserByPhone(ctx, demoPhone)
	if errors.Is(err, db.ErrNotFound) {
		hash, herr := crypto.HashPassword(demoPassword)
		if herr != nil {
			log.Fatalf("Failed to hash password: %v", herr)
		}
		user, err = db.CreateUser(ctx, "Demo Player", demoPhone, hash)
	}
	if err != nil {
		log.Fatalf("Failed to get demo user: %v", err)
	}

	balance, err := db.GetBalance(ctx, user.ID)
	if err != nil {
		log.Fatalf("Failed to get balance: %v", err)
	}
	if balance.IsZero() {
		balance, err = db.AdjustWallet(ctx, user.ID, decimal.NewFromInt(1000), "demo float", "seed")
		if err != nil {
			log.Fatalf("Failed to credit demo user: %v", err)
		}
	}

	log.Infof("✅ Demo user %s / %s with balance %s", demoPhone, demoPassword, balance.StringFixed(2))
	log.Info("Done!")
}
