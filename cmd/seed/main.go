package main

import (
	"flag"
	"os"

	"github.com/meetme/matchmaker/internal/config"
	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/logger"
)

func main() {
	n := flag.Int("n", 20, "number of demo profiles")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.Module("seed")

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if err := db.SeedDemoData(database, *n, nil, log); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed")
}
