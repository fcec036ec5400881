// README: Backfills coordinates for parks that have none, via Google Geocoding.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pickleheart/internal/config"
	"pickleheart/internal/infra"
	"pickleheart/internal/maps"
	"pickleheart/internal/modules/park"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	dryRun := flag.Bool("dry-run", false, "geocode but do not write coordinates")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Maps.APIKey == "" {
		log.Fatal("PICKLEHEART_MAPS_API_KEY is required")
	}
	logger, err := infra.NewLogger(cfg.Server.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := infra.NewDB(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	geocoder, err := maps.NewGeocoder(cfg.Maps.APIKey)
	if err != nil {
		logger.Fatal("maps client", zap.Error(err))
	}

	if *dryRun {
		fmt.Println("Mode: DRY RUN (no database writes)")
	} else {
		fmt.Println("Mode: LIVE (will write to database)")
	}

	svc := park.NewService(park.NewStore(db), geocoder, logger)
	res, err := svc.BackfillCoordinates(ctx, *dryRun)
	if err != nil {
		logger.Fatal("backfill", zap.Error(err))
	}

	fmt.Printf("Geocoded: %d\n", res.Updated)
	fmt.Printf("Failed:   %d\n", len(res.Failed))
	for _, id := range res.Failed {
		fmt.Printf("  - %s\n", id)
	}
	if len(res.Failed) > 0 {
		os.Exit(1)
	}
}
