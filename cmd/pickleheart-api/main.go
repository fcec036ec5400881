// README: Entry point; loads config, wires services, starts the HTTP server and the presence sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pickleheart/internal/ai"
	"pickleheart/internal/config"
	httptransport "pickleheart/internal/http"
	"pickleheart/internal/infra"
	"pickleheart/internal/modules/diagnostics"
	"pickleheart/internal/modules/friendship"
	"pickleheart/internal/modules/geofence"
	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/matching"
	"pickleheart/internal/modules/notify"
	"pickleheart/internal/modules/park"
	"pickleheart/internal/modules/presence"
	"pickleheart/internal/modules/profile"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	migrate := flag.Bool("migrate", false, "apply migrations/ before serving")
	migrationsDir := flag.String("migrations", "migrations", "migrations directory")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Server.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *migrate, *migrationsDir); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, migrate bool, migrationsDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("PICKLEHEART_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Firebase.Messaging {
		fcm, err := infra.NewMessaging(ctx, app)
		if err != nil {
			return err
		}
		notifier = notify.NewFCMNotifier(fcm, logger)
	}

	dbPool, err := infra.NewDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if migrate {
		if err := infra.ApplyMigrations(ctx, dbPool, migrationsDir); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("dir", migrationsDir))
	}

	var redisClient *redis.Client
	if cfg.Geofence.Guard == "redis" {
		redisClient = infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var greeter ai.Greeter = ai.StaticGreeter{}
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiGreeter(ctx, cfg.AI.GeminiKey)
		if err != nil {
			return err
		}
		defer gemini.Close()
		greeter = gemini
	}

	parkStore := park.NewStore(dbPool)
	profileStore := profile.NewStore(dbPool)
	friendStore := friendship.NewStore(dbPool)
	presenceStore := presence.NewStore(dbPool)

	var (
		deviceStore location.DeviceStore
		guard       geofence.Guard
	)
	if redisClient != nil {
		deviceStore = location.NewRedisDeviceStore(redisClient)
		guard = geofence.NewRedisGuard(redisClient, cfg.Geofence.Cooldown)
	} else {
		deviceStore = location.NewMemoryDeviceStore()
		guard = geofence.NewMemoryGuard(cfg.Geofence.Cooldown)
	}

	feed := location.NewFeed(16, logger)
	locationSvc := location.NewService(deviceStore, feed, logger)
	presenceSvc := presence.NewService(presenceStore, friendStore, logger)

	monitor := geofence.NewMonitor(geofence.Deps{
		Parks:    parkStore,
		Presence: presenceStore,
		Sharing:  profileStore,
		Devices:  locationSvc,
		Feed:     locationSvc,
		Guard:    guard,
		Notifier: notifier,
		Log:      logger,
	}, cfg.Geofence.RadiusM)
	reporter := diagnostics.NewReporter(locationSvc, profileStore, presenceStore, parkStore, monitor)

	matchingSvc := matching.NewService(matching.NewStore(dbPool), profileStore, friendStore, notifier, greeter, logger)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Location:     locationSvc,
		Monitor:      monitor,
		Diagnostics:  reporter,
		Presence:     presenceSvc,
		Matching:     matchingSvc,
		Verifier:     verifier,
		WatchOptions: geofence.NewWatchOptions(cfg.Geofence.HighAccuracy, cfg.Geofence.WatchTimeout, cfg.Geofence.WatchMaxAge),
		RateLimit:    rate.Limit(cfg.RateLimit.RPS),
		Burst:        cfg.RateLimit.Burst,
		Log:          logger,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		presenceSvc.RunStaleSweeper(gctx, cfg.Presence.SweepInterval, cfg.Presence.StaleAfter)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		monitor.StopAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
