// Command spotwatch runs the event board sync core as a long-lived watcher:
// it keeps a live snapshot via the push channel, exposes a local HTTP API
// over it, and optionally dumps periodic CSV/PDF exports.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parsaabbasian/unispot-sync/internal/api"
	"github.com/parsaabbasian/unispot-sync/internal/geofence"
	"github.com/parsaabbasian/unispot-sync/internal/identity"
	"github.com/parsaabbasian/unispot-sync/internal/ledger"
	"github.com/parsaabbasian/unispot-sync/internal/locate"
	"github.com/parsaabbasian/unispot-sync/internal/models"
	"github.com/parsaabbasian/unispot-sync/internal/server"
	boardsync "github.com/parsaabbasian/unispot-sync/internal/sync"
	"github.com/parsaabbasian/unispot-sync/internal/telemetry"
	"github.com/parsaabbasian/unispot-sync/pkg/cache"
	"github.com/parsaabbasian/unispot-sync/pkg/config"
	"github.com/parsaabbasian/unispot-sync/pkg/database"
	"github.com/parsaabbasian/unispot-sync/pkg/export"
	"github.com/parsaabbasian/unispot-sync/pkg/jobs"
	"github.com/parsaabbasian/unispot-sync/pkg/logger"
	"github.com/parsaabbasian/unispot-sync/pkg/storage"
)

const pruneInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("watcher exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, err := storage.NewLocalStorage(cfg.Ledger.Dir)
	if err != nil {
		return fmt.Errorf("init local storage: %w", err)
	}

	id, err := identity.Load(store, cfg.Identity.Name, cfg.Identity.Email)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info("identity loaded", zap.String("name", id.Name), zap.String("device_id", id.DeviceID))

	votes, err := buildLedger(cfg, store, id, log)
	if err != nil {
		return fmt.Errorf("init vote ledger: %w", err)
	}
	defer votes.Close()

	metrics := telemetry.New()
	client := api.New(cfg.API.BaseURL, cfg.API.StreamPath, cfg.API.Timeout, log)

	fence := geofence.New(geofence.Boundary{
		Lat:      cfg.Boundary.Lat,
		Lng:      cfg.Boundary.Lng,
		RadiusKm: cfg.Boundary.RadiusKm,
	})

	locator := locate.WithTimeout(
		locate.Fixed{Pos: locate.Position{Lat: cfg.Location.Lat, Lng: cfg.Location.Lng}},
		cfg.Location.Timeout,
	)

	board := boardsync.New(boardsync.Options{
		API:          client,
		Ledger:       votes,
		Fence:        fence,
		Locator:      locator,
		Identity:     id,
		Boundary:     cfg.Boundary,
		FetchRadiusM: cfg.API.FetchRadiusM,
		Backoff:      cfg.Backoff,
		Metrics:      metrics,
		Logger:       log,
		OnChange: func(ch models.Change) {
			log.Info("board change",
				zap.String("kind", string(ch.Kind)),
				zap.Uint("event_id", ch.EventID),
				zap.String("title", ch.Title))
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board.Start(ctx)
	defer board.Stop()

	exports := buildExports(cfg, board, log)
	if exports != nil {
		exports.Start(ctx)
		defer exports.Stop()
	}

	go pruneLoop(ctx, board, log)
	if exports != nil && cfg.Export.Interval > 0 {
		go exportLoop(ctx, exports, cfg.Export.Interval)
	}

	srv := server.New(board, metrics, exports, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(cfg.CORS.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("watcher listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// buildLedger selects the durable vote ledger backend. Every backend is keyed
// by the device id so reinstalling the watcher resets votes, not renaming.
func buildLedger(cfg *config.Config, store *storage.LocalStorage, id identity.Identity, log *zap.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case "memory":
		log.Warn("using in-memory vote ledger, votes will not survive restarts")
		return ledger.NewMemory(), nil

	case "file", "":
		return ledger.NewFile(store, id.DeviceID)

	case "redis":
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return ledger.NewRedis(client, id.DeviceID), nil

	case "postgres":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := ledger.NewPostgres(db, id.DeviceID)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// buildExports wires the export dispatcher, or returns nil when disabled.
func buildExports(cfg *config.Config, board *boardsync.Sync, log *zap.Logger) *jobs.Dispatcher {
	if !cfg.Export.Enabled {
		return nil
	}

	dir, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		log.Error("export dir unavailable, exports disabled", zap.Error(err))
		return nil
	}

	csv := export.NewCSVExporter()
	pdf := export.NewPDFExporter()

	handler := func(ctx context.Context, job jobs.Job) error {
		dataset := export.EventsDataset(board.Events())
		stamp := time.Now().UTC().Format("20060102T150405Z")

		switch job.Format {
		case "pdf":
			data, err := pdf.Render(dataset, "Campus Events Snapshot")
			if err != nil {
				return err
			}
			return dir.Save(fmt.Sprintf("events_%s.pdf", stamp), data)
		default:
			data, err := csv.Render(dataset)
			if err != nil {
				return err
			}
			return dir.Save(fmt.Sprintf("events_%s.csv", stamp), data)
		}
	}

	return jobs.NewDispatcher(handler, jobs.Options{
		Retries:    2,
		RetryDelay: 5 * time.Second,
		Logger:     log,
	})
}

// pruneLoop mirrors the server's validity-window filter for long-lived
// snapshots so expired events do not linger between full fetches.
func pruneLoop(ctx context.Context, board *boardsync.Sync, log *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := board.PruneExpired(now); removed > 0 {
				log.Debug("expired events pruned", zap.Int("removed", removed))
			}
		}
	}
}

// exportLoop enqueues a periodic CSV snapshot export.
func exportLoop(ctx context.Context, exports *jobs.Dispatcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_ = exports.Enqueue(jobs.Job{Format: "csv", Requested: now})
		}
	}
}
