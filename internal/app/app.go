package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/services/cleanup"
	"github.com/ternarybob/colligo/internal/services/expand"
	"github.com/ternarybob/colligo/internal/services/jobs"
	"github.com/ternarybob/colligo/internal/services/output"
	"github.com/ternarybob/colligo/internal/services/schedule"
	"github.com/ternarybob/colligo/internal/services/sources/timeline"
	"github.com/ternarybob/colligo/internal/services/sources/websearch"
	"github.com/ternarybob/colligo/internal/storage/badger"
	"golang.org/x/time/rate"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB          *badger.BadgerDB
	Checkpoints *badger.CheckpointStorage

	// Sources
	Timeline  *timeline.Fetcher
	Websearch *websearch.Fetcher

	// Collection services
	JobStore       *jobs.Store
	BatchTracker   *jobs.BatchTracker
	JobService     *jobs.Service
	CleanupService *cleanup.Service

	// HTTP handlers
	JobHandler        *handlers.JobHandler
	CheckpointHandler *handlers.CheckpointHandler
	ResultsHandler    *handlers.ResultsHandler
	StatusHandler     *handlers.StatusHandler
	WSHandler         *handlers.WebSocketHandler
}

// New wires the application in dependency order: storage, sources,
// collection services, then handlers.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initSources()
	app.initServices()
	app.initHandlers()

	if err := app.CleanupService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start cleanup service: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("workers_default", cfg.Workers.DefaultMode).
		Int("rate_per_minute", cfg.RateLimit.RequestsPerMinute).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Checkpoints = badger.NewCheckpointStorage(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initSources() {
	// One pacing budget shared by both sources so concurrent jobs cannot
	// stack load on the remote endpoints.
	perMinute := a.Config.RateLimit.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)

	a.Timeline = timeline.NewFetcher(&a.Config.Scraper, limiter, a.Logger)
	a.Websearch = websearch.NewFetcher(limiter, a.Logger)
}

func (a *App) initServices() {
	a.JobStore = jobs.NewStore()

	materializer := output.NewCSVMaterializer(&a.Config.Output, a.Logger)
	a.BatchTracker = jobs.NewBatchTracker(materializer, a.Logger)

	a.JobService = jobs.NewService(jobs.ServiceDeps{
		Config:       a.Config,
		Store:        a.JobStore,
		Checkpoints:  a.Checkpoints,
		Primary:      a.Timeline,
		Secondary:    a.Websearch,
		Expander:     expand.NewService(a.Timeline, a.Config, a.Logger),
		Chunker:      schedule.NewChunker(&a.Config.Chunking),
		Materializer: materializer,
		Batches:      a.BatchTracker,
		Events:       nil, // set below once the websocket handler exists
		Logger:       a.Logger,
	})

	a.CleanupService = cleanup.NewService(a.Config, a.Checkpoints, a.Logger)
}

func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(&a.Config.WebSocket, a.Logger)
	a.JobService.SetEventPublisher(a.WSHandler)

	materializer := output.NewCSVMaterializer(&a.Config.Output, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Config, a.JobService, a.JobStore, a.Logger)
	a.CheckpointHandler = handlers.NewCheckpointHandler(a.Checkpoints, a.JobService, a.Logger)
	a.ResultsHandler = handlers.NewResultsHandler(a.JobStore, materializer, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Config, a.JobStore, a.Logger)
}

// Close shuts components down in reverse dependency order
func (a *App) Close() error {
	if a.CleanupService != nil {
		a.CleanupService.Stop()
	}

	if a.Timeline != nil {
		a.Timeline.Close()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
