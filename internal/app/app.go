// Package app wires configuration, storage, queue and services into one
// runnable unit shared by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/handlers"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories/memory"
	repopg "github.com/SAP-F-2025/exam-analysis-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-analysis-service/internal/services"
	"github.com/SAP-F-2025/exam-analysis-service/internal/tasks"
	"github.com/SAP-F-2025/exam-analysis-service/internal/utils"
	"github.com/SAP-F-2025/exam-analysis-service/internal/validator"
	"github.com/SAP-F-2025/exam-analysis-service/pkg"
	"github.com/gin-gonic/gin"
)

// App holds every long-lived collaborator of the service.
type App struct {
	Config   *config.Config
	Logger   utils.Logger
	Repo     repositories.Repository
	Pipeline *services.PipelineService
	Reports  *services.ReportService
	Exporter *services.ExportService
	Worker   *tasks.Worker

	closers []func() error
}

// New connects the stores and builds the services. Close releases everything
// New opened.
func New(ctx context.Context, cfg *config.Config, logger utils.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	slogger := logger.Slog()

	repo, err := a.openRepository()
	if err != nil {
		return nil, a.fail(err)
	}
	a.Repo = repo

	store, lock, err := a.openCache(ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	reports := cache.NewReportCache(store, cfg.ReportCacheTTL, slogger)

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}
	a.closers = append(a.closers, publisher.Close)

	generator, err := cfg.LLM.CreateGenerator(cfg.Pipeline.GenerationTimeout, slogger)
	if err != nil {
		return nil, a.fail(err)
	}

	taskPublisher, taskSubscriber, err := cfg.Queue.CreatePubSub(slogger)
	if err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, taskPublisher.Close)
	if any(taskSubscriber) != any(taskPublisher) {
		a.closers = append(a.closers, taskSubscriber.Close)
	}

	a.Pipeline = services.NewPipelineService(services.PipelineDeps{
		Repo:       repo,
		Dispatcher: tasks.NewDispatcher(taskPublisher, cfg.Queue.Topic, slogger),
		Generator:  generator,
		Publisher:  publisher,
		Lock:       lock,
		Reports:    reports,
		Logger:     slogger,
	}, cfg.Pipeline)
	a.Reports = services.NewReportService(repo, reports)
	a.Exporter = services.NewExportService(a.Reports, slogger)

	a.Worker, err = tasks.NewWorker(taskSubscriber, a.Pipeline, tasks.WorkerConfig{
		Topic:         cfg.Queue.Topic,
		MaxRetries:    cfg.Queue.MaxRetries,
		RetryInterval: cfg.Queue.RetryInterval,
		CloseTimeout:  cfg.Pipeline.StageTimeout,
	}, slogger)
	if err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, a.Worker.Close)

	return a, nil
}

// Router returns the HTTP surface over the app's services.
func (a *App) Router() *gin.Engine {
	if a.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	manager := handlers.NewHandlerManager(a.Pipeline, a.Reports, a.Exporter, validator.New(), a.Logger)
	return manager.NewRouter()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	return errors.Join(err, a.Close())
}

func (a *App) openRepository() (repositories.Repository, error) {
	switch a.Config.StoreBackend {
	case "", "postgres":
		db, err := pkg.InitDatabase(a.Config)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return repopg.NewRepository(db), nil
	case "memory":
		a.Logger.Warn("Using in-memory store, data is lost on exit")
		return memory.NewRepository(memory.NewStore()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.Config.StoreBackend)
	}
}

// openCache uses redis when configured and in-process stores otherwise.
func (a *App) openCache(ctx context.Context) (cache.CacheService, cache.StageLock, error) {
	if a.Config.RedisURL == "" {
		a.Logger.Warn("REDIS_URL not set, using in-process cache and stage lock")
		return cache.NewMemoryCache(), cache.NewMemoryStageLock(), nil
	}
	client, err := pkg.NewRedisClient(ctx, a.Config)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewRedisCache(client, a.Logger.Slog()), cache.NewRedisStageLock(client), nil
}
