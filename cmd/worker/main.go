package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	natsadapter "github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/nats"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/postgres"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/valkey"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/logging"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/workflows"
)

func main() {
	cfg, err := config.Load("basinscope-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("basinscope-worker", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker exists to persist finished reports; no DB, no worker.
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, delineations will not be memoized", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer publisher.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	hydro := hydroapi.New(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.Timeout)*time.Second)
	reportRepo := postgres.NewReportRepo(db)

	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	analysisSvc := usecases.NewAnalysisService(hydro, reportRepo, cacheSvc, publisher, cfg.Cache.DelineationTTL)

	// Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AnalysisWorkflow)
	w.RegisterActivity(&workflows.AnalysisActivities{
		Analysis: analysisSvc,
		Reports:  reportRepo,
	})

	// Queued jobs become workflow executions. The workflow ID embeds the
	// report ID, so a redelivered job cannot start a second run.
	err = sub.SubscribeAnalysisJobs(ctx, func(ctx context.Context, job *domain.AnalysisJob) error {
		opts := client.StartWorkflowOptions{
			ID:        "analysis-" + job.ReportID,
			TaskQueue: cfg.Temporal.TaskQueue,
		}
		_, err := c.ExecuteWorkflow(ctx, opts, workflows.AnalysisWorkflow, workflows.AnalysisInput{
			ReportID:  job.ReportID,
			SketchID:  job.SketchID,
			FeatureID: job.FeatureID,
			Geometry:  job.Geometry,
		})
		if err != nil {
			var started *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(err, &started) {
				slog.Debug("workflow already running", "report_id", job.ReportID)
				return nil
			}
			return err
		}
		slog.Info("analysis workflow started", "report_id", job.ReportID)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe jobs: %v", err)
	}

	slog.Info("analysis worker started", "task_queue", cfg.Temporal.TaskQueue, "upstream", cfg.Upstream.BaseURL)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
