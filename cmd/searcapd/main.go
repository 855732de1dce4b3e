package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoony8355/searcap/internal/browser"
	"github.com/hoony8355/searcap/internal/cache"
	"github.com/hoony8355/searcap/internal/capture"
	"github.com/hoony8355/searcap/internal/config"
	"github.com/hoony8355/searcap/internal/database"
	"github.com/hoony8355/searcap/internal/httpapi"
	"github.com/hoony8355/searcap/internal/locator"
	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/objectstore"
	"github.com/hoony8355/searcap/internal/pipeline"
	"github.com/hoony8355/searcap/internal/queue"
	"github.com/hoony8355/searcap/internal/ratelimit"
	"github.com/hoony8355/searcap/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting searcapd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:      cfg.ObjectStore.Endpoint,
		AccessKey:     cfg.ObjectStore.AccessKey,
		SecretKey:     cfg.ObjectStore.SecretKey,
		Bucket:        cfg.ObjectStore.Bucket,
		Region:        cfg.ObjectStore.Region,
		UseSSL:        cfg.ObjectStore.UseSSL,
		PublicBaseURL: cfg.ObjectStore.PublicBaseURL,
	})
	if err != nil {
		log.Error("failed to connect to object store", "error", err)
		os.Exit(1)
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
	})
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	loc, err := locator.New(cfg.Locator.Strategies, cfg.Locator.MinAdLinks)
	if err != nil {
		log.Error("failed to configure locator", "error", err)
		os.Exit(1)
	}

	capturer, err := capture.New(cfg.Capture.Methods, cfg.Capture.Margin, cfg.Capture.Timeout)
	if err != nil {
		log.Error("failed to configure capturer", "error", err)
		os.Exit(1)
	}

	c := cache.New(cache.Config{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		SeenTTL:  cfg.Cache.SeenTTL,
		BlockTTL: cfg.Cache.BlockTTL,
	})
	defer c.Close()

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	p := pipeline.New(pipeline.Options{
		Browser:    b,
		Locator:    loc,
		Capturer:   capturer,
		Sink:       store,
		Recorder:   db,
		Cache:      c,
		MaxRetries: cfg.Capture.MaxRetries,
	})

	// Jobs accepted before the last shutdown are still in Postgres; put
	// them back on the queue before the worker starts.
	if err := recoverJobs(ctx, log, db, taskQueue); err != nil {
		log.Error("failed to recover unfinished jobs", "error", err)
		os.Exit(1)
	}

	// Single worker: one browser context, one page at a time. Naver rate
	// limits aggressively, so parallel captures buy nothing.
	go runWorker(ctx, log, cfg, db, taskQueue, p)

	handlers := httpapi.NewHandlers(db, taskQueue, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// jobStore is the slice of database the worker needs.
type jobStore interface {
	UpdateJobStatus(ctx context.Context, id string, status database.JobStatus, jobErr error) error
}

// jobLister adds the startup recovery query. Satisfied by *database.DB.
type jobLister interface {
	jobStore
	ListUnfinishedJobs(ctx context.Context) ([]*database.Job, error)
}

// taskRunner is the pipeline seen from the worker loop.
type taskRunner interface {
	Run(ctx context.Context, task *queue.Task) ([]*models.CaptureRecord, error)
}

// recoverJobs re-enqueues jobs that were pending or running when the previous
// process stopped. Running jobs are reset to pending first; the worker stamps
// them running again when it picks them up.
func recoverJobs(ctx context.Context, log *slog.Logger, store jobLister, taskQueue queue.Queue) error {
	jobs, err := store.ListUnfinishedJobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.Status == database.JobRunning {
			if err := store.UpdateJobStatus(ctx, job.ID, database.JobPending, nil); err != nil {
				log.Error("failed to reset interrupted job", "job", job.ID, "error", err)
				continue
			}
		}

		task := queue.NewTask(job.Keyword, job.Surface)
		task.JobID = job.ID
		if err := taskQueue.Push(task); err != nil {
			return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
		}
	}

	if len(jobs) > 0 {
		log.Info("requeued unfinished jobs", "count", len(jobs))
	}
	return nil
}

func runWorker(ctx context.Context, log *slog.Logger, cfg *config.Config, db jobStore, taskQueue queue.Queue, p taskRunner) {
	rateLimiter := ratelimit.NewAdaptiveRateLimiter(
		cfg.Capture.RateLimitMin,
		cfg.Capture.RateLimitMax,
	)

	for {
		task, err := taskQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				log.Info("worker stopping")
				return
			}
			log.Error("failed to pop task", "error", err)
			continue
		}

		if err := rateLimiter.Wait(ctx); err != nil {
			// Shutdown hit between Pop and the delay. Put the task back so
			// the drain (or the next start's recovery) still sees it.
			if pushErr := taskQueue.Push(task); pushErr != nil {
				log.Warn("task dropped during shutdown", "keyword", task.Keyword, "error", pushErr)
			}
			return
		}

		if task.JobID != "" {
			if err := db.UpdateJobStatus(ctx, task.JobID, database.JobRunning, nil); err != nil {
				log.Error("failed to mark job running", "job", task.JobID, "error", err)
			}
		}

		_, runErr := p.Run(ctx, task)
		if runErr != nil {
			rateLimiter.RecordError()

			if !errors.Is(runErr, browser.ErrBlocked) && task.Retries < cfg.Capture.MaxRetries {
				task.Retries++
				if err := taskQueue.Push(task); err == nil {
					log.Info("retrying task", "keyword", task.Keyword, "retry", task.Retries)
					continue
				}
			}

			if task.JobID != "" {
				if err := db.UpdateJobStatus(ctx, task.JobID, database.JobFailed, runErr); err != nil {
					log.Error("failed to mark job failed", "job", task.JobID, "error", err)
				}
			}
			log.Error("task failed", "keyword", task.Keyword, "error", runErr)
			continue
		}

		rateLimiter.RecordSuccess()
		if task.JobID != "" {
			if err := db.UpdateJobStatus(ctx, task.JobID, database.JobCompleted, nil); err != nil {
				log.Error("failed to mark job completed", "job", task.JobID, "error", err)
			}
		}
	}
}
