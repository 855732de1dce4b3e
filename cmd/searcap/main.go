package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hoony8355/searcap/internal/browser"
	"github.com/hoony8355/searcap/internal/cache"
	"github.com/hoony8355/searcap/internal/capture"
	"github.com/hoony8355/searcap/internal/config"
	"github.com/hoony8355/searcap/internal/database"
	"github.com/hoony8355/searcap/internal/locator"
	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/objectstore"
	"github.com/hoony8355/searcap/internal/pipeline"
	"github.com/hoony8355/searcap/internal/queue"
	"github.com/hoony8355/searcap/internal/ratelimit"
	"github.com/hoony8355/searcap/pkg/logger"
)

func main() {
	var (
		keywords  = flag.String("keywords", "", "Comma-separated list of keywords to capture")
		inputFile = flag.String("file", "", "File containing keywords (one per line)")
		surface   = flag.String("surface", "search", "Surface to capture: search or shopping")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
		dryRun    = flag.Bool("dry-run", false, "Write images to a local directory, skip database and bucket")
		output    = flag.String("output", "captures", "Local output directory for -dry-run")
		limit     = flag.Int("limit", 0, "Maximum number of keywords to process (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting searcap")

	surf, ok := models.ParseSurface(*surface)
	if !ok {
		log.Fatalf("Invalid surface %q: must be search or shopping", *surface)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	b, err := browser.New(&browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
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
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	loc, err := locator.New(cfg.Locator.Strategies, cfg.Locator.MinAdLinks)
	if err != nil {
		logger.Error("Failed to configure locator", "error", err)
		os.Exit(1)
	}

	capturer, err := capture.New(cfg.Capture.Methods, cfg.Capture.Margin, cfg.Capture.Timeout)
	if err != nil {
		logger.Error("Failed to configure capturer", "error", err)
		os.Exit(1)
	}

	var sink objectstore.Sink
	var db *database.DB

	if *dryRun {
		local, err := objectstore.NewLocalDir(*output)
		if err != nil {
			logger.Error("Failed to prepare output directory", "error", err)
			os.Exit(1)
		}
		sink = local
	} else {
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
			logger.Error("Failed to connect to object store", "error", err)
			os.Exit(1)
		}
		sink = store

		db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
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

	if err := loadTasks(taskQueue, *keywords, *inputFile, surf, *limit); err != nil {
		logger.Error("Failed to load tasks", "error", err)
		os.Exit(1)
	}

	if taskQueue.Size() == 0 {
		fmt.Println("No keywords to process. Use -keywords or -file to specify them.")
		flag.Usage()
		os.Exit(1)
	}

	var recorder pipeline.Recorder
	if db != nil {
		recorder = db
	}

	p := pipeline.New(pipeline.Options{
		Browser:    b,
		Locator:    loc,
		Capturer:   capturer,
		Sink:       sink,
		Recorder:   recorder,
		Cache:      c,
		MaxRetries: cfg.Capture.MaxRetries,
	})

	rateLimiter := ratelimit.NewAdaptiveRateLimiter(
		cfg.Capture.RateLimitMin,
		cfg.Capture.RateLimitMax,
	)

	logger.Info("Starting captures", "tasks", taskQueue.Size())

	for taskQueue.Size() > 0 {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, exiting")
			return
		default:
		}

		task, err := taskQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) || errors.Is(err, queue.ErrQueueClosed) {
				break
			}
			logger.Error("Failed to get task from queue", "error", err)
			continue
		}

		if err := rateLimiter.Wait(ctx); err != nil {
			logger.Error("Rate limiter error", "error", err)
			continue
		}

		logger.Info("Processing keyword", "keyword", task.Keyword, "surface", task.Surface)

		records, err := p.Run(ctx, task)
		if err != nil {
			logger.Error("Failed to process keyword", "keyword", task.Keyword, "error", err)
			rateLimiter.RecordError()

			if !errors.Is(err, browser.ErrBlocked) && task.Retries < cfg.Capture.MaxRetries {
				task.Retries++
				taskQueue.Push(task)
				logger.Info("Retrying keyword", "keyword", task.Keyword, "retry", task.Retries)
			}
			continue
		}

		rateLimiter.RecordSuccess()
		reportResults(task.Keyword, records)
	}

	logger.Info("Captures completed")
}

func loadTasks(q queue.Queue, keywords, inputFile string, surface models.Surface, limit int) error {
	var list []string

	if keywords != "" {
		list = append(list, strings.Split(keywords, ",")...)
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
	}

	seen := make(map[string]bool)
	count := 0
	for _, kw := range list {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true

		if limit > 0 && count >= limit {
			break
		}
		count++

		if err := q.Push(queue.NewTask(kw, surface)); err != nil {
			return err
		}
	}

	return nil
}

func reportResults(keyword string, records []*models.CaptureRecord) {
	for _, rec := range records {
		switch rec.Status {
		case models.StatusCompleted:
			fmt.Printf("%s\t%s\t%s\t%s\n", keyword, rec.SectionKind, rec.CaptureMethod, rec.ImageURL)
		default:
			fmt.Printf("%s\t%s\tfailed\t%s\n", keyword, rec.SectionKind, rec.Error)
		}
	}
}
