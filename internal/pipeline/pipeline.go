package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/hoony8355/searcap/internal/browser"
	"github.com/hoony8355/searcap/internal/cache"
	"github.com/hoony8355/searcap/internal/capture"
	"github.com/hoony8355/searcap/internal/locator"
	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/objectstore"
	"github.com/hoony8355/searcap/internal/queue"
)

// Recorder persists capture records. Satisfied by *database.DB; nil is
// allowed for dry runs.
type Recorder interface {
	InsertCaptureForJob(ctx context.Context, rec *models.CaptureRecord, jobID string) error
}

// Pipeline runs one task end to end: open the search page, locate the ad
// and price-comparison sections, screenshot each, upload and record.
type Pipeline struct {
	browser    *browser.Browser
	locator    *locator.Locator
	capturer   *capture.Capturer
	sink       objectstore.Sink
	recorder   Recorder
	cache      *cache.Cache
	maxRetries int
	logger     *slog.Logger
}

type Options struct {
	Browser    *browser.Browser
	Locator    *locator.Locator
	Capturer   *capture.Capturer
	Sink       objectstore.Sink
	Recorder   Recorder
	Cache      *cache.Cache
	MaxRetries int
}

func New(opts Options) *Pipeline {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Pipeline{
		browser:    opts.Browser,
		locator:    opts.Locator,
		capturer:   opts.Capturer,
		sink:       opts.Sink,
		recorder:   opts.Recorder,
		cache:      opts.Cache,
		maxRetries: opts.MaxRetries,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

// SearchURL builds the result page URL for a keyword on a surface.
func SearchURL(surface models.Surface, keyword string) string {
	q := url.QueryEscape(keyword)
	switch surface {
	case models.SurfaceShopping:
		return fmt.Sprintf("https://search.shopping.naver.com/search/all?query=%s", q)
	default:
		return fmt.Sprintf("https://search.naver.com/search.naver?where=nexearch&sm=top_hty&fbm=1&ie=utf8&query=%s", q)
	}
}

// SectionKinds lists which sections are expected on a surface.
func SectionKinds(surface models.Surface) []models.SectionKind {
	switch surface {
	case models.SurfaceShopping:
		return []models.SectionKind{models.SectionShopping, models.SectionPriceCompare}
	default:
		return []models.SectionKind{models.SectionPowerLink, models.SectionPriceCompare}
	}
}

// Run processes a single task. A record is written for every attempted
// section, including failed locates and captures; the returned error is
// non-nil only when the page itself could not be processed.
func (p *Pipeline) Run(ctx context.Context, task *queue.Task) ([]*models.CaptureRecord, error) {
	logger := p.logger.With("keyword", task.Keyword, "surface", task.Surface)

	if p.cache.IsBlocked(ctx, task.Surface) {
		logger.Warn("surface is under a block cooldown, skipping")
		return nil, browser.ErrBlocked
	}

	page, err := p.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	pageURL := SearchURL(task.Surface, task.Keyword)
	if err := p.browser.NavigateWithRetry(page, pageURL, p.maxRetries); err != nil {
		if errors.Is(err, browser.ErrBlocked) {
			p.cache.MarkBlocked(ctx, task.Surface)
		}
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	p.browser.ScrollThrough(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	doc, err := locator.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var records []*models.CaptureRecord
	var uploads []*pendingUpload

	for _, kind := range SectionKinds(task.Surface) {
		if p.cache.SeenRecently(ctx, task.Surface, task.Keyword, kind) {
			logger.Info("section captured recently, skipping", "kind", kind)
			continue
		}

		rec := models.NewCaptureRecord(task.Keyword, task.Surface, kind)
		rec.PageURL = pageURL
		records = append(records, rec)

		match, err := p.locator.Locate(doc, task.Surface, kind)
		if err != nil {
			logger.Info("section not found", "kind", kind, "error", err)
			rec.Fail(err.Error())
			p.record(ctx, rec, task.JobID)
			continue
		}

		rec.Selector = match.Selector
		rec.Strategy = string(match.Strategy)

		res, err := p.capturer.Capture(page, match.Selector)
		if err != nil {
			logger.Warn("capture failed", "kind", kind, "selector", match.Selector, "error", err)
			rec.Fail(err.Error())
			p.record(ctx, rec, task.JobID)
			continue
		}

		rec.CaptureMethod = string(res.Method)
		rec.Region = res.Region
		uploads = append(uploads, &pendingUpload{rec: rec, png: res.PNG})
	}

	if err := p.finalize(ctx, task, uploads); err != nil {
		return records, err
	}

	return records, nil
}

type pendingUpload struct {
	rec *models.CaptureRecord
	png []byte
}

// finalize uploads captured images and persists their records concurrently.
func (p *Pipeline) finalize(ctx context.Context, task *queue.Task, uploads []*pendingUpload) error {
	if len(uploads) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, up := range uploads {
		up := up
		g.Go(func() error {
			key, imageURL, err := p.sink.PutCapture(gctx, up.rec, up.png)
			if err != nil {
				up.rec.Fail(fmt.Sprintf("upload failed: %v", err))
				p.record(gctx, up.rec, task.JobID)
				return fmt.Errorf("failed to upload capture %s: %w", up.rec.ID, err)
			}

			up.rec.Complete(key, imageURL, len(up.png))
			p.record(gctx, up.rec, task.JobID)
			p.cache.MarkSeen(gctx, task.Surface, task.Keyword, up.rec.SectionKind)

			p.logger.Info("capture stored",
				"keyword", up.rec.Keyword,
				"kind", up.rec.SectionKind,
				"method", up.rec.CaptureMethod,
				"bytes", up.rec.ImageBytes,
				"url", up.rec.ImageURL)
			return nil
		})
	}

	return g.Wait()
}

func (p *Pipeline) record(ctx context.Context, rec *models.CaptureRecord, jobID string) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.InsertCaptureForJob(ctx, rec, jobID); err != nil {
		p.logger.Error("failed to persist capture record", "id", rec.ID, "error", err)
	}
}
