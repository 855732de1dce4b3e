package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hoony8355/searcap/internal/models"
)

var ErrAllMethodsFailed = errors.New("all capture methods failed")

// Method names one screenshot strategy.
type Method string

const (
	MethodElement    Method = "element"
	MethodClip       Method = "bounding-box-clip"
	MethodScrollCrop Method = "scroll-crop"
	MethodFullPage   Method = "full-page"
)

// Result is a successful capture: which method produced it, the PNG bytes,
// and the region the image covers.
type Result struct {
	Method Method
	PNG    []byte
	Region models.Region
}

// Capturer tries an ordered list of screenshot methods against a located
// section until one yields a usable image.
type Capturer struct {
	methods []Method
	margin  float64
	timeout time.Duration
	run     func(Method, playwright.Page, string) (*Result, error)
	logger  *slog.Logger
}

func New(methods []string, margin float64, timeout time.Duration) (*Capturer, error) {
	parsed := make([]Method, 0, len(methods))
	for _, name := range methods {
		switch m := Method(name); m {
		case MethodElement, MethodClip, MethodScrollCrop, MethodFullPage:
			parsed = append(parsed, m)
		default:
			return nil, fmt.Errorf("unknown capture method: %q", name)
		}
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no capture methods enabled")
	}
	if margin < 0 {
		margin = 0
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Capturer{
		methods: parsed,
		margin:  margin,
		timeout: timeout,
		logger:  slog.Default().With("component", "capture"),
	}
	c.run = c.dispatch
	return c, nil
}

// Capture runs the configured methods in order against selector on page.
func (c *Capturer) Capture(page playwright.Page, selector string) (*Result, error) {
	var lastErr error

	for _, method := range c.methods {
		res, err := c.run(method, page, selector)
		if err != nil {
			c.logger.Warn("capture method failed", "method", method, "selector", selector, "error", err)
			lastErr = err
			continue
		}
		if res == nil || len(res.PNG) == 0 {
			lastErr = fmt.Errorf("method %s produced an empty image", method)
			continue
		}

		c.logger.Info("section captured", "method", method, "bytes", len(res.PNG))
		return res, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrAllMethodsFailed, lastErr)
}

func (c *Capturer) dispatch(method Method, page playwright.Page, selector string) (*Result, error) {
	switch method {
	case MethodElement:
		return c.captureElement(page, selector)
	case MethodClip:
		return c.captureClip(page, selector)
	case MethodScrollCrop:
		return c.captureScrollCrop(page, selector)
	case MethodFullPage:
		return c.captureFullPage(page)
	}
	return nil, fmt.Errorf("unknown capture method: %q", method)
}

func (c *Capturer) captureElement(page playwright.Page, selector string) (*Result, error) {
	loc := page.Locator(selector).First()

	box, err := loc.BoundingBox()
	if err != nil {
		return nil, fmt.Errorf("failed to read bounding box: %w", err)
	}
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("element %q has no visible box", selector)
	}

	buf, err := loc.Screenshot(playwright.LocatorScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: playwright.Float(float64(c.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("element screenshot failed: %w", err)
	}

	return &Result{Method: MethodElement, PNG: buf, Region: regionFromRect(box)}, nil
}

func (c *Capturer) captureClip(page playwright.Page, selector string) (*Result, error) {
	loc := page.Locator(selector).First()

	box, err := loc.BoundingBox()
	if err != nil {
		return nil, fmt.Errorf("failed to read bounding box: %w", err)
	}
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("element %q has no visible box", selector)
	}

	bounds, err := pageBounds(page)
	if err != nil {
		return nil, err
	}

	region := intersect(expand(regionFromRect(box), c.margin), bounds)
	if isEmpty(region) {
		return nil, fmt.Errorf("clip region for %q is outside the page", selector)
	}

	buf, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(true),
		Clip: &playwright.Rect{
			X:      region.X,
			Y:      region.Y,
			Width:  region.Width,
			Height: region.Height,
		},
		Timeout: playwright.Float(float64(c.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("clipped screenshot failed: %w", err)
	}

	return &Result{Method: MethodClip, PNG: buf, Region: region}, nil
}

const clientRectJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`

const viewportJS = `() => ({ x: 0, y: 0, width: window.innerWidth, height: window.innerHeight })`

func (c *Capturer) captureScrollCrop(page playwright.Page, selector string) (*Result, error) {
	loc := page.Locator(selector).First()

	if err := loc.ScrollIntoViewIfNeeded(); err != nil {
		return nil, fmt.Errorf("scroll into view failed: %w", err)
	}
	// Sticky headers and ad iframes reflow briefly after the scroll.
	time.Sleep(300 * time.Millisecond)

	raw, err := page.Evaluate(clientRectJS, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to read client rect: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("element %q disappeared after scroll", selector)
	}

	rect, err := regionFromEval(raw)
	if err != nil {
		return nil, err
	}

	rawVP, err := page.Evaluate(viewportJS)
	if err != nil {
		return nil, fmt.Errorf("failed to read viewport size: %w", err)
	}
	viewport, err := regionFromEval(rawVP)
	if err != nil {
		return nil, err
	}

	region := intersect(expand(rect, c.margin), viewport)
	if isEmpty(region) {
		return nil, fmt.Errorf("element %q is not inside the viewport", selector)
	}

	buf, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: playwright.Float(float64(c.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("viewport screenshot failed: %w", err)
	}

	cropped, covered, err := cropPNG(buf, region)
	if err != nil {
		return nil, err
	}

	return &Result{Method: MethodScrollCrop, PNG: cropped, Region: covered}, nil
}

func (c *Capturer) captureFullPage(page playwright.Page) (*Result, error) {
	buf, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(true),
		Timeout:  playwright.Float(float64(c.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("full page screenshot failed: %w", err)
	}

	// Best effort; consumers only need the image here.
	region, _ := pageBounds(page)

	return &Result{Method: MethodFullPage, PNG: buf, Region: region}, nil
}

const pageBoundsJS = `() => ({
	x: 0,
	y: 0,
	width: Math.max(document.body.scrollWidth, document.documentElement.scrollWidth),
	height: Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)
})`

func pageBounds(page playwright.Page) (models.Region, error) {
	raw, err := page.Evaluate(pageBoundsJS)
	if err != nil {
		return models.Region{}, fmt.Errorf("failed to read page bounds: %w", err)
	}
	return regionFromEval(raw)
}

// cropPNG cuts region out of a PNG screenshot. Returns the encoded crop and
// the pixel rectangle actually covered.
func cropPNG(data []byte, region models.Region) ([]byte, models.Region, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.Region{}, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	rect := image.Rect(
		int(region.X),
		int(region.Y),
		int(math.Ceil(region.X+region.Width)),
		int(math.Ceil(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, models.Region{}, fmt.Errorf("crop region is outside the screenshot")
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, models.Region{}, fmt.Errorf("screenshot image type %T does not support cropping", img)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, sub.SubImage(rect)); err != nil {
		return nil, models.Region{}, fmt.Errorf("failed to encode crop: %w", err)
	}

	covered := models.Region{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
	return out.Bytes(), covered, nil
}
