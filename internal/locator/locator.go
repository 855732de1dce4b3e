package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hoony8355/searcap/internal/models"
)

var ErrSectionNotFound = errors.New("section not found")

// Strategy names one heuristic for finding a section in the DOM.
type Strategy string

const (
	StrategyKnownSelector Strategy = "known-selector"
	StrategyHeadingText   Strategy = "heading-text"
	StrategyAdLinkDensity Strategy = "ad-link-density"
	StrategyAttributeScan Strategy = "attribute-scan"
)

// Match is a located section: the strategy that found it and a synthesized
// CSS selector that uniquely identifies the container in the document.
type Match struct {
	Kind     models.SectionKind
	Strategy Strategy
	Selector string
}

// Locator runs an ordered chain of discovery strategies over a rendered
// search result page. The first strategy to produce a match wins.
type Locator struct {
	strategies []Strategy
	minAdLinks int
	logger     *slog.Logger
}

func New(strategies []string, minAdLinks int) (*Locator, error) {
	if minAdLinks < 1 {
		minAdLinks = 1
	}

	parsed := make([]Strategy, 0, len(strategies))
	for _, name := range strategies {
		switch s := Strategy(name); s {
		case StrategyKnownSelector, StrategyHeadingText, StrategyAdLinkDensity, StrategyAttributeScan:
			parsed = append(parsed, s)
		default:
			return nil, fmt.Errorf("unknown locate strategy: %q", name)
		}
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no locate strategies enabled")
	}

	return &Locator{
		strategies: parsed,
		minAdLinks: minAdLinks,
		logger:     slog.Default().With("component", "locator"),
	}, nil
}

// Parse builds a goquery document from rendered page HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	return doc, nil
}

// Locate finds the given section kind in the document. Returns
// ErrSectionNotFound when every enabled strategy misses.
func (l *Locator) Locate(doc *goquery.Document, surface models.Surface, kind models.SectionKind) (*Match, error) {
	for _, strategy := range l.strategies {
		var sel *goquery.Selection

		switch strategy {
		case StrategyKnownSelector:
			sel = l.byKnownSelector(doc, surface, kind)
		case StrategyHeadingText:
			sel = l.byHeadingText(doc, kind)
		case StrategyAdLinkDensity:
			if kind == models.SectionPowerLink {
				sel = l.byAdLinkDensity(doc)
			}
		case StrategyAttributeScan:
			sel = l.byAttributeScan(doc, kind)
		}

		if sel == nil {
			continue
		}

		selector, err := Synthesize(doc, sel)
		if err != nil {
			l.logger.Debug("selector synthesis failed", "strategy", strategy, "kind", kind, "error", err)
			continue
		}

		l.logger.Info("section located", "kind", kind, "strategy", strategy, "selector", selector)
		return &Match{Kind: kind, Strategy: strategy, Selector: selector}, nil
	}

	return nil, fmt.Errorf("%w: %s on %s surface", ErrSectionNotFound, kind, surface)
}

func (l *Locator) byKnownSelector(doc *goquery.Document, surface models.Surface, kind models.SectionKind) *goquery.Selection {
	for _, selector := range knownSelectors[surface][kind] {
		found := doc.Find(selector).First()
		if found.Length() > 0 && looksLikeSection(found) {
			return found
		}
	}
	return nil
}

func (l *Locator) byHeadingText(doc *goquery.Document, kind models.SectionKind) *goquery.Selection {
	marker, ok := sectionMarkers[kind]
	if !ok {
		return nil
	}

	var result *goquery.Selection
	doc.Find("h2, h3, h4, strong, span, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		// Headings are short; a long text match is a container, not a label.
		if text == "" || len([]rune(text)) > 30 || !marker.MatchString(text) {
			return true
		}

		container := l.sectionContainer(s)
		if container == nil {
			return true
		}

		result = container
		return false
	})

	return result
}

// sectionContainer climbs from a heading element to the block that holds
// the whole section: the nearest ancestor with enough links to be a result
// list rather than the heading's own wrapper.
func (l *Locator) sectionContainer(heading *goquery.Selection) *goquery.Selection {
	current := heading
	for depth := 0; depth < 6; depth++ {
		current = current.Parent()
		if current.Length() == 0 || goquery.NodeName(current) == "body" {
			return nil
		}

		if current.Find("a").Length() >= 2 && current.Children().Length() >= 2 {
			return current
		}
	}
	return nil
}

func (l *Locator) byAdLinkDensity(doc *goquery.Document) *goquery.Selection {
	var result *goquery.Selection

	doc.Find(adLinkSelector).EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		current := anchor
		for depth := 0; depth < 8; depth++ {
			current = current.Parent()
			if current.Length() == 0 || goquery.NodeName(current) == "body" {
				return true
			}

			if current.Find(adLinkSelector).Length() >= l.minAdLinks {
				result = current
				return false
			}
		}
		return true
	})

	return result
}

func (l *Locator) byAttributeScan(doc *goquery.Document, kind models.SectionKind) *goquery.Selection {
	marker := sectionMarkers[kind]

	for _, probe := range attributeProbes[kind] {
		var result *goquery.Selection
		doc.Find(probe).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !looksLikeSection(s) {
				return true
			}
			// Require the section label somewhere inside unless the probe
			// already names the kind unambiguously via ad links.
			if marker != nil && !marker.MatchString(s.Text()) && s.Find(adLinkSelector).Length() == 0 {
				return true
			}
			result = s
			return false
		})

		if result != nil {
			return result
		}
	}

	return nil
}

// looksLikeSection filters out empty placeholders and script wrappers.
func looksLikeSection(s *goquery.Selection) bool {
	if s.Find("a").Length() == 0 {
		return false
	}
	return strings.TrimSpace(s.Text()) != ""
}
