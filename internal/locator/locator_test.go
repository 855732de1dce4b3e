package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoony8355/searcap/internal/models"
)

const powerLinkKnownHTML = `
<html><body>
<div id="power_link_body">
	<h2>파워링크</h2>
	<ul>
		<li><a href="https://adcr.naver.com/one">광고 1</a></li>
		<li><a href="https://adcr.naver.com/two">광고 2</a></li>
	</ul>
</div>
</body></html>`

const headingOnlyHTML = `
<html><body>
<div id="wrap">
	<div class="section_wrap">
		<h2>파워링크</h2>
		<ul>
			<li><a href="https://example.com/a">첫번째 광고</a></li>
			<li><a href="https://example.com/b">두번째 광고</a></li>
		</ul>
	</div>
</div>
</body></html>`

const adDensityHTML = `
<html><body>
<div id="main">
	<ul class="lst">
		<li><a href="https://adcr.naver.com/a?x=1">상품 A</a></li>
		<li><a href="https://adcr.naver.com/b?x=2">상품 B</a></li>
		<li><a href="https://ader.naver.com/c?x=3">상품 C</a></li>
	</ul>
</div>
</body></html>`

const priceCompareAttrHTML = `
<html><body>
<div class="price_compare_wrap">
	<span>최저가 12,900원</span>
	<a href="https://example.com/mall">판매처 바로가기</a>
</div>
</body></html>`

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		strategies []string
		hasError   bool
	}{
		{
			name:       "all default strategies",
			strategies: []string{"known-selector", "heading-text", "ad-link-density", "attribute-scan"},
		},
		{
			name:       "single strategy",
			strategies: []string{"known-selector"},
		},
		{
			name:       "unknown strategy name",
			strategies: []string{"known-selector", "xpath-scan"},
			hasError:   true,
		},
		{
			name:       "no strategies",
			strategies: []string{},
			hasError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.strategies, 3)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, l.strategies, len(tt.strategies))
		})
	}
}

func TestLocateByKnownSelector(t *testing.T) {
	l, err := New([]string{"known-selector"}, 3)
	require.NoError(t, err)

	doc, err := Parse(powerLinkKnownHTML)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)

	assert.Equal(t, models.SectionPowerLink, match.Kind)
	assert.Equal(t, StrategyKnownSelector, match.Strategy)
	assert.Equal(t, "#power_link_body", match.Selector)
}

func TestLocateByHeadingText(t *testing.T) {
	l, err := New([]string{"heading-text"}, 3)
	require.NoError(t, err)

	doc, err := Parse(headingOnlyHTML)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)

	assert.Equal(t, StrategyHeadingText, match.Strategy)

	// The synthesized selector must land on the section container, not the
	// heading itself.
	found := doc.Find(match.Selector)
	require.Equal(t, 1, found.Length())
	assert.True(t, found.HasClass("section_wrap"))
}

func TestLocateByAdLinkDensity(t *testing.T) {
	l, err := New([]string{"ad-link-density"}, 3)
	require.NoError(t, err)

	doc, err := Parse(adDensityHTML)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)

	assert.Equal(t, StrategyAdLinkDensity, match.Strategy)

	found := doc.Find(match.Selector)
	require.Equal(t, 1, found.Length())
	assert.Equal(t, 3, found.Find(adLinkSelector).Length())
}

func TestAdLinkDensityOnlyAppliesToPowerLink(t *testing.T) {
	l, err := New([]string{"ad-link-density"}, 3)
	require.NoError(t, err)

	doc, err := Parse(adDensityHTML)
	require.NoError(t, err)

	_, err = l.Locate(doc, models.SurfaceSearch, models.SectionPriceCompare)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestLocateByAttributeScan(t *testing.T) {
	l, err := New([]string{"attribute-scan"}, 3)
	require.NoError(t, err)

	doc, err := Parse(priceCompareAttrHTML)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPriceCompare)
	require.NoError(t, err)

	assert.Equal(t, StrategyAttributeScan, match.Strategy)

	found := doc.Find(match.Selector)
	require.Equal(t, 1, found.Length())
	assert.Contains(t, found.Text(), "최저가")
}

func TestLocateStrategyOrdering(t *testing.T) {
	// Both known-selector and ad-link-density can find this section; the
	// configured order decides which one reports the match.
	doc, err := Parse(powerLinkKnownHTML)
	require.NoError(t, err)

	l, err := New([]string{"ad-link-density", "known-selector"}, 2)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)
	assert.Equal(t, StrategyAdLinkDensity, match.Strategy)

	l, err = New([]string{"known-selector", "ad-link-density"}, 2)
	require.NoError(t, err)

	match, err = l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)
	assert.Equal(t, StrategyKnownSelector, match.Strategy)
}

func TestLocateNotFound(t *testing.T) {
	l, err := New([]string{"known-selector", "heading-text", "ad-link-density", "attribute-scan"}, 3)
	require.NoError(t, err)

	doc, err := Parse(`<html><body><div><p>일반 검색 결과만 있는 페이지</p></div></body></html>`)
	require.NoError(t, err)

	_, err = l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestKnownSelectorSkipsEmptyPlaceholder(t *testing.T) {
	// A matching container with no links is a placeholder left by a script,
	// not a rendered section.
	html := `<html><body>
		<div id="power_link_body"></div>
		<section class="sc_new sp_nad">
			<h2>파워링크</h2>
			<a href="https://adcr.naver.com/x">광고</a>
		</section>
	</body></html>`

	l, err := New([]string{"known-selector"}, 3)
	require.NoError(t, err)

	doc, err := Parse(html)
	require.NoError(t, err)

	match, err := l.Locate(doc, models.SurfaceSearch, models.SectionPowerLink)
	require.NoError(t, err)
	assert.Equal(t, "section.sc_new.sp_nad", match.Selector)
}
