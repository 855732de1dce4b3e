package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizePrefersID(t *testing.T) {
	doc, err := Parse(`<html><body><div class="outer"><div id="target" class="x">hi</div></div></body></html>`)
	require.NoError(t, err)

	sel, err := Synthesize(doc, doc.Find("#target"))
	require.NoError(t, err)
	assert.Equal(t, "#target", sel)
}

func TestSynthesizeUsesClasses(t *testing.T) {
	doc, err := Parse(`<html><body><div class="result_area"><span>x</span></div></body></html>`)
	require.NoError(t, err)

	sel, err := Synthesize(doc, doc.Find("div.result_area"))
	require.NoError(t, err)
	assert.Equal(t, "div.result_area", sel)
}

func TestSynthesizeLimitsClassCount(t *testing.T) {
	doc, err := Parse(`<html><body><div class="a b c d">x</div></body></html>`)
	require.NoError(t, err)

	sel, err := Synthesize(doc, doc.Find("div.a"))
	require.NoError(t, err)
	assert.Equal(t, "div.a.b", sel)
}

func TestSynthesizeNthChildFallback(t *testing.T) {
	doc, err := Parse(`<html><body><div><p>one</p><p>two</p></div></body></html>`)
	require.NoError(t, err)

	target := doc.Find("p").Eq(1)
	sel, err := Synthesize(doc, target)
	require.NoError(t, err)

	found := doc.Find(sel)
	require.Equal(t, 1, found.Length())
	assert.Equal(t, "two", found.Text())
}

func TestSynthesizeClimbsAncestorsToDisambiguate(t *testing.T) {
	html := `<html><body>
		<div id="first"><span class="item">one</span></div>
		<div id="second"><span class="item">two</span></div>
	</body></html>`
	doc, err := Parse(html)
	require.NoError(t, err)

	target := doc.Find("#second span")
	sel, err := Synthesize(doc, target)
	require.NoError(t, err)

	assert.Equal(t, "#second > span.item", sel)

	found := doc.Find(sel)
	require.Equal(t, 1, found.Length())
	assert.Equal(t, "two", found.Text())
}

func TestSynthesizeEmptySelection(t *testing.T) {
	doc, err := Parse(`<html><body></body></html>`)
	require.NoError(t, err)

	_, err = Synthesize(doc, doc.Find("#missing"))
	assert.Error(t, err)
}

func TestSynthesizeSkipsUnstableClasses(t *testing.T) {
	// Template-generated classes with special characters cannot appear in a
	// selector segment; the element falls back to its position.
	doc, err := Parse(`<html><body><div><div class="css-[x1]">a</div><div class="css-[x2]">b</div></div></body></html>`)
	require.NoError(t, err)

	target := doc.Find("div div").Eq(1)
	sel, err := Synthesize(doc, target)
	require.NoError(t, err)

	found := doc.Find(sel)
	require.Equal(t, 1, found.Length())
	assert.Equal(t, "b", found.Text())
}
