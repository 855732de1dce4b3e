package locator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Synthesize builds a CSS selector that uniquely matches the first node of
// sel within doc. Segments prefer #id, then tag.class, then tag:nth-child;
// ancestor segments are prepended until the selector matches exactly one
// node in the document.
func Synthesize(doc *goquery.Document, sel *goquery.Selection) (string, error) {
	if len(sel.Nodes) == 0 {
		return "", fmt.Errorf("selection has no node")
	}
	target := sel.Nodes[0]

	var segments []string
	for n := target; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Data == "html" || n.Data == "body" {
			break
		}

		segments = append([]string{segment(n)}, segments...)
		selector := strings.Join(segments, " > ")
		if uniqueMatch(doc, selector, target) {
			return selector, nil
		}

		// An id anchors the path; if it is still ambiguous, walking further
		// up cannot disambiguate the descendant part.
		if strings.HasPrefix(segments[0], "#") {
			break
		}
	}

	// Structural fallback: a pure nth-child path from body.
	var parts []string
	for n := target; n != nil && n.Type == html.ElementNode && n.Data != "html" && n.Data != "body"; n = n.Parent {
		parts = append([]string{fmt.Sprintf("%s:nth-child(%d)", n.Data, childIndex(n))}, parts...)
	}
	selector := "body > " + strings.Join(parts, " > ")
	if uniqueMatch(doc, selector, target) {
		return selector, nil
	}

	return "", fmt.Errorf("could not synthesize unique selector for <%s>", target.Data)
}

func segment(n *html.Node) string {
	if id := attrVal(n, "id"); id != "" && identRe.MatchString(id) {
		return "#" + id
	}

	if classes := classList(n); len(classes) > 0 {
		return n.Data + "." + strings.Join(classes, ".")
	}

	return fmt.Sprintf("%s:nth-child(%d)", n.Data, childIndex(n))
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// classList returns up to two stable-looking classes. Beyond that the
// selector gets brittle without getting more specific.
func classList(n *html.Node) []string {
	raw := strings.Fields(attrVal(n, "class"))
	classes := make([]string, 0, 2)
	for _, c := range raw {
		if identRe.MatchString(c) {
			classes = append(classes, c)
		}
		if len(classes) == 2 {
			break
		}
	}
	return classes
}

func childIndex(n *html.Node) int {
	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

func uniqueMatch(doc *goquery.Document, selector string, target *html.Node) bool {
	found := doc.Find(selector)
	return found.Length() == 1 && found.Nodes[0] == target
}
