package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// EntryFragments is what one disclosed order entry yields
type EntryFragments struct {
	Identity     []string
	Measurements [][]string
}

// ParseEntry extracts identity fragments and measurement blocks from the
// HTML of a single order entry.
func ParseEntry(entryHTML string, sel Selectors) (*EntryFragments, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(entryHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry HTML: %w", err)
	}

	out := &EntryFragments{}
	doc.Find(sel.FragmentContainer).Each(func(_ int, s *goquery.Selection) {
		own := ownText(s)
		if strings.Contains(own, sel.IdentityLabel) {
			s.ChildrenFiltered(sel.IdentityValue).Each(func(_ int, v *goquery.Selection) {
				out.Identity = append(out.Identity, strings.TrimSpace(visibleText(v.Text())))
			})
		}
		if strings.Contains(own, sel.MeasurementLabel) {
			out.Measurements = append(out.Measurements, blockLines(s))
		}
	})

	return out, nil
}

// ownText concatenates the element's direct text nodes
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return visibleText(b.String())
}

// visibleText turns non-breaking spaces into plain ones, as the browser's
// visible text does
func visibleText(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}

// blockLines renders an element the way the browser's innerText does for
// the portal's markup: <br> and block children break lines. Blank lines are
// dropped.
func blockLines(s *goquery.Selection) []string {
	clone := s.Clone()
	clone.Find("br").ReplaceWithHtml("\n")
	clone.Find("div, p, li").PrependHtml("\n").AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(visibleText(clone.Text()), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
