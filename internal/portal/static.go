package portal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"oligo-export/internal/primers"
)

var (
	_ Page = (*Session)(nil)
	_ Page = (*StaticPage)(nil)
)

// StaticPage serves a saved copy of the order page. All entries of a saved
// page carry their fragments, so disclosure is only tracked, not rendered.
type StaticPage struct {
	doc       *goquery.Document
	selectors Selectors
	disclosed map[string]bool
}

// NewStaticPage parses a saved order page
func NewStaticPage(r io.Reader, selectors Selectors) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved page: %w", err)
	}
	return &StaticPage{
		doc:       doc,
		selectors: selectors,
		disclosed: make(map[string]bool),
	}, nil
}

// Login is a no-op; a saved page is already past the login form
func (p *StaticPage) Login(ctx context.Context, url string, creds primers.Credentials) error {
	return nil
}

// Close releases nothing
func (p *StaticPage) Close() error {
	return nil
}

// OrderHandles lists the order toggles in document order
func (p *StaticPage) OrderHandles(ctx context.Context) ([]OrderHandle, error) {
	var handles []OrderHandle
	var err error
	p.doc.Find(p.selectors.OrderToggle).EachWithBreak(func(i int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			err = fmt.Errorf("order toggle %d has no id", i)
			return false
		}
		handles = append(handles, OrderHandle{ID: id})
		return true
	})
	return handles, err
}

// Disclose marks the entry as open
func (p *StaticPage) Disclose(ctx context.Context, h OrderHandle) error {
	if p.toggle(h).Length() == 0 {
		return fmt.Errorf("order toggle %s not found", h.ID)
	}
	p.disclosed[h.ID] = true
	return nil
}

// Disclosed reports the tracked state
func (p *StaticPage) Disclosed(ctx context.Context, h OrderHandle) (bool, error) {
	return p.disclosed[h.ID], nil
}

// EntryHTML returns the outer HTML of the entry's scope
func (p *StaticPage) EntryHTML(ctx context.Context, h OrderHandle) (string, error) {
	scope := p.scope(h)
	if scope.Length() == 0 {
		return "", fmt.Errorf("no container found for order %s", h.ID)
	}
	return goquery.OuterHtml(scope)
}

// Collapse marks the entry as closed
func (p *StaticPage) Collapse(ctx context.Context, h OrderHandle) error {
	if !p.disclosed[h.ID] {
		return fmt.Errorf("order %s is not disclosed", h.ID)
	}
	p.disclosed[h.ID] = false
	return nil
}

func (p *StaticPage) toggle(h OrderHandle) *goquery.Selection {
	return p.doc.Find(p.selectors.OrderToggle).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == h.ID
	}).First()
}

// scope mirrors Session's lookup: closest OrderScope, or the nearest
// ancestor holding both labels.
func (p *StaticPage) scope(h OrderHandle) *goquery.Selection {
	toggle := p.toggle(h)
	if p.selectors.OrderScope != "" {
		return toggle.Closest(p.selectors.OrderScope)
	}
	return toggle.Parents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := visibleText(s.Text())
		return strings.Contains(text, p.selectors.IdentityLabel) && strings.Contains(text, p.selectors.MeasurementLabel)
	}).First()
}
