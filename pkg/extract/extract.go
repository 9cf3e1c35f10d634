// Package extract parses product listings out of a search results page.
//
// The site's markup changes often, so extraction runs an ordered list of
// strategies against one parsed document and stops at the first strategy
// that finds anything:
//
//  1. anchors into the category path (e.g. /hotwheels/)
//  2. anchors into the generic product path (/product/)
//  3. elements carrying a data-product-id attribute
//  4. any anchor with meaningful text (last resort)
//
// Whatever the winning strategy returns is deduplicated by id, keeping the
// first occurrence and its title.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Product is one detected listing. ID identifies the listing; Title is
// cosmetic and may be empty.
type Product struct {
	ID    string
	Title string
}

// Extractor holds the link markers the strategies look for.
type Extractor struct {
	// CategoryMarker is the path fragment of category listing links.
	CategoryMarker string
	// ProductMarker is the path fragment of generic product links.
	ProductMarker string
}

// New returns an Extractor tuned for FirstCry category pages.
func New() *Extractor {
	return &Extractor{
		CategoryMarker: "/hotwheels/",
		ProductMarker:  "/product/",
	}
}

type strategy func(*goquery.Document) []Product

// Extract parses html and returns the deduplicated products of the first
// strategy that yields any. Order of the result is first-occurrence order.
func (e *Extractor) Extract(html string) ([]Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	strategies := []strategy{
		func(d *goquery.Document) []Product { return markerLinks(d, e.CategoryMarker) },
		func(d *goquery.Document) []Product { return markerLinks(d, e.ProductMarker) },
		dataProductIDs,
		anyMeaningfulLinks,
	}

	for _, s := range strategies {
		if ps := s(doc); len(ps) > 0 {
			return dedupe(ps), nil
		}
	}
	return nil, nil
}

// markerLinks implements the primary and secondary tiers: anchors whose href
// contains the marker and that have visible text.
func markerLinks(doc *goquery.Document, marker string) []Product {
	var ps []Product
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		text := strings.TrimSpace(s.Text())
		if text == "" || !strings.Contains(href, marker) {
			return
		}
		ps = append(ps, Product{
			ID:    lastPathSegment(href),
			Title: collapseSpace(text),
		})
	})
	return ps
}

// dataProductIDs implements the tertiary tier: tiles tagged with a
// data-product-id attribute, titled by their first anchor, product-name
// element or heading.
func dataProductIDs(doc *goquery.Document) []Product {
	var ps []Product
	doc.Find("[data-product-id]").Each(func(_ int, s *goquery.Selection) {
		pid := s.AttrOr("data-product-id", "")
		if pid == "" {
			return
		}
		var title string
		for _, sel := range []string{"a", ".product-name", "h2", "h3"} {
			if t := s.Find(sel).First(); t.Length() > 0 {
				title = strings.TrimSpace(t.Text())
				break
			}
		}
		ps = append(ps, Product{ID: strings.TrimSpace(pid), Title: title})
	})
	return ps
}

// anyMeaningfulLinks is the last-resort tier: any anchor with at least four
// characters of text and a non-javascript target.
func anyMeaningfulLinks(doc *goquery.Document) []Product {
	var ps []Product
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		text := strings.TrimSpace(s.Text())
		if text == "" || utf8.RuneCountInString(text) < 4 {
			return
		}
		if strings.Contains(strings.ToLower(href), "javascript") {
			return
		}
		pid := trailingSegment(href)
		if pid == "" {
			pid = href
		}
		ps = append(ps, Product{ID: pid, Title: text})
	})
	return ps
}

// lastPathSegment returns the last non-empty path segment of href, or the
// whole path when it has no segments.
func lastPathSegment(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

// trailingSegment returns whatever follows the final slash of href's path,
// stripped of any query leftovers. May be empty for trailing-slash paths.
func trailingSegment(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	segs := strings.Split(path, "/")
	last := segs[len(segs)-1]
	return strings.SplitN(last, "?", 2)[0]
}

// collapseSpace squeezes all internal whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe drops empty ids and repeated ids, keeping first occurrence order
// and the first title seen for each id.
func dedupe(ps []Product) []Product {
	seen := make(map[string]struct{}, len(ps))
	out := make([]Product, 0, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
