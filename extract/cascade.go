package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"pricehound/models"
	"pricehound/utils"
)

// Strategy proposes a raw title from a parsed document. Strategies never return errors;
// an empty candidate means "nothing here".
type Strategy interface {
	Name() string
	Attempt(doc *goquery.Document) models.ExtractionCandidate
}

// Cascade runs strategies in priority order and keeps the first candidate that survives cleaning.
type Cascade struct {
	strategies []Strategy
	logger     *utils.Logger
}

// NewCascade returns the default cascade: metadata, <title>, headings, class heuristics,
// JSON-LD, then an XPath catch-all.
func NewCascade(logger *utils.Logger) *Cascade {
	return NewCascadeWith(logger, DefaultStrategies()...)
}

// NewCascadeWith builds a cascade from an explicit strategy list.
func NewCascadeWith(logger *utils.Logger, strategies ...Strategy) *Cascade {
	return &Cascade{strategies: strategies, logger: logger}
}

// DefaultStrategies lists the built-in strategies in evaluation order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&attrStrategy{name: "meta", attr: "content", selectors: []string{
			"meta[property='og:title']",
			"meta[name='title']",
			"meta[name='twitter:title']",
			"meta[itemprop='name']",
		}},
		&textStrategy{name: "title", selectors: []string{"title"}},
		&textStrategy{name: "heading", selectors: []string{"h1", "h2"}},
		&textStrategy{name: "class", selectors: []string{
			"[class*='product-title']",
			"[class*='item-title']",
			"[class*='name']",
			"[class*='title']",
			"[class*='product-name']",
		}},
		jsonLDStrategy{},
		&xpathStrategy{expr: "//*[contains(@class,'title') or contains(@class,'name')]"},
	}
}

// Extract returns the first cleaned, non-empty title, or ("", false).
func (c *Cascade) Extract(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, s := range c.strategies {
		cand := c.attempt(s, doc)
		if !cand.Found() {
			continue
		}
		if title := CleanTitle(cand.Value); title != "" {
			c.logger.Debug("[cascade] %s matched: %q", s.Name(), title)
			return title, true
		}
	}
	return "", false
}

// ExtractHTML parses markup and runs Extract. Unparseable markup yields ("", false).
func (c *Cascade) ExtractHTML(markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}
	return c.Extract(doc)
}

func (c *Cascade) attempt(s Strategy, doc *goquery.Document) (cand models.ExtractionCandidate) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("[cascade] strategy %s panicked: %v", s.Name(), r)
			cand = models.ExtractionCandidate{Strategy: s.Name()}
		}
	}()
	return s.Attempt(doc)
}

func usable(v string) bool {
	return CleanTitle(v) != ""
}

// attrStrategy reads an attribute of the first matching element per selector.
type attrStrategy struct {
	name      string
	attr      string
	selectors []string
}

func (s *attrStrategy) Name() string { return s.name }

func (s *attrStrategy) Attempt(doc *goquery.Document) models.ExtractionCandidate {
	for _, sel := range s.selectors {
		if v, ok := doc.Find(sel).First().Attr(s.attr); ok && usable(v) {
			return models.ExtractionCandidate{Strategy: s.name, Value: v}
		}
	}
	return models.ExtractionCandidate{Strategy: s.name}
}

// textStrategy reads the text of the first matching element per selector.
type textStrategy struct {
	name      string
	selectors []string
}

func (s *textStrategy) Name() string { return s.name }

func (s *textStrategy) Attempt(doc *goquery.Document) models.ExtractionCandidate {
	for _, sel := range s.selectors {
		if v := doc.Find(sel).First().Text(); usable(v) {
			return models.ExtractionCandidate{Strategy: s.name, Value: v}
		}
	}
	return models.ExtractionCandidate{Strategy: s.name}
}

// jsonLDStrategy reads "name" from structured data blocks. Malformed blocks are skipped.
type jsonLDStrategy struct{}

func (jsonLDStrategy) Name() string { return "json-ld" }

func (jsonLDStrategy) Attempt(doc *goquery.Document) models.ExtractionCandidate {
	cand := models.ExtractionCandidate{Strategy: "json-ld"}
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if name := jsonLDName(data); name != "" {
			cand.Value = name
			return false
		}
		return true
	})
	return cand
}

func jsonLDName(data any) string {
	switch v := data.(type) {
	case map[string]any:
		if name, ok := v["name"].(string); ok && usable(name) {
			return name
		}
		if graph, ok := v["@graph"].([]any); ok {
			return jsonLDName(graph)
		}
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				if name, ok := obj["name"].(string); ok && usable(name) {
					return name
				}
			}
		}
	}
	return ""
}

// xpathStrategy is the catch-all over class attributes, skipping anything inside <head>.
type xpathStrategy struct {
	expr string
}

func (s *xpathStrategy) Name() string { return "xpath" }

func (s *xpathStrategy) Attempt(doc *goquery.Document) models.ExtractionCandidate {
	cand := models.ExtractionCandidate{Strategy: "xpath"}
	if len(doc.Nodes) == 0 {
		return cand
	}
	nodes, err := htmlquery.QueryAll(doc.Nodes[0], s.expr)
	if err != nil {
		return cand
	}
	for _, n := range nodes {
		if insideHead(n) {
			continue
		}
		if v := htmlquery.InnerText(n); usable(v) {
			cand.Value = v
			return cand
		}
	}
	return cand
}

func insideHead(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "head" {
			return true
		}
	}
	return false
}
