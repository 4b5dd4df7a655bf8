package sources

import (
	"context"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/extract"
	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// DefaultDuckDuckGoURL is the JavaScript-free results page.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

const maxResults = 10

var snippetClassRe = regexp.MustCompile(`(?i)snippet|abstract|desc`)

// DuckDuckGo searches the web the way a person would ("Scottie Scheffler
// high school golf") and hands the result snippets to the extractor.
type DuckDuckGo struct {
	f    Fetcher
	base string
}

// NewDuckDuckGo creates the search source.
func NewDuckDuckGo(f Fetcher, baseURL string) *DuckDuckGo {
	return &DuckDuckGo{f: f, base: baseOr(baseURL, DefaultDuckDuckGoURL)}
}

// Name implements waterfall.Source.
func (d *DuckDuckGo) Name() string { return waterfall.SourceDuckDuckGo }

// Lookup runs the high school query, then follow-up queries for hometown
// and college only while the snippets so far have not answered them.
func (d *DuckDuckGo) Lookup(ctx context.Context, s waterfall.Subject, _ []player.Field) (*waterfall.Document, error) {
	name := s.FullName()
	queries := []struct {
		q    string
		kind extract.Kind
	}{
		{name + " high school golf", ""},
		{name + " golfer hometown", extract.KindHometown},
		{name + " college golf", extract.KindCollege},
	}

	var (
		snippets []string
		firstErr error
		failures int
	)
	for _, q := range queries {
		if q.kind != "" {
			if _, ok := extract.First(q.kind, snippets...); ok {
				continue
			}
		}
		got, err := d.search(ctx, q.q)
		if err != nil {
			zap.L().Debug("duckduckgo: search failed", zap.String("query", q.q), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			failures++
			continue
		}
		snippets = append(snippets, got...)
	}

	if len(snippets) == 0 {
		if failures == len(queries) {
			return nil, firstErr
		}
		return nil, nil
	}
	return &waterfall.Document{
		URL:  "https://duckduckgo.com/?q=" + url.QueryEscape(name+" golfer"),
		Text: snippets,
	}, nil
}

func (d *DuckDuckGo) search(ctx context.Context, query string) ([]string, error) {
	out := d.f.Fetch(ctx, fetcher.Request{
		URL:    d.base,
		Kind:   fetcher.KindHTML,
		Params: url.Values{"q": {query}, "kl": {"us-en"}},
	})
	if err := out.Err(); err != nil {
		return nil, err
	}
	return Snippets(out.Doc), nil
}

// Snippets pulls result snippets and titles from a results page, falling
// back to any snippet-like block when the usual markup is missing.
func Snippets(doc *goquery.Document) []string {
	var snippets []string
	doc.Find("div.result").EachWithBreak(func(i int, r *goquery.Selection) bool {
		if t := text(r.Find("a.result__snippet").First()); t != "" {
			snippets = append(snippets, t)
		}
		if t := text(r.Find("a.result__a").First()); t != "" {
			snippets = append(snippets, t)
		}
		return i+1 < maxResults
	})
	if len(snippets) > 0 {
		return snippets
	}

	classMatches(doc.Find("div, span"), snippetClassRe).Each(func(_ int, el *goquery.Selection) {
		if t := text(el); len(t) > 20 {
			snippets = append(snippets, t)
		}
	})
	return snippets
}
