package sources

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// DefaultGrokepediaURL is the alternate encyclopedia's site root.
const DefaultGrokepediaURL = "https://www.grokepedia.com"

var playerLinkRe = regexp.MustCompile(`(?i)/player/|/golfer/`)

// Grokepedia searches the alternate encyclopedia, follows the first player
// link and returns the page's text blocks.
type Grokepedia struct {
	f    Fetcher
	base string
}

// NewGrokepedia creates the alternate encyclopedia source.
func NewGrokepedia(f Fetcher, baseURL string) *Grokepedia {
	return &Grokepedia{f: f, base: strings.TrimSuffix(baseOr(baseURL, DefaultGrokepediaURL), "/")}
}

// Name implements waterfall.Source.
func (g *Grokepedia) Name() string { return waterfall.SourceGrokepedia }

// Lookup implements waterfall.Source.
func (g *Grokepedia) Lookup(ctx context.Context, s waterfall.Subject, _ []player.Field) (*waterfall.Document, error) {
	out := g.f.Fetch(ctx, fetcher.Request{
		URL:    g.base + "/search",
		Kind:   fetcher.KindHTML,
		Params: url.Values{"q": {s.FullName() + " golf"}},
	})
	if err := out.Err(); err != nil {
		return nil, err
	}

	href := out.Doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return playerLinkRe.MatchString(a.AttrOr("href", ""))
	}).First().AttrOr("href", "")
	if href == "" {
		return nil, nil
	}

	target, err := resolve(out.URL, href)
	if err != nil {
		return nil, err
	}
	page := g.f.Fetch(ctx, fetcher.Request{URL: target, Kind: fetcher.KindHTML})
	if err := page.Err(); err != nil {
		return nil, err
	}
	return &waterfall.Document{
		URL:  target,
		Text: texts(page.Doc.Find("p, li, td"), 0),
	}, nil
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "grokepedia: parse base %q", base)
	}
	h, err := url.Parse(href)
	if err != nil {
		return "", eris.Wrapf(err, "grokepedia: parse link %q", href)
	}
	return b.ResolveReference(h).String(), nil
}
