// Package sources implements the enrichment waterfall's remote sources. Each
// source turns a player's name into a Document of page text and whatever
// fields it can read straight from structured markup.
package sources

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// Fetcher is the part of *fetcher.Client a source needs.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) *fetcher.Outcome
}

// ClientFactory returns the fetch client dedicated to one source.
type ClientFactory func(sc waterfall.SourceConfig) Fetcher

// New builds the named source. An empty baseURL selects the public site.
func New(name, baseURL string, f Fetcher) (waterfall.Source, error) {
	switch name {
	case waterfall.SourceDuckDuckGo:
		return NewDuckDuckGo(f, baseURL), nil
	case waterfall.SourceWikipedia:
		return NewWikipedia(f, baseURL), nil
	case waterfall.SourceESPN:
		return NewESPN(f, baseURL), nil
	case waterfall.SourceGrokepedia:
		return NewGrokepedia(f, baseURL), nil
	default:
		return nil, eris.Errorf("sources: unknown source %q", name)
	}
}

// Registry builds a registry holding every enabled source in cfg.
func Registry(cfg *waterfall.Config, newClient ClientFactory) (*waterfall.Registry, error) {
	reg := waterfall.NewRegistry()
	for _, sc := range cfg.Enabled() {
		src, err := New(sc.Name, sc.BaseURL, newClient(sc))
		if err != nil {
			return nil, err
		}
		reg.Register(src)
	}
	return reg, nil
}

var spaceRe = regexp.MustCompile(`\s+`)

// text returns the selection's text with whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s.Text(), " "))
}

// texts collects the non-empty text of each matched element, up to limit
// when limit > 0.
func texts(s *goquery.Selection, limit int) []string {
	var out []string
	s.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := text(el); t != "" {
			out = append(out, t)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// classMatches keeps elements whose class attribute matches re.
func classMatches(s *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	return s.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return re.MatchString(el.AttrOr("class", ""))
	})
}

func baseOr(baseURL, def string) string {
	if baseURL == "" {
		return def
	}
	return baseURL
}
