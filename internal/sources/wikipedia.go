package sources

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/extract"
	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// DefaultWikipediaURL is the MediaWiki API endpoint.
const DefaultWikipediaURL = "https://en.wikipedia.org/w/api.php"

const (
	wikiPageBase = "https://en.wikipedia.org/wiki/"
	maxParas     = 10
	// minTitleSimilarity is the Jaro-Winkler score a title without a golfer
	// marker needs against the player's name.
	minTitleSimilarity = 0.88
)

var (
	golferMarkers  = []string{"(golfer)", "(golf)", "(professional golfer)"}
	parentheticRe  = regexp.MustCompile(`\s*\([^)]*\)`)
	earlyLifeRe    = regexp.MustCompile(`(?i)early life|background|education|personal life|biography|early years`)
	birthLinkSkip  = []string{"age", "born", "year"}
	infoboxCollege = map[string]bool{"college": true, "alma mater": true, "education": true}
	infoboxHome    = map[string]bool{"residence": true, "home town": true, "hometown": true}
)

// Wikipedia reads a player's article through the MediaWiki API: the infobox
// supplies structured fields and the article paragraphs go to the extractor.
type Wikipedia struct {
	f   Fetcher
	api string
}

// NewWikipedia creates the encyclopedia source.
func NewWikipedia(f Fetcher, apiURL string) *Wikipedia {
	return &Wikipedia{f: f, api: baseOr(apiURL, DefaultWikipediaURL)}
}

// Name implements waterfall.Source.
func (w *Wikipedia) Name() string { return waterfall.SourceWikipedia }

// Lookup implements waterfall.Source.
func (w *Wikipedia) Lookup(ctx context.Context, s waterfall.Subject, _ []player.Field) (*waterfall.Document, error) {
	name := s.FullName()
	title, err := w.findTitle(ctx, name)
	if err != nil || title == "" {
		return nil, err
	}

	html, err := w.pageHTML(ctx, title)
	if err != nil || html == "" {
		return nil, err
	}
	page, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: parse article")
	}

	pageURL := wikiPageBase + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	doc := ParseArticle(page)
	doc.URL = pageURL
	doc.Bio.WikipediaURL = player.Str(pageURL)
	return doc, nil
}

// findTitle runs opensearch for "<name> golfer", then for the bare name,
// and returns the first acceptable title. It fails only when every search
// failed.
func (w *Wikipedia) findTitle(ctx context.Context, name string) (string, error) {
	queries := []string{name + " golfer", name}
	var firstErr error
	for _, q := range queries {
		out := w.f.Fetch(ctx, fetcher.Request{
			URL:  w.api,
			Kind: fetcher.KindJSON,
			Params: url.Values{
				"action":    {"opensearch"},
				"search":    {q},
				"limit":     {"5"},
				"namespace": {"0"},
				"format":    {"json"},
			},
		})
		res, err := fetcher.DecodeJSON[[]any](out)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		firstErr = nil
		if title := PickTitle(openSearchTitles(res), name); title != "" {
			return title, nil
		}
	}
	return "", firstErr
}

func openSearchTitles(res []any) []string {
	if len(res) < 2 {
		return nil
	}
	raw, ok := res[1].([]any)
	if !ok {
		return nil
	}
	titles := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok && s != "" {
			titles = append(titles, s)
		}
	}
	return titles
}

// PickTitle prefers a title marked as a golfer's article. Otherwise it takes
// the first title whose name part is close to name.
func PickTitle(titles []string, name string) string {
	for _, t := range titles {
		lt := strings.ToLower(t)
		for _, m := range golferMarkers {
			if strings.Contains(lt, m) {
				return t
			}
		}
	}
	want := strings.ToLower(Fold(name))
	for _, t := range titles {
		got := strings.ToLower(Fold(parentheticRe.ReplaceAllString(t, "")))
		if matchr.JaroWinkler(got, want, false) >= minTitleSimilarity {
			return t
		}
	}
	return ""
}

type parseResponse struct {
	Parse struct {
		Title string            `json:"title"`
		Text  map[string]string `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

func (w *Wikipedia) pageHTML(ctx context.Context, title string) (string, error) {
	out := w.f.Fetch(ctx, fetcher.Request{
		URL:  w.api,
		Kind: fetcher.KindJSON,
		Params: url.Values{
			"action":    {"parse"},
			"page":      {title},
			"prop":      {"text"},
			"format":    {"json"},
			"redirects": {"1"},
		},
	})
	res, err := fetcher.DecodeJSON[parseResponse](out)
	if err != nil {
		return "", err
	}
	if res.Error != nil {
		if res.Error.Code == "missingtitle" {
			return "", nil
		}
		return "", eris.Errorf("wikipedia: parse %q: %s", title, res.Error.Info)
	}
	return res.Parse.Text["*"], nil
}

// ParseArticle reads the infobox and collects paragraph text, early life
// sections first.
func ParseArticle(page *goquery.Document) *waterfall.Document {
	doc := &waterfall.Document{Bio: parseInfobox(page.Find("table.infobox").First())}

	page.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		if !earlyLifeRe.MatchString(text(h)) {
			return
		}
		start := h
		if p := h.Parent(); p.HasClass("mw-heading") {
			start = p
		}
		doc.Text = append(doc.Text, texts(start.NextUntil("h2, h3, div.mw-heading").Filter("p"), 0)...)
	})
	doc.Text = append(doc.Text, texts(page.Find("p"), maxParas)...)
	return doc
}

func parseInfobox(box *goquery.Selection) player.Bio {
	var b player.Bio
	box.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th, td := row.Find("th").First(), row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		label := strings.ToLower(text(th))
		value := text(td)

		switch {
		case strings.Contains(label, "born"):
			parseBorn(td, value, &b)
		case infoboxCollege[label]:
			if name, ok := extract.CleanCollege(value); ok && b.CollegeName == nil {
				b.CollegeName = player.Str(name)
			}
		case infoboxHome[label]:
			loc := extract.ParseLocation(value)
			b.HometownCity = player.Str(loc.City)
			b.HometownState = player.Str(loc.State)
			b.HometownCountry = player.Str(loc.Country)
		case strings.Contains(label, "amateur"):
			if b.CollegeName == nil {
				if m, ok := extract.First(extract.KindCollege, value); ok {
					b.CollegeName = player.Str(m.Value)
				}
			}
		}
	})

	// Without a residence row the birthplace is the best hometown we have.
	if b.HometownCity == nil && b.BirthplaceCity != nil {
		b.HometownCity = player.Str(*b.BirthplaceCity)
		if b.BirthplaceState != nil {
			b.HometownState = player.Str(*b.BirthplaceState)
		}
	}
	return b
}

func parseBorn(td *goquery.Selection, value string, b *player.Bio) {
	if d, ok := extract.ParseBirthDate(td.Find(".bday").First().Text()); ok {
		b.BirthDate = &d
	} else if d, ok := extract.ParseBirthDate(value); ok {
		b.BirthDate = &d
	}

	var places []string
	td.Find("a").Each(func(_ int, a *goquery.Selection) {
		title := strings.ToLower(a.AttrOr("title", ""))
		name := text(a)
		if title == "" || name == "" || strings.Contains(name, "(") {
			return
		}
		for _, skip := range birthLinkSkip {
			if strings.Contains(title, skip) {
				return
			}
		}
		places = append(places, name)
	})
	if len(places) == 0 {
		if loc := birthplaceText(td); loc.City != "" {
			places = append(places, loc.City)
			if loc.State != "" {
				places = append(places, loc.State)
			}
		}
	}
	if len(places) > 0 {
		b.BirthplaceCity = player.Str(places[0])
	}
	if len(places) > 1 {
		b.BirthplaceState = player.Str(places[1])
	}
	if len(places) > 2 {
		b.BirthplaceCountry = player.Str(extract.NormalizeCountry(places[len(places)-1]))
	}
}

// birthplaceText reads the unlinked ".birthplace" span some infoboxes use.
func birthplaceText(td *goquery.Selection) extract.Location {
	return extract.ParseLocation(text(td.Find(".birthplace").First()))
}
