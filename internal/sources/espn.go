package sources

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/benashkar/golf-tracker/internal/extract"
	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// DefaultESPNURL is the golf player profile root.
const DefaultESPNURL = "https://www.espn.com/golf/player/_/"

var (
	espnSectionRe = regexp.MustCompile(`(?i)PlayerHeader|Bio`)
	espnTableRe   = regexp.MustCompile(`(?i)PlayerBio|info`)
	espnPlaceRe   = regexp.MustCompile(`(Birthplace|Hometown)[:\s]*([^,]+),\s*([\w.]+)`)
	espnCollegeRe = regexp.MustCompile(`College[:\s]*(.+?)(?:\s*\(|$)`)
)

// maxItemLen skips container elements whose text is a whole page section.
const maxItemLen = 120

// ESPN reads the bio block of a player's profile page, by ESPN id when the
// player has one and by name slug otherwise.
type ESPN struct {
	f    Fetcher
	base string
}

// NewESPN creates the stats-site source.
func NewESPN(f Fetcher, baseURL string) *ESPN {
	base := baseOr(baseURL, DefaultESPNURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &ESPN{f: f, base: base}
}

// Name implements waterfall.Source.
func (e *ESPN) Name() string { return waterfall.SourceESPN }

// ProfileURL returns the profile address for s.
func (e *ESPN) ProfileURL(s waterfall.Subject) string {
	if id := strings.TrimSpace(s.ExternalIDs[player.SystemESPN]); id != "" {
		return e.base + "id/" + id
	}
	return e.base + "name/" + Slug(s.FullName())
}

// Lookup implements waterfall.Source. A missing profile is no information.
func (e *ESPN) Lookup(ctx context.Context, s waterfall.Subject, _ []player.Field) (*waterfall.Document, error) {
	target := e.ProfileURL(s)
	out := e.f.Fetch(ctx, fetcher.Request{URL: target, Kind: fetcher.KindHTML})
	if err := out.Err(); err != nil {
		if fetcher.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	doc := ParseProfile(out.Doc)
	doc.URL = target
	return doc, nil
}

// ParseProfile reads labelled bio items and the player info table.
func ParseProfile(page *goquery.Document) *waterfall.Document {
	var b player.Bio

	section := classMatches(page.Find("section"), espnSectionRe).First()
	if section.Length() == 0 {
		section = page.Selection
	}

	// Labels sit in nested elements. Keep the shortest text per label.
	best := map[string][]string{}
	bestLen := map[string]int{}
	keep := func(key string, m []string, n int) {
		if l, ok := bestLen[key]; !ok || n < l {
			best[key], bestLen[key] = m, n
		}
	}
	section.Find("li, div, span").Each(func(_ int, item *goquery.Selection) {
		t := text(item)
		if t == "" || len(t) > maxItemLen {
			return
		}
		if m := espnPlaceRe.FindStringSubmatch(t); m != nil {
			keep(m[1], m, len(t))
		}
		if m := espnCollegeRe.FindStringSubmatch(t); m != nil {
			keep("College", m, len(t))
		}
		if strings.Contains(t, "Birthdate") {
			if _, ok := extract.ParseBirthDate(t); ok {
				keep("Birthdate", []string{t}, len(t))
			}
		}
	})
	if m, ok := best["Hometown"]; ok {
		setPlace(&b.HometownCity, &b.HometownState, strings.TrimSpace(m[2]), strings.TrimSpace(m[3]))
	}
	if m, ok := best["Birthplace"]; ok {
		setPlace(&b.BirthplaceCity, &b.BirthplaceState, strings.TrimSpace(m[2]), strings.TrimSpace(m[3]))
	}
	if m, ok := best["College"]; ok {
		if name, ok := extract.CleanCollege(m[1]); ok {
			b.CollegeName = player.Str(name)
		}
	}
	if m, ok := best["Birthdate"]; ok {
		if d, ok := extract.ParseBirthDate(m[0]); ok {
			b.BirthDate = &d
		}
	}

	classMatches(page.Find("table"), espnTableRe).First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(text(cells.Eq(0)))
		if !strings.Contains(label, "birth") && !strings.Contains(label, "hometown") {
			return
		}
		loc := extract.ParseLocation(text(cells.Eq(1)))
		if strings.Contains(label, "hometown") {
			setPlace(&b.HometownCity, &b.HometownState, loc.City, loc.State)
		} else {
			setPlace(&b.BirthplaceCity, &b.BirthplaceState, loc.City, loc.State)
		}
	})

	if b.HometownCity == nil && b.BirthplaceCity != nil {
		setPlace(&b.HometownCity, &b.HometownState, *b.BirthplaceCity, deref(b.BirthplaceState))
	}

	return &waterfall.Document{
		Bio:  b,
		Text: texts(section.Find("p"), 0),
	}
}

func setPlace(city, state **string, c, s string) {
	if *city != nil || c == "" {
		return
	}
	*city = player.Str(c)
	*state = player.Str(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
