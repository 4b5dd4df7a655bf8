// Package college reads college golf team roster pages. Athletic sites list
// each player's hometown and high school, either in separate fields or as
// one "Dallas, Texas / Highland Park" line.
package college

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/extract"
	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
)

// SourceName labels roster observations and their provenance.
const SourceName = "college_roster"

// Roster is one team roster page.
type Roster struct {
	Name string
	URL  string
	// School is the college name recorded on matched players.
	School string
}

// DefaultRosters are the men's golf programs that feed the most tour
// players. All of them run SideArm sites.
func DefaultRosters() []Roster {
	return []Roster{
		{Name: "Texas", URL: "https://texaslonghorns.com/sports/mens-golf/roster", School: "University of Texas"},
		{Name: "Oklahoma State", URL: "https://okstate.com/sports/mens-golf/roster", School: "Oklahoma State"},
		{Name: "Arizona State", URL: "https://thesundevils.com/sports/mens-golf/roster", School: "Arizona State"},
		{Name: "Georgia", URL: "https://georgiadogs.com/sports/mens-golf/roster", School: "University of Georgia"},
		{Name: "Alabama", URL: "https://rolltide.com/sports/mens-golf/roster", School: "University of Alabama"},
		{Name: "Florida", URL: "https://floridagators.com/sports/mens-golf/roster", School: "University of Florida"},
		{Name: "Stanford", URL: "https://gostanford.com/sports/mens-golf/roster", School: "Stanford University"},
		{Name: "Vanderbilt", URL: "https://vucommodores.com/sports/mens-golf/roster", School: "Vanderbilt University"},
		{Name: "Wake Forest", URL: "https://godeacs.com/sports/mens-golf/roster", School: "Wake Forest University"},
		{Name: "Texas Tech", URL: "https://texastech.com/sports/mens-golf/roster", School: "Texas Tech"},
		{Name: "Auburn", URL: "https://auburntigers.com/sports/mens-golf/roster", School: "Auburn University"},
		{Name: "UCLA", URL: "https://uclabruins.com/sports/mens-golf/roster", School: "UCLA"},
	}
}

// Fetcher is the part of *fetcher.Client the roster reader needs.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) *fetcher.Outcome
}

// Entry is one parsed roster row.
type Entry struct {
	FirstName     string
	LastName      string
	HometownCity  string
	HometownState string
	HighSchool    string
}

// Client fetches and parses roster pages.
type Client struct {
	f   Fetcher
	now func() time.Time
}

// New creates a Client.
func New(f Fetcher) *Client {
	return &Client{f: f, now: time.Now}
}

// Fetch downloads r and returns every row that names a player and a
// hometown or high school.
func (c *Client) Fetch(ctx context.Context, r Roster) ([]Entry, error) {
	out := c.f.Fetch(ctx, fetcher.Request{URL: r.URL, Kind: fetcher.KindHTML})
	if err := out.Err(); err != nil {
		return nil, eris.Wrapf(err, "college: roster %s", r.Name)
	}
	entries := Parse(out.Doc)
	zap.L().Info("college: roster fetched",
		zap.String("roster", r.Name),
		zap.String("url", r.URL),
		zap.Int("players", len(entries)),
	)
	return entries, nil
}

// Observation turns a roster row into a name-only observation of r.
func (c *Client) Observation(r Roster, e Entry) player.Observation {
	obs := player.Observation{
		Source:     SourceName,
		SourceURL:  r.URL,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		ObservedAt: c.now().UTC(),
	}
	obs.Bio.HometownCity = optional(e.HometownCity)
	obs.Bio.HometownState = optional(e.HometownState)
	obs.Bio.HighSchoolName = optional(e.HighSchool)
	obs.Bio.CollegeName = optional(r.School)
	return obs
}

var (
	spaceRe = regexp.MustCompile(`\s+`)

	rosterClassRe    = regexp.MustCompile(`(?i)roster`)
	playerCardRe     = regexp.MustCompile(`(?i)roster.*player|player.*item`)
	rosterOrPlayerRe = regexp.MustCompile(`(?i)roster|player`)
	nameClassRe      = regexp.MustCompile(`(?i)name`)
	hometownClassRe  = regexp.MustCompile(`(?i)hometown|location`)
	schoolClassRe    = regexp.MustCompile(`(?i)high.?school|highschool|prev(?:ious)?.?school|\bhs\b`)
	hometownLineRe   = regexp.MustCompile(`^([A-Z][a-zA-Z.'\-]*(?:\s+[A-Z][a-zA-Z.'\-]*){0,2}),\s*([A-Z][a-zA-Z.]*(?:\s+[A-Z][a-zA-Z.]*)?)\s*/\s*([A-Z][A-Za-z.'\- ]*[A-Za-z.])`)
	jerseyRe         = regexp.MustCompile(`^#?\d+$`)
	namedSchoolRe    = regexp.MustCompile(`(?i)\b(?:school|academy|prep(?:aratory)?|institute)\b`)
	highSchoolRe     = regexp.MustCompile(`(?i)high\s+school`)
)

// Parse reads roster rows from doc. Row markup is tried from the most
// specific SideArm layout to the loosest; the first layout with rows wins.
func Parse(doc *goquery.Document) []Entry {
	rows := withClass(doc.Find("li"), rosterClassRe)
	if rows.Length() == 0 {
		rows = withClass(doc.Find("div"), playerCardRe)
	}
	if rows.Length() == 0 {
		rows = withClass(doc.Find("tr"), rosterClassRe)
	}
	if rows.Length() == 0 {
		rows = withClass(doc.Find("li, div, tr"), rosterOrPlayerRe)
	}

	var out []Entry
	rows.Each(func(_ int, row *goquery.Selection) {
		if e, ok := parseRow(row); ok {
			out = append(out, e)
		}
	})
	return out
}

func parseRow(row *goquery.Selection) (Entry, bool) {
	first, last, ok := rowName(row)
	if !ok {
		return Entry{}, false
	}
	e := Entry{FirstName: first, LastName: last}

	home := withClass(row.Find("span, div, td"), hometownClassRe).First()
	school := withClass(row.Find("span, div, td"), schoolClassRe).First()

	switch {
	case home.Length() > 0 && strings.Contains(home.Text(), "/"):
		loc, hs, _ := strings.Cut(text(home), "/")
		e.HometownCity, e.HometownState = cityState(loc)
		e.HighSchool = highSchool(hs)
	case home.Length() > 0 || school.Length() > 0:
		if home.Length() > 0 {
			e.HometownCity, e.HometownState = cityState(text(home))
		}
		if school.Length() > 0 {
			e.HighSchool = highSchool(text(school))
		}
	default:
		m := hometownLine(row)
		if m == nil {
			return Entry{}, false
		}
		e.HometownCity, e.HometownState = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		e.HighSchool = highSchool(m[3])
	}

	if e.HometownCity == "" && e.HighSchool == "" {
		return Entry{}, false
	}
	return e, true
}

// hometownLine finds a "City, State / School" line in a row without
// labelled fields. Cells are tried first, then the row's text lines.
func hometownLine(row *goquery.Selection) []string {
	var candidates []string
	row.Find("td, span, div, p").Each(func(_ int, cell *goquery.Selection) {
		candidates = append(candidates, text(cell))
	})
	candidates = append(candidates, strings.Split(row.Text(), "\n")...)
	for _, c := range candidates {
		if m := hometownLineRe.FindStringSubmatch(strings.TrimSpace(c)); m != nil {
			return m
		}
	}
	return nil
}

// rowName finds the player's name, preferring a link inside a name field.
func rowName(row *goquery.Selection) (string, string, bool) {
	named := withClass(row.Find("a, span, div, h3"), nameClassRe).First()
	var raw string
	switch {
	case named.Find("a").Length() > 0:
		raw = text(named.Find("a").First())
	case named.Length() > 0:
		raw = text(named)
	default:
		raw = text(row.Find("a").First())
	}

	var parts []string
	for _, p := range strings.Fields(raw) {
		if !jerseyRe.MatchString(p) {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], " "), true
}

func cityState(s string) (string, string) {
	loc := extract.ParseLocation(s)
	return loc.City, loc.State
}

// highSchool normalizes a roster school to "<name> High School". Roster
// fields often carry the school without the suffix. Schools already named
// as an academy or prep school are kept as written.
func highSchool(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if namedSchoolRe.MatchString(s) && !highSchoolRe.MatchString(s) {
		return s
	}
	name, ok := extract.CleanSchool(s)
	if !ok {
		return ""
	}
	return name
}

func withClass(s *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	return s.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return re.MatchString(el.AttrOr("class", ""))
	})
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s.Text(), " "))
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
