// Package extract pulls biographical fields out of free text with ordered
// pattern rules. Within a kind the first rule that yields a plausible value
// wins, so rules are listed from the most specific phrasing to the loosest.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind selects a rule table.
type Kind string

const (
	KindHighSchool     Kind = "high_school"
	KindHometown       Kind = "hometown"
	KindBirthplace     Kind = "birthplace"
	KindCollege        Kind = "college"
	KindGraduationYear Kind = "graduation_year"
	KindBirthDate      Kind = "birth_date"
)

// Kinds lists every rule table in the order Bio applies them.
func Kinds() []Kind {
	return []Kind{KindHighSchool, KindHometown, KindBirthplace, KindCollege, KindGraduationYear, KindBirthDate}
}

// Match is one accepted extraction. Value holds the primary value; City and
// Region are only set by rules that capture a location alongside it.
type Match struct {
	Kind   Kind
	Rule   string
	Value  string
	City   string
	Region string
	Year   int
	Date   time.Time

	// Generic marks a year taken from a bare "graduated in YYYY" with no
	// institution in the same phrase.
	Generic bool
}

// Year bounds for graduation years.
const (
	MinYear = 1950
	MaxYear = 2035
)

// Building blocks. Keywords are case-insensitive; captured names must be
// capitalized words so that ordinary prose ends a capture.
const (
	word       = `(?:St\.|Ft\.|Mt\.|[A-Z][a-zA-Z'\-]*)`
	place      = `(` + word + `(?: ` + word + `){0,3})`
	region     = `([A-Z][a-z]+(?: [A-Z][a-z]+)?|[A-Z]\.?[A-Z]\.?)`
	schoolWord = `(?:St\.|Mt\.|[A-Z][a-zA-Z'\-\.]*)`
	school     = `(` + schoolWord + `(?: ` + schoolWord + `){0,4})`
	highSchool = `\s+(?i:high\s+school)\b`
	cityRegion = place + `,\s*` + region
	optRegion  = place + `(?:,\s*` + region + `)?`

	collegeWord = `[A-Z][a-zA-Z'&\.\-]*`
	univOf      = `University\s+of\s+` + collegeWord + `(?:\s+(?:` + collegeWord + `|at|of)){0,4}`
	suffixed    = collegeWord + `(?:\s+` + collegeWord + `){0,3}\s+(?:University|College|State(?:\s+University)?)\b`
	college     = `(` + univOf + `|` + suffixed + `)`
	article     = `(?:(?i:the)\s+)?`

	month   = `(?:January|February|March|April|May|June|July|August|September|October|November|December)`
	longDay = `(` + month + `\s+\d{1,2},\s+\d{4})`
	year    = `\b(\d{4})\b`
)

const mascots = `(?:Longhorns|Bulldogs|Tigers|Gators|Wildcats|Seminoles|Sooners|Cowboys|Ducks|Cardinal|Bruins|Trojans|Razorbacks|Aggies|Commodores|Buckeyes|Wolverines|Cougars|Huskies|Jayhawks|Gamecocks|Volunteers|Mustangs|Rebels|Hokies|Spartans|Demon Deacons|Sun Devils|Blue Devils|Tar Heels|Horned Frogs|Golden Bears|Yellow Jackets|Crimson Tide)`

// slot says which capture group feeds which Match part; zero means unused.
type slot struct {
	value, city, region, year int
}

type rule struct {
	name    string
	re      *regexp.Regexp
	slots   slot
	generic bool
}

func newRule(name, pattern string, s slot) rule {
	return rule{name: name, re: regexp.MustCompile(pattern), slots: s}
}

var tables = map[Kind][]rule{
	KindHighSchool: {
		newRule("graduated_from_in", `(?i:graduated\s+from|attended|went\s+to)\s+`+school+highSchool+`\s+in\s+`+optRegion, slot{value: 1, city: 2, region: 3}),
		newRule("graduated_from", `(?i:graduated(?:\s+from)?|attended|went\s+to)\s+`+school+highSchool, slot{value: 1}),
		newRule("school_in", school+highSchool+`\s+in\s+`+optRegion, slot{value: 1, city: 2, region: 3}),
		newRule("abbreviated", `(?i:went\s+to|attended|graduated\s+from)\s+`+school+`\s+(?:HS\b|H\.S\.)`, slot{value: 1}),
		newRule("generic", school+highSchool, slot{value: 1}),
	},
	KindHometown: {
		newRule("born_and_raised", `(?i:born\s+and\s+raised\s+in)\s+`+cityRegion, slot{value: 1, region: 2}),
		newRule("raised_in", `(?i:grew\s+up\s+in|raised\s+in)\s+`+cityRegion, slot{value: 1, region: 2}),
		newRule("hometown_label", `(?i:hometown)(?:\s+(?i:of|is)|\s*:)\s*`+optRegion, slot{value: 1, region: 2}),
		newRule("native_of", `(?i:hails\s+from|native\s+of|resides\s+in|lives\s+in)\s+`+cityRegion, slot{value: 1, region: 2}),
		newRule("city_native", `(?:\b(?:The|A)\s+)?`+cityRegion+`\s+(?i:native)\b`, slot{value: 1, region: 2}),
		newRule("born_in", `(?i:born\s+in)\s+`+cityRegion, slot{value: 1, region: 2}),
		newRule("from", `\b(?i:from)\s+`+cityRegion, slot{value: 1, region: 2}),
	},
	KindBirthplace: {
		newRule("born_in", `(?i:born)(?:[^.()]{0,40}?)\s+in\s+`+optRegion, slot{value: 1, region: 2}),
		newRule("birthplace_label", `(?i:birthplace|place\s+of\s+birth)\s*:?\s*`+optRegion, slot{value: 1, region: 2}),
	},
	KindCollege: {
		newRule("played_golf_at", `(?i:played\s+(?:college\s+)?golf\s+(?:at|for))\s+`+article+`(`+univOf+`|`+suffixed+`|`+collegeWord+`(?:\s+`+collegeWord+`){0,2})`, slot{value: 1}),
		newRule("played_at", `(?i:played\s+(?:at|for))\s+`+article+college, slot{value: 1}),
		newRule("attended", `(?i:attended|graduated\s+from|enrolled\s+at|signed\s+with|went\s+on\s+to|accepted\s+a\s+scholarship\s+to)\s+`+article+college+`(?:\s+in\s+`+year+`)?`, slot{value: 1, year: 2}),
		newRule("team_golf", `(`+collegeWord+`(?:\s+`+collegeWord+`){0,2})\s+`+mascots+`\s+(?i:golf)`, slot{value: 1}),
		newRule("university_of", `(`+univOf+`)`, slot{value: 1}),
		newRule("suffixed", `\b(`+suffixed+`)`, slot{value: 1}),
	},
	KindGraduationYear: {
		newRule("graduated_school_in", `(?i:graduated\s+from|class\s+of)\s+`+school+highSchool+`\s+in\s+`+year, slot{year: 2}),
		newRule("school_class_of", `(?i:high\s+school)\s+(?i:class\s+of)\s+`+year, slot{year: 1}),
		{name: "class_of", re: regexp.MustCompile(`(?i:class\s+of)\s+` + year), slots: slot{year: 1}, generic: true},
		{name: "graduated_in", re: regexp.MustCompile(`(?i:graduat(?:ed|ing))\s+(?:(?i:in)\s+)?` + year), slots: slot{year: 1}, generic: true},
	},
	KindBirthDate: {
		newRule("born_on", `(?i:born)[:\s]+(?:(?i:on)\s+)?`+longDay, slot{value: 1}),
		newRule("leading_date", `^\s*`+longDay, slot{value: 1}),
	},
}

// Extract runs the rule table for kind against text and returns the first
// plausible match.
func Extract(kind Kind, text string) (Match, bool) {
	return First(kind, text)
}

// First runs the rule table for kind rule-major across texts: each rule is
// tried against every text before the next rule is considered.
func First(kind Kind, texts ...string) (Match, bool) {
	for _, r := range tables[kind] {
		for _, text := range texts {
			if text == "" {
				continue
			}
			for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
				if kind == KindCollege && secondaryTail(text, loc, r.slots.value) {
					continue
				}
				if m, ok := accept(kind, r, submatches(text, loc)); ok {
					return m, true
				}
			}
		}
	}
	return Match{}, false
}

var secondaryTailRe = regexp.MustCompile(`^\s+(?i:high\s+school|prep(?:aratory)?\b|academy\b|h\.?s\b)`)

// secondaryTail reports whether the captured value is the front of a
// secondary school name, as in "Boston College High School".
func secondaryTail(text string, loc []int, i int) bool {
	if i <= 0 || 2*i+1 >= len(loc) || loc[2*i+1] < 0 {
		return false
	}
	return secondaryTailRe.MatchString(text[loc[2*i+1]:])
}

func submatches(text string, loc []int) []string {
	sub := make([]string, len(loc)/2)
	for i := range sub {
		if loc[2*i] >= 0 {
			sub[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return sub
}

func group(sub []string, i int) string {
	if i <= 0 || i >= len(sub) {
		return ""
	}
	return sub[i]
}

// accept post-processes one regexp submatch into a Match. The primary value
// must pass its plausibility filter; secondary parts that fail are dropped.
func accept(kind Kind, r rule, sub []string) (Match, bool) {
	m := Match{Kind: kind, Rule: r.name, Generic: r.generic}
	raw := group(sub, r.slots.value)

	switch kind {
	case KindHighSchool:
		name, ok := CleanSchool(raw)
		if !ok {
			return Match{}, false
		}
		m.Value = name
		m.City, m.Region = cleanCityRegion(group(sub, r.slots.city), group(sub, r.slots.region))
	case KindHometown, KindBirthplace:
		city, reg := cleanCityRegion(raw, group(sub, r.slots.region))
		if city == "" {
			return Match{}, false
		}
		m.Value, m.City, m.Region = city, city, reg
	case KindCollege:
		name, ok := CleanCollege(raw)
		if !ok {
			return Match{}, false
		}
		m.Value = name
		if y, ok := ParseYear(group(sub, r.slots.year)); ok {
			m.Year = y
		}
	case KindGraduationYear:
		y, ok := ParseYear(group(sub, r.slots.year))
		if !ok {
			return Match{}, false
		}
		m.Year = y
		m.Value = strconv.Itoa(y)
	case KindBirthDate:
		d, ok := ParseBirthDate(raw)
		if !ok {
			return Match{}, false
		}
		m.Date = d
		m.Value = d.Format(time.DateOnly)
	default:
		return Match{}, false
	}
	return m, true
}

// ParseYear accepts a four digit year inside [MinYear, MaxYear].
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < MinYear || y > MaxYear {
		return 0, false
	}
	return y, true
}
