package extract

import (
	"regexp"
	"strings"
	"time"
)

// stopwords are generic words that are never a place or institution name.
var stopwords = map[string]bool{
	"the": true, "and": true, "high": true, "school": true, "golf": true,
	"tour": true, "pga": true, "lpga": true, "college": true, "university": true,
	"played": true, "born": true, "raised": true,
}

var months = map[string]bool{
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
}

// leadIns are sentence words a loose capture may pick up before a school name.
var leadIns = map[string]bool{
	"the": true, "a": true, "an": true, "at": true, "after": true, "from": true,
	"in": true, "attended": true, "former": true, "while": true, "local": true,
}

var (
	spaceRe       = regexp.MustCompile(`\s+`)
	schoolTailRe  = regexp.MustCompile(`(?i)\s*\b(?:high\s+school|h\.s\.?|hs)$`)
	parentheticRe = regexp.MustCompile(`\s*\([^)]*\)`)
	yearRangeRe   = regexp.MustCompile(`\s*\d{4}\s*[-–]\s*(?:\d{4}|\d{2})\b`)
	footnoteRe    = regexp.MustCompile(`\[[^\]]*\]`)
	initialsRe    = regexp.MustCompile(`^(?:[A-Z]\.){2,}$`)
	longDateRe    = regexp.MustCompile(longDay)
	isoDateRe     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	highSchoolRe  = regexp.MustCompile(`(?i)high\s+school`)
	trailingOfRe  = regexp.MustCompile(`\s+(?:at|of)$`)
	prepSchoolRe  = regexp.MustCompile(`(?i)\b(?:college|university)\s+(?:high|prep(?:aratory)?|academy)\b`)
)

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func trimPunct(s string) string {
	return strings.Trim(s, " .,;:")
}

// CleanSchool normalizes a captured high school name and appends the
// "High School" suffix. It reports false for implausible names.
func CleanSchool(raw string) (string, bool) {
	s := trimPunct(collapse(raw))
	s = schoolTailRe.ReplaceAllString(s, "")
	for {
		first, rest, ok := strings.Cut(s, " ")
		if !ok || !leadIns[strings.ToLower(first)] {
			break
		}
		s = rest
	}
	s = trimPunct(s)
	if len(s) <= 2 || stopwords[strings.ToLower(s)] || leadIns[strings.ToLower(s)] {
		return "", false
	}
	return s + " High School", true
}

// CleanCollege normalizes a captured college name. Parentheticals, year
// ranges and a leading article are removed. High school and prep school
// names are rejected, including ones like "Boston College High School".
func CleanCollege(raw string) (string, bool) {
	s := footnoteRe.ReplaceAllString(raw, "")
	s = parentheticRe.ReplaceAllString(s, "")
	s = yearRangeRe.ReplaceAllString(s, "")
	s = collapse(s)
	if first, rest, ok := strings.Cut(s, " "); ok && strings.EqualFold(first, "the") {
		s = rest
	}
	s = trailingOfRe.ReplaceAllString(s, "")
	s = trimPunct(s)
	if len(s) <= 3 || highSchoolRe.MatchString(s) || prepSchoolRe.MatchString(s) || stopwords[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

// cleanCityRegion validates a captured city and region. An implausible city
// discards both; an implausible region is dropped on its own.
func cleanCityRegion(city, reg string) (string, string) {
	city = trimPunct(collapse(city))
	lc := strings.ToLower(city)
	if len(city) <= 2 || stopwords[lc] || months[lc] ||
		strings.Contains(lc, "school") || strings.Contains(lc, "university") || strings.Contains(lc, "college") {
		return "", ""
	}
	reg = collapse(reg)
	if !initialsRe.MatchString(reg) {
		reg = trimPunct(reg)
	}
	if len(reg) < 2 || stopwords[strings.ToLower(reg)] {
		reg = ""
	}
	return city, reg
}

// Location is a place split into its comma separated parts.
type Location struct {
	City    string
	State   string
	Country string
}

var countryAliases = map[string]string{
	"u.s.": "United States", "us": "United States", "usa": "United States", "u.s.a.": "United States",
	"united states": "United States", "united states of america": "United States",
	"uk": "United Kingdom", "u.k.": "United Kingdom",
}

// ParseLocation splits "City, State, Country" text as found in infoboxes.
// Two parts are read as city and state; a third and later part is the country.
func ParseLocation(text string) Location {
	text = footnoteRe.ReplaceAllString(text, "")
	var parts []string
	for _, p := range strings.Split(text, ",") {
		if p = collapse(p); p != "" {
			parts = append(parts, p)
		}
	}
	var loc Location
	switch {
	case len(parts) == 0:
	case len(parts) == 1:
		loc.City = parts[0]
	case len(parts) == 2:
		loc.City, loc.State = parts[0], parts[1]
	default:
		loc.City, loc.State = parts[0], parts[1]
		loc.Country = NormalizeCountry(parts[len(parts)-1])
	}
	return loc
}

// NormalizeCountry maps common abbreviations to a full country name.
func NormalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if full, ok := countryAliases[strings.ToLower(s)]; ok {
		return full
	}
	return s
}

// ParseBirthDate finds a "January 2, 2006" or ISO date in text.
func ParseBirthDate(text string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse(time.DateOnly, m[1]); err == nil && plausibleBirth(d) {
			return d, true
		}
	}
	if m := longDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("January 2, 2006", collapse(m[1])); err == nil && plausibleBirth(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

func plausibleBirth(d time.Time) bool {
	return d.Year() >= 1900 && d.Year() <= MaxYear
}
