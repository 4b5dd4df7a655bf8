package extract

import (
	"regexp"
	"strings"

	"github.com/benashkar/golf-tracker/internal/player"
)

// Bio applies every rule table across texts and assembles the fields found.
// Fields not found are left nil.
func Bio(texts ...string) player.Bio {
	var b player.Bio

	hs, haveHS := First(KindHighSchool, texts...)
	if haveHS {
		b.HighSchoolName = player.Str(hs.Value)
		city, reg := hs.City, hs.Region
		if city == "" {
			city, reg = schoolLocation(hs.Value, texts)
		}
		b.HighSchoolCity = player.Str(city)
		b.HighSchoolState = player.Str(reg)
	}

	if m, ok := First(KindHometown, texts...); ok {
		b.HometownCity = player.Str(m.City)
		b.HometownState = player.Str(m.Region)
	}
	if m, ok := First(KindBirthplace, texts...); ok {
		b.BirthplaceCity = player.Str(m.City)
		b.BirthplaceState = player.Str(m.Region)
	}
	if m, ok := First(KindCollege, texts...); ok {
		b.CollegeName = player.Str(m.Value)
		b.CollegeGradYear = player.Int(m.Year)
	}
	if m, ok := First(KindGraduationYear, texts...); ok && (haveHS || !m.Generic) {
		b.HighSchoolGradYear = player.Int(m.Year)
	}
	if m, ok := First(KindBirthDate, texts...); ok {
		d := m.Date
		b.BirthDate = &d
	}
	return b
}

// schoolLocation looks for "City, Region" shortly after a school name that
// was found without one.
func schoolLocation(name string, texts []string) (string, string) {
	base := strings.TrimSuffix(name, " High School")
	re, err := regexp.Compile(regexp.QuoteMeta(base) + `[^.]{0,60}?\s+in\s+` + cityRegion)
	if err != nil {
		return "", ""
	}
	for _, text := range texts {
		if sub := re.FindStringSubmatch(text); sub != nil {
			if city, reg := cleanCityRegion(sub[1], sub[2]); city != "" {
				return city, reg
			}
		}
	}
	return "", ""
}
