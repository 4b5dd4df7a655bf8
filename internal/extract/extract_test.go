package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_HighSchoolSpecificRuleWinsOverGeneric(t *testing.T) {
	text := "He starred at Springfield High School before he graduated from Lincoln High School in Springfield, Ohio."

	m, ok := Extract(KindHighSchool, text)
	require.True(t, ok)
	assert.Equal(t, "graduated_from_in", m.Rule)
	assert.Equal(t, "Lincoln High School", m.Value)
	assert.Equal(t, "Springfield", m.City)
	assert.Equal(t, "Ohio", m.Region)
}

func TestExtract_HighSchool(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		value  string
		city   string
		region string
		rule   string
	}{
		{"attended", "She attended Jupiter High School and turned pro at 18.", "Jupiter High School", "", "", "graduated_from"},
		{"school in city", "Highland Park High School in Dallas, Texas produced two major winners.", "Highland Park High School", "Dallas", "Texas", "school_in"},
		{"abbreviation", "He attended Jesuit H.S. in Tampa.", "Jesuit High School", "", "", "abbreviated"},
		{"abbreviation hs", "Fowler went to Clovis HS before college.", "Clovis High School", "", "", "abbreviated"},
		{"generic", "A Springfield High School alum, he turned pro in 2015.", "Springfield High School", "", "", "generic"},
		{"saint", "He graduated from St. Thomas High School in Houston, TX.", "St. Thomas High School", "Houston", "TX", "graduated_from_in"},
		{"month is not a city", "He graduated from Lincoln High School in June.", "Lincoln High School", "", "", "graduated_from_in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Extract(KindHighSchool, tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.value, m.Value)
			assert.Equal(t, tt.city, m.City)
			assert.Equal(t, tt.region, m.Region)
			assert.Equal(t, tt.rule, m.Rule)
		})
	}
}

func TestExtract_HighSchoolRejectsGenericWords(t *testing.T) {
	for _, text := range []string{
		"He played golf in high school.",
		"Golf High School",
		"",
	} {
		_, ok := Extract(KindHighSchool, text)
		assert.False(t, ok, text)
	}
}

func TestExtract_Hometown(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		city   string
		region string
	}{
		{"raised beats born", "Scheffler was born in Ridgewood, New Jersey, and raised in Dallas, Texas.", "Dallas", "Texas"},
		{"born and raised", "She was born and raised in Scottsdale, Arizona.", "Scottsdale", "Arizona"},
		{"label", "Hometown: Scottsdale, AZ", "Scottsdale", "AZ"},
		{"native", "The Dallas, Texas native won twice.", "Dallas", "Texas"},
		{"from", "Fowler is from Monroe, Louisiana.", "Monroe", "Louisiana"},
		{"initials", "He hails from Raleigh, N.C. and plays left handed.", "Raleigh", "N.C."},
		{"two word city", "She grew up in St. Louis, Missouri.", "St. Louis", "Missouri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Extract(KindHometown, tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.city, m.City)
			assert.Equal(t, tt.city, m.Value)
			assert.Equal(t, tt.region, m.Region)
		})
	}
}

func TestExtract_HometownStoplist(t *testing.T) {
	_, ok := Extract(KindHometown, "He was raised in College, Alaska.")
	assert.False(t, ok)
}

func TestExtract_Birthplace(t *testing.T) {
	m, ok := Extract(KindBirthplace, "He was born on June 21, 1996, in Ridgewood, New Jersey.")
	require.True(t, ok)
	assert.Equal(t, "Ridgewood", m.City)
	assert.Equal(t, "New Jersey", m.Region)
}

func TestExtract_College(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		value string
		year  int
	}{
		{"played golf at bare name", "He played college golf at Stanford.", "Stanford", 0},
		{"played for state", "She played for Oklahoma State before turning pro.", "Oklahoma State", 0},
		{"attended university of", "He attended the University of Texas at Austin (2012–2016).", "University of Texas at Austin", 0},
		{"graduated with year", "She graduated from Stanford University in 2016.", "Stanford University", 2016},
		{"team", "A member of the Texas Longhorns golf team.", "Texas", 0},
		{"university of anywhere", "Later a walk-on at the University of Georgia, he won twice.", "University of Georgia", 0},
		{"suffixed anywhere", "Wake Forest University honored him in 2019.", "Wake Forest University", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Extract(KindCollege, tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.value, m.Value)
			assert.Equal(t, tt.year, m.Year)
		})
	}
}

func TestExtract_CollegeIgnoresHighSchool(t *testing.T) {
	_, ok := Extract(KindCollege, "He attended Lincoln High School.")
	assert.False(t, ok)

	_, ok = Extract(KindCollege, "He lives in the United States.")
	assert.False(t, ok)
}

func TestExtract_CollegeIgnoresCollegeNamedSecondarySchools(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"college high school", "She attended Boston College High School before turning pro."},
		{"college preparatory", "Jordan Spieth attended Jesuit College Preparatory School in Dallas, Texas, graduating in 2011."},
		{"college prep", "He played golf at St. Mary's College Prep."},
		{"university academy", "She went on to Liberty University Academy."},
		{"played for", "He played for Boston College High School as a junior."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Extract(KindCollege, tt.text)
			assert.False(t, ok, "got %q", m.Value)
		})
	}

	m, ok := Extract(KindHighSchool, "She attended Boston College High School before turning pro.")
	require.True(t, ok)
	assert.Equal(t, "Boston College High School", m.Value)

	// A real college later in the text is still found.
	m, ok = Extract(KindCollege, "He attended Boston College High School and later enrolled at Boston College in 2015.")
	require.True(t, ok)
	assert.Equal(t, "Boston College", m.Value)
	assert.Equal(t, 2015, m.Year)
}

func TestCleanCollege_RejectsPrepSchools(t *testing.T) {
	for _, raw := range []string{"Jesuit College Preparatory School", "Boston College High School", "Liberty University Academy"} {
		_, ok := CleanCollege(raw)
		assert.False(t, ok, raw)
	}
	got, ok := CleanCollege("Boston College")
	require.True(t, ok)
	assert.Equal(t, "Boston College", got)
}

func TestExtract_GraduationYear(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		year    int
		generic bool
		ok      bool
	}{
		{"school year", "She graduated from The Woodlands High School in 2012.", 2012, false, true},
		{"school class of", "Member of the high school class of 2009.", 2009, false, true},
		{"generic", "He graduated in 2014.", 2014, true, true},
		{"too early", "He graduated in 1940.", 0, false, false},
		{"too late", "Graduating in 2040 is the plan.", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Extract(KindGraduationYear, tt.text)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.year, m.Year)
			assert.Equal(t, tt.generic, m.Generic)
		})
	}
}

func TestExtract_BirthDate(t *testing.T) {
	m, ok := Extract(KindBirthDate, "Scottie Scheffler (born June 21, 1996) is an American professional golfer.")
	require.True(t, ok)
	assert.Equal(t, "1996-06-21", m.Value)
	assert.Equal(t, time.Date(1996, time.June, 21, 0, 0, 0, 0, time.UTC), m.Date)

	m, ok = Extract(KindBirthDate, "June 21, 1996 (age 30) Ridgewood, New Jersey")
	require.True(t, ok)
	assert.Equal(t, "leading_date", m.Rule)

	_, ok = Extract(KindBirthDate, "He won on June 9, 2024.")
	assert.False(t, ok)
}

func TestExtract_UnknownKind(t *testing.T) {
	_, ok := Extract(Kind("shoe_size"), "size 11")
	assert.False(t, ok)
}

func TestFirst_RuleMajorAcrossTexts(t *testing.T) {
	m, ok := First(KindHometown, "He is from Austin, Texas.", "He grew up in Dallas, Texas.")
	require.True(t, ok)
	assert.Equal(t, "Dallas", m.City)
	assert.Equal(t, "raised_in", m.Rule)
}

func TestBio_AssemblesFields(t *testing.T) {
	b := Bio(
		"Scottie Scheffler (born June 21, 1996) is an American professional golfer.",
		"He was born in Ridgewood, New Jersey, and raised in Dallas, Texas.",
		"He graduated from Highland Park High School in Dallas, Texas in 2014 and played college golf at the University of Texas.",
	)

	require.NotNil(t, b.HighSchoolName)
	assert.Equal(t, "Highland Park High School", *b.HighSchoolName)
	assert.Equal(t, "Dallas", *b.HighSchoolCity)
	assert.Equal(t, "Texas", *b.HighSchoolState)
	assert.Equal(t, "Dallas", *b.HometownCity)
	assert.Equal(t, "Ridgewood", *b.BirthplaceCity)
	assert.Equal(t, "New Jersey", *b.BirthplaceState)
	assert.Equal(t, "University of Texas", *b.CollegeName)
	assert.Equal(t, 1996, b.BirthDate.Year())
	assert.Nil(t, b.CollegeGradYear)
	assert.Nil(t, b.WikipediaURL)
}

func TestBio_GenericYearNeedsHighSchool(t *testing.T) {
	b := Bio("He graduated in 2014.")
	assert.Nil(t, b.HighSchoolGradYear)

	b = Bio("He attended Lincoln High School and graduated in 2014.")
	require.NotNil(t, b.HighSchoolGradYear)
	assert.Equal(t, 2014, *b.HighSchoolGradYear)
}

func TestBio_SchoolLocationNearby(t *testing.T) {
	b := Bio("He attended Jesuit High School, located in Tampa, Florida.")
	require.NotNil(t, b.HighSchoolCity)
	assert.Equal(t, "Tampa", *b.HighSchoolCity)
	assert.Equal(t, "Florida", *b.HighSchoolState)
}

func TestBio_NothingFound(t *testing.T) {
	assert.True(t, Bio("Four birdies on the back nine.").IsEmpty())
}
