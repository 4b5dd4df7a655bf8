package player

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Field names a bio attribute. Values match the store column names.
type Field string

const (
	FieldBirthDate          Field = "birth_date"
	FieldCountry            Field = "country"
	FieldHighSchoolName     Field = "high_school_name"
	FieldHighSchoolCity     Field = "high_school_city"
	FieldHighSchoolState    Field = "high_school_state"
	FieldHighSchoolGradYear Field = "high_school_graduation_year"
	FieldHometownCity       Field = "hometown_city"
	FieldHometownState      Field = "hometown_state"
	FieldHometownCountry    Field = "hometown_country"
	FieldBirthplaceCity     Field = "birthplace_city"
	FieldBirthplaceState    Field = "birthplace_state"
	FieldBirthplaceCountry  Field = "birthplace_country"
	FieldCollegeName        Field = "college_name"
	FieldCollegeGradYear    Field = "college_graduation_year"
	FieldWikipediaURL       Field = "wikipedia_url"
)

// Bio is the set of independently nullable biographical attributes. A nil
// pointer means unknown.
type Bio struct {
	BirthDate          *time.Time
	Country            *string
	HighSchoolName     *string
	HighSchoolCity     *string
	HighSchoolState    *string
	HighSchoolGradYear *int
	HometownCity       *string
	HometownState      *string
	HometownCountry    *string
	BirthplaceCity     *string
	BirthplaceState    *string
	BirthplaceCountry  *string
	CollegeName        *string
	CollegeGradYear    *int
	WikipediaURL       *string
}

// binding ties a Field to its slot in Bio.
type binding struct {
	field Field
	isSet func(b *Bio) bool
	value func(b *Bio) any
	merge func(dst, src *Bio, force bool) bool
	clear func(b *Bio)
}

func bind[T comparable](f Field, slot func(b *Bio) **T) binding {
	return binding{
		field: f,
		isSet: func(b *Bio) bool { return *slot(b) != nil },
		value: func(b *Bio) any {
			if p := *slot(b); p != nil {
				return *p
			}
			return nil
		},
		merge: func(dst, src *Bio, force bool) bool {
			return mergeSlot(slot(dst), *slot(src), force)
		},
		clear: func(b *Bio) { *slot(b) = nil },
	}
}

func mergeSlot[T comparable](dst **T, src *T, force bool) bool {
	if src == nil {
		return false
	}
	if *dst != nil && (!force || **dst == *src) {
		return false
	}
	v := *src
	*dst = &v
	return true
}

var bindings = []binding{
	bind(FieldBirthDate, func(b *Bio) **time.Time { return &b.BirthDate }),
	bind(FieldCountry, func(b *Bio) **string { return &b.Country }),
	bind(FieldHighSchoolName, func(b *Bio) **string { return &b.HighSchoolName }),
	bind(FieldHighSchoolCity, func(b *Bio) **string { return &b.HighSchoolCity }),
	bind(FieldHighSchoolState, func(b *Bio) **string { return &b.HighSchoolState }),
	bind(FieldHighSchoolGradYear, func(b *Bio) **int { return &b.HighSchoolGradYear }),
	bind(FieldHometownCity, func(b *Bio) **string { return &b.HometownCity }),
	bind(FieldHometownState, func(b *Bio) **string { return &b.HometownState }),
	bind(FieldHometownCountry, func(b *Bio) **string { return &b.HometownCountry }),
	bind(FieldBirthplaceCity, func(b *Bio) **string { return &b.BirthplaceCity }),
	bind(FieldBirthplaceState, func(b *Bio) **string { return &b.BirthplaceState }),
	bind(FieldBirthplaceCountry, func(b *Bio) **string { return &b.BirthplaceCountry }),
	bind(FieldCollegeName, func(b *Bio) **string { return &b.CollegeName }),
	bind(FieldCollegeGradYear, func(b *Bio) **int { return &b.CollegeGradYear }),
	bind(FieldWikipediaURL, func(b *Bio) **string { return &b.WikipediaURL }),
}

var bindingByField = func() map[Field]binding {
	m := make(map[Field]binding, len(bindings))
	for _, b := range bindings {
		m[b.field] = b
	}
	return m
}()

// AllFields lists every bio field in column order.
func AllFields() []Field {
	out := make([]Field, len(bindings))
	for i, b := range bindings {
		out[i] = b.field
	}
	return out
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	if _, ok := bindingByField[Field(s)]; !ok {
		return "", eris.Errorf("player: unknown field %q", s)
	}
	return Field(s), nil
}

// Has reports whether f is set.
func (b Bio) Has(f Field) bool {
	bd, ok := bindingByField[f]
	return ok && bd.isSet(&b)
}

// Value returns the dereferenced value of f, or nil.
func (b Bio) Value(f Field) any {
	bd, ok := bindingByField[f]
	if !ok {
		return nil
	}
	return bd.value(&b)
}

// Fields returns the set fields in column order.
func (b Bio) Fields() []Field {
	var out []Field
	for _, bd := range bindings {
		if bd.isSet(&b) {
			out = append(out, bd.field)
		}
	}
	return out
}

// IsEmpty reports whether no field is set.
func (b Bio) IsEmpty() bool { return len(b.Fields()) == 0 }

// HasAny reports whether any of fields is set.
func (b Bio) HasAny(fields []Field) bool {
	for _, f := range fields {
		if b.Has(f) {
			return true
		}
	}
	return false
}

// Missing returns the subset of fields that are unset.
func (b Bio) Missing(fields []Field) []Field {
	var out []Field
	for _, f := range fields {
		if !b.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Only returns a copy holding just the listed fields.
func (b Bio) Only(fields []Field) Bio {
	keep := make(map[Field]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := b.Clone()
	for _, bd := range bindings {
		if !keep[bd.field] {
			bd.clear(&out)
		}
	}
	return out
}

// Fill copies every field set in src and unset in b. It returns the
// fields written.
func (b *Bio) Fill(src Bio) []Field {
	var out []Field
	for _, bd := range bindings {
		if bd.merge(b, &src, false) {
			out = append(out, bd.field)
		}
	}
	return out
}

// Clone returns a copy that shares no pointers with b.
func (b Bio) Clone() Bio {
	var out Bio
	out.Fill(b)
	return out
}

// FormatValue renders a field value for logs and tables.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.Format(time.DateOnly)
	default:
		return fmt.Sprint(x)
	}
}

// Str returns a pointer to s, or nil for "".
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to n, or nil for 0.
func Int(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// Date returns a pointer to a UTC calendar date.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
