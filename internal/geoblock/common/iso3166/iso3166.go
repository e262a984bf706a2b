// Package iso3166 validates ISO 3166-1 alpha-2 country codes against an
// embedded table and resolves them to canonical English names.
package iso3166

import (
	"sort"
	"strings"
)

// Country is a single table entry.
type Country struct {
	Code string
	Name string
}

// Normalize trims surrounding whitespace and upper-cases a country code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup reports whether code is a known alpha-2 code and returns its
// canonical English name. Matching is case-insensitive; the code must be
// exactly two characters after trimming.
func Lookup(code string) (name string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			name, ok = "", false
		}
	}()

	cc := Normalize(code)
	if len(cc) != 2 {
		return "", false
	}
	name, ok = table[cc]
	if !ok {
		return "", false
	}
	return name, true
}

// Valid is shorthand for a Lookup that discards the name.
func Valid(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// All returns a copy of the table ordered by code.
func All() []Country {
	out := make([]Country, 0, len(table))
	for code, name := range table {
		out = append(out, Country{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
