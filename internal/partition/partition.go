// Package partition classifies listings into feed buckets.
package partition

import (
	"fmt"
	"strings"

	"propfeed/internal/model"
)

// Name identifies a feed bucket.
type Name string

// Bucket names.
const (
	Sale     Name = "sale"
	Rent     Name = "rent"
	Featured Name = "featured"
)

// All lists the buckets in display order.
var All = []Name{Sale, Rent, Featured}

// Set is a set of bucket names.
type Set uint8

const (
	bitSale Set = 1 << iota
	bitRent
	bitFeatured
)

func bit(n Name) Set {
	switch n {
	case Sale:
		return bitSale
	case Rent:
		return bitRent
	case Featured:
		return bitFeatured
	}
	return 0
}

// Has reports whether n is in the set.
func (s Set) Has(n Name) bool {
	b := bit(n)
	return b != 0 && s&b != 0
}

// Names returns the members in display order.
func (s Set) Names() []Name {
	var out []Name
	for _, n := range All {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s Set) String() string {
	parts := make([]string, 0, 3)
	for _, n := range s.Names() {
		parts = append(parts, string(n))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Classify returns the buckets a record belongs to. Every record lands in
// exactly one of sale or rent; sale records may also be featured.
// Rent records are never featured.
func Classify(r model.ListingRecord) Set {
	if r.Intent == model.IntentRent {
		return bitRent
	}
	s := bitSale
	if r.Featured {
		s |= bitFeatured
	}
	return s
}

// Parse maps a user-supplied bucket name to a Name.
func Parse(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Sale, Rent, Featured:
		return n, nil
	}
	return "", fmt.Errorf("unknown bucket %q, use: sale, rent, featured", s)
}
