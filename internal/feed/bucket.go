// Package feed aggregates paginated catalog listings into deduplicated buckets.
package feed

import (
	"slices"

	"propfeed/internal/model"
)

// Bucket is the accumulated state of one partition.
type Bucket struct {
	Items     []model.ListingRecord
	Page      int
	Exhausted bool
	InFlight  bool
	LastError error
}

// NewBucket returns an empty bucket positioned on page 1.
func NewBucket() Bucket {
	return Bucket{Page: 1}
}

// Merge appends incoming records to b in arrival order, skipping any whose
// ID is already present. Page 1 starts from an empty list. The result never
// shares its Items backing array with b or incoming.
func Merge(b Bucket, incoming []model.ListingRecord, page int) Bucket {
	var base []model.ListingRecord
	if page > 1 {
		base = b.Items
	}

	items := make([]model.ListingRecord, 0, len(base)+len(incoming))
	seen := make(map[string]struct{}, len(base)+len(incoming))
	for _, r := range base {
		items = append(items, r)
		seen[r.ID] = struct{}{}
	}
	for _, r := range incoming {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		items = append(items, r)
	}

	b.Items = items
	b.Page = page
	return b
}

func (b Bucket) clone() Bucket {
	b.Items = slices.Clone(b.Items)
	return b
}
