// Package identity assigns stable client identities to raw catalog records.
package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Resolver resolves record identities for one merge batch.
// It is not safe for concurrent use.
type Resolver struct {
	seen     map[string]struct{}
	newToken func() string
	log      *slog.Logger
}

// NewResolver creates a Resolver with an empty seen set.
func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{
		seen:     make(map[string]struct{}),
		newToken: uuid.NewString,
		log:      log,
	}
}

// Resolve returns the identity for a raw id found at index within page.
// originalID is nil unless rawID is an integer.
func (r *Resolver) Resolve(rawID any, index, page int) (id string, originalID *int64) {
	if n, ok := ParseID(rawID); ok {
		id = strconv.FormatInt(n, 10)
		originalID = &n
	} else {
		id = r.newToken()
	}

	if _, dup := r.seen[id]; dup {
		rewritten := fmt.Sprintf("%s_%d_%d", id, index, page)
		r.log.Warn("duplicate listing id in page", "id", id, "rewritten", rewritten, "index", index, "page", page)
		id = rewritten
	}
	r.seen[id] = struct{}{}
	return id, originalID
}

// ParseID extracts an integer id from a loosely-typed value.
func ParseID(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatID(f)
	case float64:
		return floatID(x)
	case int:
		return int64(x), true
	case int64:
		return x, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
