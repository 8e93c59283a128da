// Package listing maps raw catalog records into canonical listing records.
package listing

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"propfeed/internal/identity"
	"propfeed/internal/model"
)

// Field defaults.
const (
	DefaultName     = "Unnamed Property"
	DefaultCategory = "N/A"
	DefaultCity     = "Unknown City"

	featuredStatus = "featured"
)

// Normalize converts a raw record at index within page. It never fails:
// missing or malformed fields fall back to their defaults.
func Normalize(raw model.RawRecord, r *identity.Resolver, index, page int) model.ListingRecord {
	id, originalID := r.Resolve(raw["id"], index, page)
	return model.ListingRecord{
		ID:           id,
		OriginalID:   originalID,
		Intent:       intentOf(raw),
		Name:         stringField(raw, DefaultName, "name", "title"),
		ThumbnailRef: optionalString(raw, "thumbnail", "image"),
		Category:     stringField(raw, DefaultCategory, "category"),
		City:         stringField(raw, DefaultCity, "city"),
		Price:        numberField(raw, "price"),
		Featured:     isFeatured(raw),
	}
}

// NormalizePage normalizes one fetched page with a fresh resolver so that
// identities are unique within the page.
func NormalizePage(raws []model.RawRecord, page int, log *slog.Logger) []model.ListingRecord {
	r := identity.NewResolver(log)
	out := make([]model.ListingRecord, 0, len(raws))
	for i, raw := range raws {
		out = append(out, Normalize(raw, r, i, page))
	}
	return out
}

func intentOf(raw model.RawRecord) model.Intent {
	s, _ := firstString(raw, "intent", "property_for")
	switch model.Intent(strings.ToLower(strings.TrimSpace(s))) {
	case model.IntentRent:
		return model.IntentRent
	default:
		return model.IntentSale
	}
}

func isFeatured(raw model.RawRecord) bool {
	s, ok := raw["status"].(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), featuredStatus)
}

func stringField(raw model.RawRecord, def string, keys ...string) string {
	if s, ok := firstString(raw, keys...); ok {
		return s
	}
	return def
}

func optionalString(raw model.RawRecord, keys ...string) *string {
	if s, ok := firstString(raw, keys...); ok {
		return &s
	}
	return nil
}

// firstString returns the first non-blank value among keys. Numbers are
// accepted and rendered in their decimal form.
func firstString(raw model.RawRecord, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case json.Number:
			return v.String(), true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

func numberField(raw model.RawRecord, key string) float64 {
	var f float64
	var err error
	switch v := raw[key].(type) {
	case json.Number:
		f, err = v.Float64()
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
	default:
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
