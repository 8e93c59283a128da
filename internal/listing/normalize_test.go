package listing

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"propfeed/internal/identity"
	"propfeed/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func strp(s string) *string { return &s }
func int64p(v int64) *int64 { return &v }

func decode(t *testing.T, s string) model.RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw model.RawRecord
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return raw
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.ListingRecord
	}{
		{
			name: "complete record",
			raw: `{"id": 12, "intent": "RENT", "name": "Sea View Flat", "thumbnail": "img/12.jpg",
				"category": "Apartment", "city": "Kochi", "price": 25000, "status": "featured"}`,
			want: model.ListingRecord{
				ID: "12", OriginalID: int64p(12), Intent: model.IntentRent, Name: "Sea View Flat",
				ThumbnailRef: strp("img/12.jpg"), Category: "Apartment", City: "Kochi", Price: 25000, Featured: true,
			},
		},
		{
			name: "defaults applied",
			raw:  `{"id": 3}`,
			want: model.ListingRecord{
				ID: "3", OriginalID: int64p(3), Intent: model.IntentSale, Name: DefaultName,
				Category: DefaultCategory, City: DefaultCity,
			},
		},
		{
			name: "unknown intent falls back to sale",
			raw:  `{"id": 4, "intent": "lease", "name": "  ", "price": "1,20,000"}`,
			want: model.ListingRecord{
				ID: "4", OriginalID: int64p(4), Intent: model.IntentSale, Name: DefaultName,
				Category: DefaultCategory, City: DefaultCity, Price: 120000,
			},
		},
		{
			name: "aliases and non-featured status",
			raw: `{"id": "5", "property_for": "rent", "title": "Villa", "image": "v.png",
				"status": "active", "price": "n/a"}`,
			want: model.ListingRecord{
				ID: "5", OriginalID: int64p(5), Intent: model.IntentRent, Name: "Villa", ThumbnailRef: strp("v.png"),
				Category: DefaultCategory, City: DefaultCity,
			},
		},
		{
			name: "null fields",
			raw:  `{"id": 6, "intent": null, "thumbnail": null, "status": null, "price": null}`,
			want: model.ListingRecord{
				ID: "6", OriginalID: int64p(6), Intent: model.IntentSale, Name: DefaultName,
				Category: DefaultCategory, City: DefaultCity,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decode(t, tt.raw), identity.NewResolver(discard), 0, 1)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeMissingIDGetsToken(t *testing.T) {
	got := Normalize(decode(t, `{"name": "No Id"}`), identity.NewResolver(discard), 0, 1)
	if got.OriginalID != nil {
		t.Errorf("expected nil original id, got %d", *got.OriginalID)
	}
	if got.ID == "" {
		t.Error("expected generated id")
	}
}

func TestNormalizePage(t *testing.T) {
	raws := []model.RawRecord{
		decode(t, `{"id": 5, "name": "A"}`),
		decode(t, `{"id": 5, "name": "B"}`),
		decode(t, `{"id": 6, "name": "C"}`),
	}

	got := NormalizePage(raws, 1, discard)

	want := []model.ListingRecord{
		{ID: "5", Name: "A"},
		{ID: "5_1_1", Name: "B"},
		{ID: "6", Name: "C"},
	}
	opts := cmpopts.IgnoreFields(model.ListingRecord{}, "OriginalID", "Intent", "Category", "City")
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("NormalizePage mismatch (-want +got):\n%s", diff)
	}
	if got[1].OriginalID == nil || *got[1].OriginalID != 5 {
		t.Errorf("rewritten record should keep original id 5, got %v", got[1].OriginalID)
	}
}
