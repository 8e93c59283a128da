package identity

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func newTestResolver() *Resolver {
	return NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func int64p(v int64) *int64 { return &v }

func TestResolveDuplicateIDsInPage(t *testing.T) {
	r := newTestResolver()

	var got []string
	for i, raw := range []any{json.Number("5"), json.Number("5")} {
		id, _ := r.Resolve(raw, i, 1)
		got = append(got, id)
	}

	if diff := cmp.Diff([]string{"5", "5_1_1"}, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveOriginalID(t *testing.T) {
	tests := []struct {
		name       string
		raw        any
		wantID     string
		wantOrigID *int64
	}{
		{name: "json number", raw: json.Number("42"), wantID: "42", wantOrigID: int64p(42)},
		{name: "integral float", raw: 7.0, wantID: "7", wantOrigID: int64p(7)},
		{name: "numeric string", raw: " 19 ", wantID: "19", wantOrigID: int64p(19)},
		{name: "json number with zero fraction", raw: json.Number("8.0"), wantID: "8", wantOrigID: int64p(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver()
			id, orig := r.Resolve(tt.raw, 0, 1)
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantOrigID, orig); diff != "" {
				t.Errorf("original id mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveGeneratesTokenForNonNumericIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{name: "missing", raw: nil},
		{name: "non-numeric string", raw: "abc"},
		{name: "fractional", raw: json.Number("1.5")},
		{name: "bool", raw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver()
			id, orig := r.Resolve(tt.raw, 0, 1)
			if orig != nil {
				t.Errorf("expected nil original id, got %d", *orig)
			}
			if _, err := uuid.Parse(id); err != nil {
				t.Errorf("expected uuid token, got %q: %v", id, err)
			}
		})
	}
}

func TestResolveIdentitiesPairwiseDistinct(t *testing.T) {
	r := newTestResolver()
	r.newToken = func() string { return "fixed" }

	raws := []any{nil, nil, json.Number("3"), "3", nil}
	seen := make(map[string]bool)
	for i, raw := range raws {
		id, _ := r.Resolve(raw, i, 4)
		if seen[id] {
			t.Fatalf("identity %q issued twice", id)
		}
		seen[id] = true
	}

	want := map[string]bool{"fixed": true, "fixed_1_4": true, "3": true, "3_3_4": true, "fixed_4_4": true}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSeenSetIsPerResolver(t *testing.T) {
	first := newTestResolver()
	second := newTestResolver()

	a, _ := first.Resolve(json.Number("9"), 0, 1)
	b, _ := second.Resolve(json.Number("9"), 0, 2)
	if a != "9" || b != "9" {
		t.Errorf("expected both batches to keep id 9, got %q and %q", a, b)
	}
	if strings.Contains(b, "_") {
		t.Errorf("unexpected rewrite across batches: %q", b)
	}
}
