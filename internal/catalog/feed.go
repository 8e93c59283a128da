package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"propfeed/internal/model"
)

var trailingDigits = regexp.MustCompile(`(\d+)/?$`)

// FeedSource pages through a syndicated listing feed (RSS, Atom or JSON
// Feed) and maps its items to raw catalog records.
type FeedSource struct {
	feedURL string
	client  HTTPClient
	parser  *gofeed.Parser
	log     *slog.Logger
}

// NewFeedSource creates a FeedSource reading feedURL.
func NewFeedSource(feedURL string, client HTTPClient, log *slog.Logger) *FeedSource {
	return &FeedSource{
		feedURL: feedURL,
		client:  client,
		parser:  gofeed.NewParser(),
		log:     log,
	}
}

// FetchPage downloads page of the feed. An unparseable document yields an
// empty page.
func (s *FeedSource) FetchPage(ctx context.Context, page int) (model.Page, error) {
	const op = "fetch feed page"

	u, err := url.Parse(s.feedURL)
	if err != nil {
		return model.Page{}, fmt.Errorf("%s: parse url: %w", op, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("User-Agent", "PropFeed/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Page{}, model.NewError(model.KindNetworkFailure, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(op, resp.StatusCode); err != nil {
		return model.Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.Page{}, model.NewError(model.KindNetworkFailure, op, fmt.Errorf("read body: %w", err))
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		s.log.Warn("unparseable listing feed", "page", page, "kind", model.KindUnexpectedShape, "error", err)
		return model.Page{}, nil
	}

	records := make([]model.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, ItemRecord(item))
	}
	return model.Page{Records: records, Size: len(feed.Items)}, nil
}

// ItemRecord maps a feed item to a raw catalog record. The id is the
// trailing number of the item's GUID or link; without one the record has
// no id.
func ItemRecord(item *gofeed.Item) model.RawRecord {
	rec := model.RawRecord{"name": item.Title}

	for _, ref := range []string{item.GUID, item.Link} {
		if m := trailingDigits.FindStringSubmatch(ref); m != nil {
			rec["id"] = m[1]
			break
		}
	}

	for _, c := range item.Categories {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "rent", "for rent":
			rec["intent"] = string(model.IntentRent)
		case "sale", "for sale":
			rec["intent"] = string(model.IntentSale)
		case "featured":
			rec["status"] = "featured"
		case "":
		default:
			if _, ok := rec["category"]; !ok {
				rec["category"] = strings.TrimSpace(c)
			}
		}
	}

	for _, key := range []string{"price", "city", "status", "intent", "category"} {
		if v, ok := itemValue(item, key); ok {
			rec[key] = v
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		rec["thumbnail"] = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				rec["thumbnail"] = enc.URL
				break
			}
		}
	}
	return rec
}

// itemValue looks key up among non-namespaced elements first, then in any
// extension namespace.
func itemValue(item *gofeed.Item, key string) (string, bool) {
	if v := strings.TrimSpace(item.Custom[key]); v != "" {
		return v, true
	}
	for _, ns := range item.Extensions {
		for _, ext := range ns[key] {
			if v := strings.TrimSpace(ext.Value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}
