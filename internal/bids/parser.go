package bids

import (
	"log/slog"
	"time"

	"propfeed/internal/model"
)

// View selects which entries of a history a screen is interested in.
type View int

// Views are disjoint filters over the same history.
const (
	// ViewBids keeps entries carrying a monetary amount.
	ViewBids View = iota
	// ViewEnquiries keeps plain enquiries without an amount.
	ViewEnquiries
)

func (v View) String() string {
	if v == ViewEnquiries {
		return "enquiries"
	}
	return "bids"
}

func (v View) keeps(amount *float64) bool {
	if v == ViewEnquiries {
		return amount == nil
	}
	return amount != nil
}

// Parse normalizes a history into ordered bid entries for view. Entries
// whose timestamp is missing take createdAt; entries that cannot be decoded
// are dropped and logged. A malformed history yields no entries.
func Parse(h History, createdAt time.Time, view View, log *slog.Logger) []model.BidEntry {
	switch h.Kind {
	case HistoryArray:
		out := make([]model.BidEntry, 0, len(h.Bids))
		for i, rb := range h.Bids {
			if rb.Err != nil {
				log.Warn("drop bid entry", "index", i, "kind", model.KindParseFailure, "error", rb.Err)
				continue
			}
			// An empty amount is neither a bid nor a plain enquiry.
			if rb.Empty || !view.keeps(rb.Amount) {
				continue
			}
			ts := createdAt
			if rb.Date != "" {
				t, err := ParseTime(rb.Date)
				if err != nil {
					log.Warn("drop bid entry", "index", i, "kind", model.KindParseFailure, "error", err)
					continue
				}
				ts = t
			}
			out = append(out, model.BidEntry{Amount: rb.Amount, Timestamp: ts})
		}
		return out

	case HistoryScalar:
		amount := h.Scalar
		if !view.keeps(&amount) {
			return nil
		}
		return []model.BidEntry{{Amount: &amount, Timestamp: createdAt}}

	case HistoryMalformed:
		log.Warn("malformed bid history", "kind", model.KindParseFailure, "error", h.Err)
		return nil

	default:
		if view == ViewEnquiries {
			return []model.BidEntry{{Timestamp: createdAt}}
		}
		return nil
	}
}
