package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"propfeed/internal/bids"
	"propfeed/internal/currency"
	"propfeed/internal/feed"
	"propfeed/internal/filter"
	"propfeed/internal/model"
	"propfeed/internal/partition"
)

const timeFormat = "2006-01-02 15:04 UTC"

var bucketTitles = map[partition.Name]string{
	partition.Sale:     "For sale",
	partition.Rent:     "For rent",
	partition.Featured: "Featured",
}

// FormatListing formats one listing as a short block.
func FormatListing(r model.ListingRecord, money currency.Formatter) string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Featured {
		b.WriteString(" ★")
	}
	fmt.Fprintf(&b, "\n%s · %s · %s", r.City, r.Category, money.FormatFloat(r.Price))
	if r.OriginalID != nil {
		fmt.Fprintf(&b, "\nRef #%d", *r.OriginalID)
	}
	return b.String()
}

// FormatBucket renders the listings of a bucket from index from onwards
// that pass q, followed by the bucket's status.
func FormatBucket(name partition.Name, bk feed.Bucket, from int, q filter.Query, money currency.Formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d listing(s)", bucketTitles[name], len(bk.Items))
	if len(q) > 0 {
		fmt.Fprintf(&b, ", search %q", q.String())
	}
	b.WriteString("\n")

	if bk.LastError != nil {
		fmt.Fprintf(&b, "\nCould not load listings (%s). Use /refresh to try again.\n", errorLabel(bk.LastError))
	}

	from = min(max(from, 0), len(bk.Items))
	shown := filter.Apply(bk.Items[from:], q)
	for _, r := range shown {
		b.WriteString("\n")
		b.WriteString(FormatListing(r, money))
		b.WriteString("\n")
	}
	if len(shown) == 0 && bk.LastError == nil && !bk.InFlight {
		b.WriteString("\nNo new listings.\n")
	}

	switch {
	case bk.InFlight:
		b.WriteString("\nLoading…")
	case bk.Exhausted && bk.LastError == nil:
		b.WriteString("\nEnd of listings.")
	case !bk.Exhausted:
		fmt.Fprintf(&b, "\nMore: /more %s", name)
	}
	return b.String()
}

// FormatBook lists the ledgers of a book for view.
func FormatBook(book bids.Book, view bids.View, money currency.Formatter) string {
	all := book.All()
	if len(all) == 0 {
		return "You have no enquiries yet."
	}

	var b strings.Builder
	if view == bids.ViewEnquiries {
		b.WriteString("Your enquiries:\n")
	} else {
		b.WriteString("Your bids:\n")
	}
	for _, l := range all {
		fmt.Fprintf(&b, "\nLead %s %s\n", l.SubjectID, l.PropertyName)
		latest, ok := l.Latest()
		switch {
		case !ok:
			b.WriteString("   no activity\n")
		case latest.Amount == nil:
			fmt.Fprintf(&b, "   enquired %s\n", latest.Timestamp.Format(timeFormat))
		default:
			fmt.Fprintf(&b, "   latest %s on %s (%d bid(s))\n",
				money.Format(latest.Amount), latest.Timestamp.Format(timeFormat), len(l.Entries))
		}
	}
	return b.String()
}

// FormatLedger formats one ledger and this chat's submissions for it.
func FormatLedger(l *bids.Ledger, subs []model.BidSubmission, money currency.Formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead %s %s\n", l.SubjectID, l.PropertyName)

	if len(l.Entries) == 0 {
		b.WriteString("\nNo bids yet.\n")
	} else {
		b.WriteString("\nHistory:\n")
		latest, _ := l.Latest()
		for _, e := range l.Entries {
			marker := " "
			if e.Timestamp.Equal(latest.Timestamp) && sameAmount(e.Amount, latest.Amount) {
				marker = "›"
			}
			fmt.Fprintf(&b, "%s %s  %s\n", marker, e.Timestamp.Format(timeFormat), money.Format(e.Amount))
		}
	}

	if len(subs) > 0 {
		b.WriteString("\nYour submissions:\n")
		for _, s := range subs {
			fmt.Fprintf(&b, "  %s (%s)  %s  %s",
				s.CreatedAt.Format(timeFormat), humanize.Time(s.CreatedAt), money.FormatFloat(s.Amount), s.Status)
			if s.Error != "" {
				fmt.Fprintf(&b, " (%s)", s.Error)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatBidAlert formats a notification that the latest bid of a ledger has
// changed from prev.
func FormatBidAlert(l *bids.Ledger, prev *float64, money currency.Formatter) string {
	latest, _ := l.Latest()
	var b strings.Builder
	fmt.Fprintf(&b, "New bid on lead %s", l.SubjectID)
	if l.PropertyName != "" {
		fmt.Fprintf(&b, " (%s)", l.PropertyName)
	}
	fmt.Fprintf(&b, "\n\nLatest: %s on %s", money.Format(latest.Amount), latest.Timestamp.Format(timeFormat))
	if prev != nil {
		fmt.Fprintf(&b, "\nPrevious: %s", money.Format(prev))
	}
	fmt.Fprintf(&b, "\n\nBid again: /bid %s <amount>", l.SubjectID)
	return b.String()
}

func errorLabel(err error) string {
	switch model.KindOf(err) {
	case model.KindNetworkFailure:
		return "network failure"
	case model.KindAuthExpired:
		return "session expired"
	case model.KindUnexpectedShape:
		return "unexpected response"
	}
	if errors.Is(err, feed.ErrClosed) {
		return "closed"
	}
	return "error"
}

func sameAmount(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
