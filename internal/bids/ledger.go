package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"propfeed/internal/model"
)

// ErrStaleLedger is returned when submitting against a ledger that already
// accepted a bid and has not been refetched.
var ErrStaleLedger = errors.New("ledger is stale, refetch before bidding again")

// BidUpdater issues the remote bid update call.
type BidUpdater interface {
	UpdateBid(ctx context.Context, u model.BidUpdate) error
}

// EnquirySource lists a user's enquiries of one kind.
type EnquirySource interface {
	Enquiries(ctx context.Context, kind model.EnquiryKind, userID string) ([]Enquiry, error)
}

// Ledger is the normalized bid history of one enquiry.
type Ledger struct {
	SubjectID    string
	PropertyName string
	Entries      []model.BidEntry

	latest    model.BidEntry
	available bool
	stale     bool
}

// NewLedger derives a ledger from entries.
func NewLedger(subjectID string, entries []model.BidEntry) *Ledger {
	l := &Ledger{
		SubjectID: subjectID,
		Entries:   entries,
	}
	l.latest, l.available = Latest(entries)
	return l
}

// Build parses an enquiry's history for view into a ledger.
func Build(e Enquiry, view View, log *slog.Logger) *Ledger {
	l := NewLedger(e.LeadID, Parse(e.History, e.CreatedAt, view, log))
	l.PropertyName = e.PropertyName
	return l
}

// Latest returns the entry with the greatest timestamp. On equal timestamps
// the entry visited last wins. ok is false for an empty list.
func Latest(entries []model.BidEntry) (latest model.BidEntry, ok bool) {
	for _, e := range entries {
		if !ok || !e.Timestamp.Before(latest.Timestamp) {
			latest = e
			ok = true
		}
	}
	return latest, ok
}

// Latest returns the latest entry, or false when the ledger is empty.
func (l *Ledger) Latest() (model.BidEntry, bool) {
	return l.latest, l.available
}

// Stale reports whether a bid was accepted since the ledger was built.
func (l *Ledger) Stale() bool {
	return l.stale
}

// Submit sends amount as a new bid anchored on the latest known entry.
// Invalid amounts are rejected before any network call. On success the
// ledger is marked stale; callers refetch instead of patching it locally.
func (l *Ledger) Submit(ctx context.Context, api BidUpdater, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return model.NewError(model.KindInvalidAmount, "submit bid", fmt.Errorf("amount %v must be a positive number", amount))
	}
	if l.stale {
		return ErrStaleLedger
	}

	u := model.BidUpdate{LeadID: l.SubjectID, Amount: amount}
	if l.available {
		anchor := l.latest.Timestamp
		u.AnchorAt = &anchor
	}
	if err := api.UpdateBid(ctx, u); err != nil {
		return fmt.Errorf("submit bid: %w", err)
	}
	l.stale = true
	return nil
}

// Book holds the ledgers of both enquiry lists of one user.
type Book struct {
	Mine []*Ledger
	Loan []*Ledger
}

// LoadBook fetches both enquiry lists concurrently and builds their ledgers.
func LoadBook(ctx context.Context, src EnquirySource, userID string, view View, log *slog.Logger) (Book, error) {
	var book Book
	eg, egCtx := errgroup.WithContext(ctx)

	load := func(kind model.EnquiryKind, dst *[]*Ledger) func() error {
		return func() error {
			enquiries, err := src.Enquiries(egCtx, kind, userID)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			ledgers := make([]*Ledger, 0, len(enquiries))
			for _, e := range enquiries {
				ledgers = append(ledgers, Build(e, view, log))
			}
			*dst = ledgers
			return nil
		}
	}
	eg.Go(load(model.EnquiriesMine, &book.Mine))
	eg.Go(load(model.EnquiriesLoan, &book.Loan))

	if err := eg.Wait(); err != nil {
		return Book{}, err
	}
	return book, nil
}

// Find returns the ledger for leadID from either list.
func (b Book) Find(leadID string) *Ledger {
	for _, l := range slices.Concat(b.Mine, b.Loan) {
		if l.SubjectID == leadID {
			return l
		}
	}
	return nil
}

// All returns every ledger, property enquiries first.
func (b Book) All() []*Ledger {
	return slices.Concat(b.Mine, b.Loan)
}

// FormatAnchor renders an anchor timestamp for the wire.
func FormatAnchor(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
