// Package model defines the domain types used across the application.
package model

import "time"

// Intent says whether a listing is offered for sale or for rent.
type Intent string

// Supported intents.
const (
	IntentSale Intent = "sale"
	IntentRent Intent = "rent"
)

// RawRecord is a loosely-typed record as delivered by the remote catalog.
// Numbers are json.Number values when decoded by the catalog client.
type RawRecord map[string]any

// Page is one fetched listing page. Size counts every element the page
// carried, including elements dropped before Records was built.
type Page struct {
	Records []RawRecord
	Size    int
}

// ListingRecord is the canonical client-side form of a catalog listing.
type ListingRecord struct {
	ID           string
	OriginalID   *int64
	Intent       Intent
	Name         string
	ThumbnailRef *string
	Category     string
	City         string
	Price        float64
	Featured     bool
}

// BidEntry is one point in a bid history. A nil Amount marks a plain
// enquiry rather than a monetary bid.
type BidEntry struct {
	Amount    *float64
	Timestamp time.Time
}

// BidUpdate is the payload of a bid submission.
type BidUpdate struct {
	LeadID   string
	Amount   float64
	AnchorAt *time.Time
}

// EnquiryKind selects one of the remote enquiry lists.
type EnquiryKind string

// Supported enquiry lists.
const (
	EnquiriesMine EnquiryKind = "myenquiries"
	EnquiriesLoan EnquiryKind = "loanenquiries"
)

// Session binds a chat to a remote user and bearer token.
type Session struct {
	ChatID    int64
	UserID    string
	Token     string
	CreatedAt time.Time
}

// SubmissionStatus is the outcome of a bid submission attempt.
type SubmissionStatus string

// Submission outcomes.
const (
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionFailed   SubmissionStatus = "failed"
)

// BidSubmission is a journal entry for one submit attempt.
type BidSubmission struct {
	ID        int64
	ChatID    int64
	LeadID    string
	Amount    float64
	AnchorAt  *time.Time
	Status    SubmissionStatus
	Error     string
	CreatedAt time.Time
}

// LedgerMark remembers the latest bid a chat was last told about for a lead.
type LedgerMark struct {
	ChatID    int64
	LeadID    string
	Amount    *float64
	LatestAt  time.Time
	CheckedAt time.Time
}
