// Package bids normalizes bid histories into ledgers and submits new bids.
package bids

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"propfeed/internal/model"
)

// HistoryKind tags the decoded shape of a bid-history field.
type HistoryKind int

// History shapes. The zero value is HistoryAbsent.
const (
	HistoryAbsent HistoryKind = iota
	HistoryArray
	HistoryScalar
	HistoryMalformed
)

func (k HistoryKind) String() string {
	switch k {
	case HistoryArray:
		return "array"
	case HistoryScalar:
		return "scalar"
	case HistoryMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// RawBid is one element of an array-shaped history before timestamps are
// resolved. A nil Amount is a null amount unless Empty is set, which marks
// an empty-string amount. Err is set when the element could not be decoded.
type RawBid struct {
	Amount *float64
	Empty  bool
	Date   string
	Err    error
}

// History is a bid-history field decoded once at the API boundary.
type History struct {
	Kind   HistoryKind
	Bids   []RawBid
	Scalar float64
	Err    error
}

// Enquiry is one enquiry record with its decoded bid history.
type Enquiry struct {
	LeadID       string
	PropertyID   string
	PropertyName string
	History      History
	CreatedAt    time.Time
}

// DecodeHistory decodes a raw JSON value into a History. It never fails;
// undecodable input yields HistoryMalformed.
func DecodeHistory(data []byte) History {
	var h History
	_ = h.UnmarshalJSON(data)
	return h
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error so a
// bad history never fails the enclosing record.
func (h *History) UnmarshalJSON(data []byte) error {
	*h = History{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			h.malformed(err)
			return nil
		}
		h.fromString(s)
	case '[':
		h.fromArray(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			h.malformed(fmt.Errorf("unsupported bid history %s", truncate(data)))
			return nil
		}
		f, err := n.Float64()
		if err != nil {
			h.malformed(err)
			return nil
		}
		h.Kind = HistoryScalar
		h.Scalar = f
	}
	return nil
}

func (h *History) fromString(s string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "["):
		h.fromArray([]byte(s))
	case s == "":
	default:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			h.Kind = HistoryScalar
			h.Scalar = f
		}
	}
}

type wireBid struct {
	Amount json.RawMessage `json:"bidamount"`
	Date   json.RawMessage `json:"date"`
}

func (h *History) fromArray(data []byte) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		h.malformed(err)
		return
	}

	h.Kind = HistoryArray
	h.Bids = make([]RawBid, 0, len(elems))
	for _, elem := range elems {
		var w wireBid
		if err := json.Unmarshal(elem, &w); err != nil {
			h.Bids = append(h.Bids, RawBid{Err: err})
			continue
		}
		amount, empty, err := decodeAmount(w.Amount)
		if err != nil {
			h.Bids = append(h.Bids, RawBid{Err: err})
			continue
		}
		h.Bids = append(h.Bids, RawBid{Amount: amount, Empty: empty, Date: decodeDate(w.Date)})
	}
}

func (h *History) malformed(err error) {
	*h = History{
		Kind: HistoryMalformed,
		Err:  model.NewError(model.KindParseFailure, "decode bid history", err),
	}
}

// decodeAmount returns nil for null or missing amounts, and nil with empty
// set for an empty string.
func decodeAmount(raw json.RawMessage) (amount *float64, empty bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false, err
		}
	} else {
		s = string(raw)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false, fmt.Errorf("bid amount %q: %w", s, err)
	}
	return &f, false, nil
}

func decodeDate(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errEmptyTime = errors.New("empty timestamp")

// ParseTime parses the timestamp formats emitted by the enquiry API.
// Times without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTime
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func truncate(b []byte) string {
	if len(b) > 40 {
		return string(b[:40]) + "..."
	}
	return string(b)
}
