package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"propfeed/internal/bids"
	"propfeed/internal/model"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type wireEnquiry struct {
	LeadID       flexString   `json:"leadid"`
	PropertyID   flexString   `json:"propertyid"`
	PropertyName flexString   `json:"propertyname"`
	Bid          bids.History `json:"propertybid"`
	CreatedAt    flexString   `json:"created_at"`
}

// Enquiries lists the enquiries of userID for kind. A response without the
// expected list yields no enquiries.
func (c *Client) Enquiries(ctx context.Context, kind model.EnquiryKind, userID string) ([]bids.Enquiry, error) {
	op := "list " + string(kind)
	body, err := c.get(ctx, op, string(kind), url.Values{"id": {userID}})
	if err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		c.log.Warn("enquiry response is not an object", "kind", model.KindUnexpectedShape, "list", kind, "error", err)
		return nil, nil
	}
	raw, ok := doc[string(kind)]
	if !ok {
		c.log.Warn("enquiry list missing", "kind", model.KindUnexpectedShape, "list", kind)
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		c.log.Warn("enquiry list is not an array", "kind", model.KindUnexpectedShape, "list", kind, "error", err)
		return nil, nil
	}

	out := make([]bids.Enquiry, 0, len(elems))
	for i, elem := range elems {
		var w wireEnquiry
		if err := json.Unmarshal(elem, &w); err != nil {
			c.log.Warn("drop enquiry", "list", kind, "index", i, "kind", model.KindParseFailure, "error", err)
			continue
		}
		out = append(out, bids.Enquiry{
			LeadID:       string(w.LeadID),
			PropertyID:   string(w.PropertyID),
			PropertyName: string(w.PropertyName),
			History:      w.Bid,
			CreatedAt:    c.createdAt(string(w.CreatedAt), string(w.LeadID)),
		})
	}
	return out, nil
}

func (c *Client) createdAt(s, leadID string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := bids.ParseTime(s)
	if err != nil {
		c.log.Warn("bad enquiry timestamp", "lead", leadID, "kind", model.KindParseFailure, "error", err)
		return time.Time{}
	}
	return t
}

type updateRequest struct {
	LeadID    string  `json:"leadid"`
	BidAmount float64 `json:"bidamount"`
	BidDate   *string `json:"biddate"`
}

type updateResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// UpdateBid posts a new bid. It is never retried.
func (c *Client) UpdateBid(ctx context.Context, u model.BidUpdate) error {
	req := updateRequest{LeadID: u.LeadID, BidAmount: u.Amount}
	if u.AnchorAt != nil {
		d := bids.FormatAnchor(u.AnchorAt)
		req.BidDate = &d
	}

	body, err := c.do(ctx, "update bid", http.MethodPost, "updatebidamount", nil, req)
	if err != nil {
		return err
	}

	var resp updateResponse
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &resp) != nil {
		return nil
	}
	if resp.Success != nil && !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "no reason given"
		}
		return fmt.Errorf("update bid: %w: %s", ErrBidRejected, msg)
	}
	return nil
}
