package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"propfeed/internal/bids"
	"propfeed/internal/model"
)

func TestEnquiries(t *testing.T) {
	body := `{"myenquiries":[
		{"leadid":11,"propertyid":"101","propertyname":"Marine Drive Flat","propertybid":"[{\"bidamount\":200000,\"date\":\"2024-01-01\"}]","created_at":"2023-12-30 09:15:00"},
		{"leadid":"12","propertyid":102,"propertyname":"Studio","propertybid":null,"created_at":"2024-01-02"},
		{"leadid":{"bad":true}},
		{"leadid":"13","propertyname":"Villa","propertybid":"[broken","created_at":"yesterday"}
	]}`
	tr := &mockTransport{responses: []response{{status: 200, body: body}}}

	got, err := newTestClient(tr).WithToken("tok").Enquiries(context.Background(), model.EnquiriesMine, "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []bids.Enquiry{
		{
			LeadID:       "11",
			PropertyID:   "101",
			PropertyName: "Marine Drive Flat",
			History:      bids.History{Kind: bids.HistoryArray, Bids: []bids.RawBid{{Amount: ptr(200000), Date: "2024-01-01"}}},
			CreatedAt:    time.Date(2023, 12, 30, 9, 15, 0, 0, time.UTC),
		},
		{
			LeadID:       "12",
			PropertyID:   "102",
			PropertyName: "Studio",
			CreatedAt:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			LeadID:       "13",
			PropertyName: "Villa",
			History:      bids.History{Kind: bids.HistoryMalformed},
		},
	}
	opts := cmp.Options{cmpopts.IgnoreFields(bids.History{}, "Err")}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("Enquiries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://api.example.com/myenquiries?id=u-1", tr.requests[0].URL.String()); diff != "" {
		t.Errorf("url mismatch (-want +got):\n%s", diff)
	}
}

func TestEnquiriesUnexpectedShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "other list", body: `{"myenquiries":[]}`},
		{name: "not an object", body: `[1,2]`},
		{name: "list is not an array", body: `{"loanenquiries":"none"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{responses: []response{{status: 200, body: tt.body}}}
			got, err := newTestClient(tr).Enquiries(context.Background(), model.EnquiriesLoan, "u")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("got %d enquiries, want none", len(got))
			}
		})
	}
}

func TestEnquiriesFeedLedger(t *testing.T) {
	body := `{"myenquiries":[{"leadid":"5","propertybid":"[{\"bidamount\":200000,\"date\":\"2024-01-01\"},{\"bidamount\":250000,\"date\":\"2024-02-01\"}]"}]}`
	tr := &mockTransport{responses: []response{{status: 200, body: body}}}

	enquiries, err := newTestClient(tr).Enquiries(context.Background(), model.EnquiriesMine, "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latest, ok := bids.Build(enquiries[0], bids.ViewBids, discard).Latest()
	if !ok || *latest.Amount != 250000 {
		t.Errorf("latest = %+v ok=%v, want 250000", latest, ok)
	}
}

func TestUpdateBid(t *testing.T) {
	anchor := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		update   model.BidUpdate
		resp     response
		wantBody string
		wantErr  error
		wantKind model.ErrorKind
	}{
		{
			name:     "anchored bid",
			update:   model.BidUpdate{LeadID: "5", Amount: 275000, AnchorAt: &anchor},
			resp:     response{status: 200, body: `{"success":true}`},
			wantBody: `{"leadid":"5","bidamount":275000,"biddate":"2024-02-01T00:00:00Z"}`,
		},
		{
			name:     "first bid has null date",
			update:   model.BidUpdate{LeadID: "6", Amount: 1000},
			resp:     response{status: 200},
			wantBody: `{"leadid":"6","bidamount":1000,"biddate":null}`,
		},
		{
			name:     "rejected by body",
			update:   model.BidUpdate{LeadID: "5", Amount: 10},
			resp:     response{status: 200, body: `{"success":false,"message":"bid too low"}`},
			wantBody: `{"leadid":"5","bidamount":10,"biddate":null}`,
			wantErr:  ErrBidRejected,
		},
		{
			name:     "conflict",
			update:   model.BidUpdate{LeadID: "5", Amount: 10},
			resp:     response{status: 409},
			wantBody: `{"leadid":"5","bidamount":10,"biddate":null}`,
			wantErr:  ErrBidRejected,
		},
		{
			name:     "session expired",
			update:   model.BidUpdate{LeadID: "5", Amount: 10},
			resp:     response{status: 401},
			wantBody: `{"leadid":"5","bidamount":10,"biddate":null}`,
			wantKind: model.KindAuthExpired,
		},
		{
			name:     "server error",
			update:   model.BidUpdate{LeadID: "5", Amount: 10},
			resp:     response{status: 500},
			wantBody: `{"leadid":"5","bidamount":10,"biddate":null}`,
			wantKind: model.KindNetworkFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{responses: []response{tt.resp}}
			err := newTestClient(tr).UpdateBid(context.Background(), tt.update)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantKind != "":
				if diff := cmp.Diff(tt.wantKind, model.KindOf(err)); diff != "" {
					t.Errorf("kind mismatch (-want +got):\n%s", diff)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(1, tr.calls()); diff != "" {
				t.Errorf("bid updates must not be retried (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantBody, tr.bodies[0]); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff("https://api.example.com/updatebidamount", tr.requests[0].URL.String()); diff != "" {
				t.Errorf("url mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }
