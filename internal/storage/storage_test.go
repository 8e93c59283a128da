package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"propfeed/internal/model"
)

var (
	ignoreSessionTS    = cmpopts.IgnoreFields(model.Session{}, "CreatedAt")
	ignoreSubmissionTS = cmpopts.IgnoreFields(model.BidSubmission{}, "ID", "CreatedAt")
)

// testStorage runs the behaviour every Storage implementation shares.
func testStorage(t *testing.T, s Storage) {
	t.Run("sessions", func(t *testing.T) { testSessions(t, s) })
	t.Run("submissions", func(t *testing.T) { testSubmissions(t, s) })
	t.Run("marks", func(t *testing.T) { testMarks(t, s) })
}

func testSessions(t *testing.T, s Storage) {
	ctx := context.Background()

	if _, err := s.GetSession(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing session: err = %v, want ErrNotFound", err)
	}

	sessions := []model.Session{
		{ChatID: 2, UserID: "u-2", Token: "t-2"},
		{ChatID: 1, UserID: "u-1", Token: "t-1"},
	}
	for i := range sessions {
		if err := s.SaveSession(ctx, &sessions[i]); err != nil {
			t.Fatalf("save: %v", err)
		}
		if sessions[i].CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be populated")
		}
	}

	relogin := model.Session{ChatID: 1, UserID: "u-1b", Token: "t-1b"}
	if err := s.SaveSession(ctx, &relogin); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := s.GetSession(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(relogin, *got, ignoreSessionTS); diff != "" {
		t.Errorf("GetSession mismatch (-want +got):\n%s", diff)
	}

	all, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []model.Session{relogin, sessions[0]}
	if diff := cmp.Diff(want, all, ignoreSessionTS); diff != "" {
		t.Errorf("ListSessions mismatch (-want +got):\n%s", diff)
	}

	mark := model.LedgerMark{ChatID: 1, LeadID: "9", LatestAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := s.SetLatestMark(ctx, &mark); err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if err := s.DeleteSession(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSession(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still present: %v", err)
	}
	if _, err := s.GetLatestMark(ctx, 1, "9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("marks of a deleted session must go too: %v", err)
	}
}

func testSubmissions(t *testing.T, s Storage) {
	ctx := context.Background()
	anchor := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	subs := []model.BidSubmission{
		{ChatID: 10, LeadID: "5", Amount: 250000, AnchorAt: &anchor, Status: model.SubmissionAccepted},
		{ChatID: 10, LeadID: "6", Amount: 100, Status: model.SubmissionRejected, Error: "bid too low"},
		{ChatID: 10, LeadID: "5", Amount: 260000, Status: model.SubmissionFailed, Error: "status 502"},
		{ChatID: 11, LeadID: "5", Amount: 1, Status: model.SubmissionAccepted},
	}
	for i := range subs {
		if err := s.RecordSubmission(ctx, &subs[i]); err != nil {
			t.Fatalf("record: %v", err)
		}
		if subs[i].ID == 0 {
			t.Fatal("expected non-zero ID")
		}
	}

	tests := []struct {
		name   string
		chatID int64
		leadID string
		want   []model.BidSubmission
	}{
		{name: "one lead", chatID: 10, leadID: "5", want: []model.BidSubmission{subs[0], subs[2]}},
		{name: "whole chat", chatID: 10, want: subs[:3]},
		{name: "other chat", chatID: 11, leadID: "5", want: subs[3:]},
		{name: "nothing", chatID: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListSubmissions(ctx, tt.chatID, tt.leadID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, ignoreSubmissionTS, cmpopts.EquateEmpty(), timeEqual); diff != "" {
				t.Errorf("ListSubmissions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func testMarks(t *testing.T, s Storage) {
	ctx := context.Background()

	if _, err := s.GetLatestMark(ctx, 20, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	amount := 250000.0
	first := model.LedgerMark{
		ChatID:    20,
		LeadID:    "1",
		Amount:    &amount,
		LatestAt:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CheckedAt: time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := s.SetLatestMark(ctx, &first); err != nil {
		t.Fatalf("set: %v", err)
	}

	enquiry := model.LedgerMark{
		ChatID:    20,
		LeadID:    "1",
		LatestAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := s.SetLatestMark(ctx, &enquiry); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.GetLatestMark(ctx, 20, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(enquiry, *got, timeEqual); diff != "" {
		t.Errorf("GetLatestMark mismatch (-want +got):\n%s", diff)
	}

	fractional := model.LedgerMark{
		ChatID:    20,
		LeadID:    "3",
		LatestAt:  time.Date(2024, 1, 1, 10, 0, 0, 500_000_000, time.UTC),
		CheckedAt: time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC),
	}
	if err := s.SetLatestMark(ctx, &fractional); err != nil {
		t.Fatalf("set fractional: %v", err)
	}
	gotFrac, err := s.GetLatestMark(ctx, 20, "3")
	if err != nil {
		t.Fatalf("get fractional: %v", err)
	}
	if !gotFrac.LatestAt.Equal(fractional.LatestAt) {
		t.Errorf("latest_at = %v, want %v (sub-second precision lost)", gotFrac.LatestAt, fractional.LatestAt)
	}

	unchecked := model.LedgerMark{ChatID: 20, LeadID: "2", LatestAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := s.SetLatestMark(ctx, &unchecked); err != nil {
		t.Fatalf("set unchecked: %v", err)
	}
	if unchecked.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to default to now")
	}
}

func newSession(chatID int64) *model.Session {
	return &model.Session{ChatID: chatID, UserID: fmt.Sprintf("user-%d", chatID), Token: "token"}
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
