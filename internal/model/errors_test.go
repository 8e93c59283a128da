package model

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same kind",
			err:    NewError(KindAuthExpired, "fetch page", errors.New("status 401")),
			target: ErrAuthExpired,
			want:   true,
		},
		{
			name:   "different kind",
			err:    NewError(KindNetworkFailure, "fetch page", io.ErrUnexpectedEOF),
			target: ErrAuthExpired,
			want:   false,
		},
		{
			name:   "wrapped by fmt",
			err:    fmt.Errorf("refresh: %w", NewError(KindNetworkFailure, "fetch page", io.ErrUnexpectedEOF)),
			target: ErrNetworkFailure,
			want:   true,
		},
		{
			name:   "cause is still reachable",
			err:    NewError(KindNetworkFailure, "fetch page", io.ErrUnexpectedEOF),
			target: io.ErrUnexpectedEOF,
			want:   true,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			target: ErrParseFailure,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("errors.Is mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewError(KindInvalidAmount, "", nil))
	if diff := cmp.Diff(KindInvalidAmount, KindOf(err)); diff != "" {
		t.Errorf("KindOf mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ErrorKind(""), KindOf(io.EOF)); diff != "" {
		t.Errorf("KindOf mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "kind only", err: &Error{Kind: KindParseFailure}, want: "parse_failure"},
		{name: "with op", err: &Error{Kind: KindParseFailure, Op: "bid history"}, want: "bid history: parse_failure"},
		{
			name: "with op and cause",
			err:  NewError(KindNetworkFailure, "fetch page", io.EOF),
			want: "fetch page: network_failure: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.err.Error()); diff != "" {
				t.Errorf("Error() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
