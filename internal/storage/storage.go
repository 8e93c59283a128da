// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"propfeed/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	SaveSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, chatID int64) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	DeleteSession(ctx context.Context, chatID int64) error

	RecordSubmission(ctx context.Context, sub *model.BidSubmission) error
	ListSubmissions(ctx context.Context, chatID int64, leadID string) ([]model.BidSubmission, error)

	GetLatestMark(ctx context.Context, chatID int64, leadID string) (*model.LedgerMark, error)
	SetLatestMark(ctx context.Context, m *model.LedgerMark) error

	Close() error
}

var (
	_ Storage = (*SQLite)(nil)
	_ Storage = (*Postgres)(nil)
)
