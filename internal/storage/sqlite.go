package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"propfeed/internal/model"
	"propfeed/migrations"
)

// Timestamps keep sub-second precision so stored bid times compare equal to
// freshly parsed ones.
const timeLayout = time.RFC3339Nano

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveSession creates or replaces the session of a chat.
func (s *SQLite) SaveSession(ctx context.Context, sess *model.Session) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, user_id, token, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET user_id = excluded.user_id, token = excluded.token, created_at = excluded.created_at`,
		sess.ChatID, sess.UserID, sess.Token, now,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetSession returns the session of a chat, or ErrNotFound.
func (s *SQLite) GetSession(ctx context.Context, chatID int64) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, user_id, token, created_at FROM sessions WHERE chat_id = ?`, chatID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns every stored session ordered by chat.
func (s *SQLite) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, user_id, token, created_at FROM sessions ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a chat's session and its ledger marks. The
// submission journal is kept.
func (s *SQLite) DeleteSession(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_marks WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete ledger_marks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// RecordSubmission appends a bid submission to the journal and populates its
// ID and CreatedAt.
func (s *SQLite) RecordSubmission(ctx context.Context, sub *model.BidSubmission) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bid_submissions (chat_id, lead_id, amount, anchor_at, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ChatID, sub.LeadID, sub.Amount, formatOptional(sub.AnchorAt), string(sub.Status), sub.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListSubmissions returns a chat's submissions, oldest first. An empty
// leadID lists every lead.
func (s *SQLite) ListSubmissions(ctx context.Context, chatID int64, leadID string) ([]model.BidSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, lead_id, amount, anchor_at, status, error, created_at
		 FROM bid_submissions
		 WHERE chat_id = ? AND (? = '' OR lead_id = ?)
		 ORDER BY id`,
		chatID, leadID, leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.BidSubmission
	for rows.Next() {
		var sub model.BidSubmission
		var anchor sql.NullString
		var status, created string
		err := rows.Scan(&sub.ID, &sub.ChatID, &sub.LeadID, &sub.Amount, &anchor, &status, &sub.Error, &created)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.AnchorAt = parseOptional(anchor)
		sub.Status = model.SubmissionStatus(status)
		sub.CreatedAt, _ = time.Parse(timeLayout, created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetLatestMark returns the last latest-bid mark for a chat and lead, or
// ErrNotFound.
func (s *SQLite) GetLatestMark(ctx context.Context, chatID int64, leadID string) (*model.LedgerMark, error) {
	var m model.LedgerMark
	var amount sql.NullFloat64
	var latest, checked string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, lead_id, amount, latest_at, checked_at FROM ledger_marks
		 WHERE chat_id = ? AND lead_id = ?`,
		chatID, leadID,
	).Scan(&m.ChatID, &m.LeadID, &amount, &latest, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger mark: %w", err)
	}
	if amount.Valid {
		m.Amount = &amount.Float64
	}
	m.LatestAt, _ = time.Parse(timeLayout, latest)
	m.CheckedAt, _ = time.Parse(timeLayout, checked)
	return &m, nil
}

// SetLatestMark creates or replaces a latest-bid mark. A zero CheckedAt is
// set to now.
func (s *SQLite) SetLatestMark(ctx context.Context, m *model.LedgerMark) error {
	if m.CheckedAt.IsZero() {
		m.CheckedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_marks (chat_id, lead_id, amount, latest_at, checked_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (chat_id, lead_id) DO UPDATE SET
		   amount = excluded.amount, latest_at = excluded.latest_at, checked_at = excluded.checked_at`,
		m.ChatID, m.LeadID, m.Amount, m.LatestAt.UTC().Format(timeLayout), m.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("set ledger mark: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (model.Session, error) {
	var sess model.Session
	var created string
	if err := row.Scan(&sess.ChatID, &sess.UserID, &sess.Token, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sess, err
		}
		return sess, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(timeLayout, created)
	return sess, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func parseOptional(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
