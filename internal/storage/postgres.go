package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propfeed/internal/model"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id    BIGINT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	token      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bid_submissions (
	id         BIGSERIAL PRIMARY KEY,
	chat_id    BIGINT NOT NULL,
	lead_id    TEXT NOT NULL,
	amount     DOUBLE PRECISION NOT NULL,
	anchor_at  TIMESTAMPTZ,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bid_submissions_chat_lead ON bid_submissions(chat_id, lead_id);

CREATE TABLE IF NOT EXISTS ledger_marks (
	chat_id    BIGINT NOT NULL,
	lead_id    TEXT NOT NULL,
	amount     DOUBLE PRECISION,
	latest_at  TIMESTAMPTZ NOT NULL,
	checked_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chat_id, lead_id)
);
`

// Postgres implements Storage on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) SaveSession(ctx context.Context, sess *model.Session) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sessions (chat_id, user_id, token, created_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (chat_id) DO UPDATE SET user_id = EXCLUDED.user_id, token = EXCLUDED.token, created_at = EXCLUDED.created_at
		 RETURNING created_at`,
		sess.ChatID, sess.UserID, sess.Token,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, chatID int64) (*model.Session, error) {
	var sess model.Session
	err := p.pool.QueryRow(ctx,
		`SELECT chat_id, user_id, token, created_at FROM sessions WHERE chat_id = $1`, chatID,
	).Scan(&sess.ChatID, &sess.UserID, &sess.Token, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (p *Postgres) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := p.pool.Query(ctx, `SELECT chat_id, user_id, token, created_at FROM sessions ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Session, error) {
		var s model.Session
		err := row.Scan(&s.ChatID, &s.UserID, &s.Token, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a chat's session and its ledger marks in one batch.
func (p *Postgres) DeleteSession(ctx context.Context, chatID int64) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM ledger_marks WHERE chat_id = $1`, chatID)
	batch.Queue(`DELETE FROM sessions WHERE chat_id = $1`, chatID)

	results := p.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("delete session at statement %d: %w", i, err)
		}
	}
	return nil
}

func (p *Postgres) RecordSubmission(ctx context.Context, sub *model.BidSubmission) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO bid_submissions (chat_id, lead_id, amount, anchor_at, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		sub.ChatID, sub.LeadID, sub.Amount, sub.AnchorAt, string(sub.Status), sub.Error,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, chatID int64, leadID string) ([]model.BidSubmission, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, chat_id, lead_id, amount, anchor_at, status, error, created_at
		 FROM bid_submissions
		 WHERE chat_id = $1 AND ($2 = '' OR lead_id = $2)
		 ORDER BY id`,
		chatID, leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BidSubmission, error) {
		var s model.BidSubmission
		var status string
		err := row.Scan(&s.ID, &s.ChatID, &s.LeadID, &s.Amount, &s.AnchorAt, &status, &s.Error, &s.CreatedAt)
		s.Status = model.SubmissionStatus(status)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan submissions: %w", err)
	}
	return subs, nil
}

func (p *Postgres) GetLatestMark(ctx context.Context, chatID int64, leadID string) (*model.LedgerMark, error) {
	var m model.LedgerMark
	err := p.pool.QueryRow(ctx,
		`SELECT chat_id, lead_id, amount, latest_at, checked_at FROM ledger_marks
		 WHERE chat_id = $1 AND lead_id = $2`,
		chatID, leadID,
	).Scan(&m.ChatID, &m.LeadID, &m.Amount, &m.LatestAt, &m.CheckedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger mark: %w", err)
	}
	return &m, nil
}

func (p *Postgres) SetLatestMark(ctx context.Context, m *model.LedgerMark) error {
	if m.CheckedAt.IsZero() {
		m.CheckedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO ledger_marks (chat_id, lead_id, amount, latest_at, checked_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (chat_id, lead_id) DO UPDATE SET
		   amount = EXCLUDED.amount, latest_at = EXCLUDED.latest_at, checked_at = EXCLUDED.checked_at`,
		m.ChatID, m.LeadID, m.Amount, m.LatestAt, m.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("set ledger mark: %w", err)
	}
	return nil
}
