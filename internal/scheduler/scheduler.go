// Package scheduler watches the bid ledgers of logged-in chats and notifies
// them when a newer bid appears.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"propfeed/internal/bids"
	"propfeed/internal/bot"
	"propfeed/internal/currency"
	"propfeed/internal/model"
	"propfeed/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// SourceFunc returns the enquiry source authenticated with token.
type SourceFunc func(token string) bids.EnquirySource

// Scheduler periodically reloads every session's bids and sends an alert
// when the latest bid of a lead changes.
type Scheduler struct {
	store  storage.Storage
	source SourceFunc
	sender Sender
	money  currency.Formatter
	log    *slog.Logger
	tick   time.Duration
	pause  time.Duration
}

// New creates a Scheduler that checks every minute.
func New(store storage.Storage, source SourceFunc, sender Sender, money currency.Formatter, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		source: source,
		sender: sender,
		money:  money,
		log:    log,
		tick:   1 * time.Minute,
		pause:  50 * time.Millisecond,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetPause sets the delay between two alerts. Telegram allows about 20
// messages per second.
func (s *Scheduler) SetPause(d time.Duration) {
	s.pause = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		s.log.Error("list sessions", "error", err)
		return
	}

	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		s.checkSession(ctx, sess)
	}
}

func (s *Scheduler) checkSession(ctx context.Context, sess model.Session) {
	log := s.log.With("chat_id", sess.ChatID, "user_id", sess.UserID)
	log.Debug("checking bids")

	book, err := bids.LoadBook(ctx, s.source(sess.Token), sess.UserID, bids.ViewBids, log)
	if errors.Is(err, model.ErrAuthExpired) {
		if err := s.store.DeleteSession(ctx, sess.ChatID); err != nil {
			log.Error("delete expired session", "error", err)
			return
		}
		log.Info("session expired")
		s.sender.SendMessage(sess.ChatID, "Your session has expired. Use /login <user> <token> again.")
		return
	}
	if err != nil {
		log.Error("load bids", "error", err)
		return
	}

	own, err := s.acceptedAmounts(ctx, sess.ChatID)
	if err != nil {
		log.Error("list submissions", "error", err)
		return
	}

	sent := 0
	for _, l := range book.All() {
		if ctx.Err() != nil {
			return
		}
		latest, ok := l.Latest()
		if !ok {
			continue
		}

		mark, err := s.store.GetLatestMark(ctx, sess.ChatID, l.SubjectID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			mark = nil
		case err != nil:
			log.Error("get latest mark", "lead_id", l.SubjectID, "error", err)
			continue
		}

		if mark != nil && sameInstant(mark.LatestAt, latest.Timestamp) && sameAmount(mark.Amount, latest.Amount) {
			continue
		}

		// The first observation of a lead only records a baseline.
		if mark != nil && !own.has(l.SubjectID, latest.Amount) {
			s.sender.SendMessage(sess.ChatID, bot.FormatBidAlert(l, mark.Amount, s.money))
			sent++
			s.wait(ctx)
		}

		next := &model.LedgerMark{
			ChatID:   sess.ChatID,
			LeadID:   l.SubjectID,
			Amount:   latest.Amount,
			LatestAt: latest.Timestamp,
		}
		if err := s.store.SetLatestMark(ctx, next); err != nil {
			log.Error("set latest mark", "lead_id", l.SubjectID, "error", err)
		}
	}

	if sent > 0 {
		log.Info("sent bid alerts", "count", sent)
	}
}

func (s *Scheduler) wait(ctx context.Context) {
	if s.pause <= 0 {
		return
	}
	t := time.NewTimer(s.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// accepted maps a lead to the amounts this chat had accepted on it.
type accepted map[string][]float64

func (a accepted) has(leadID string, amount *float64) bool {
	if amount == nil {
		return false
	}
	for _, v := range a[leadID] {
		if v == *amount {
			return true
		}
	}
	return false
}

func (s *Scheduler) acceptedAmounts(ctx context.Context, chatID int64) (accepted, error) {
	subs, err := s.store.ListSubmissions(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	out := make(accepted)
	for _, sub := range subs {
		if sub.Status == model.SubmissionAccepted {
			out[sub.LeadID] = append(out[sub.LeadID], sub.Amount)
		}
	}
	return out, nil
}

// sameInstant compares at microsecond precision, the finest resolution every
// store keeps.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func sameAmount(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
